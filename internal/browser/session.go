// Package browser launches or connects to a Chrome instance and hands
// back a single rod.Page for the runner to drive a script against.
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// Config controls how the browser is launched or connected to.
type Config struct {
	DebuggerURL    string   // if set, connect instead of launching
	Headless       bool
	Launch         []string // [0] = binary path (optional), rest = extra CLI flags
	ViewportWidth  int
	ViewportHeight int
}

// DefaultConfig returns browserlet's default browser configuration.
func DefaultConfig() Config {
	return Config{
		Headless:       true,
		ViewportWidth:  1440,
		ViewportHeight: 900,
	}
}

// Session owns one browser connection and one page for the lifetime of a
// script run.
type Session struct {
	browser *rod.Browser
	page    *rod.Page
	cfg     Config
}

// Start connects to an existing Chrome (if DebuggerURL is set) or
// launches a new headless/headful instance, then opens a blank page.
func Start(ctx context.Context, cfg Config) (*Session, error) {
	controlURL, err := resolveControlURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("browser: open page: %w", err)
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:  cfg.ViewportWidth,
			Height: cfg.ViewportHeight,
		}); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("browser: set viewport: %w", err)
		}
	}

	return &Session{browser: b, page: page, cfg: cfg}, nil
}

func resolveControlURL(cfg Config) (string, error) {
	if cfg.DebuggerURL != "" {
		return cfg.DebuggerURL, nil
	}

	l := launcher.New().Headless(cfg.Headless)
	if len(cfg.Launch) > 0 && cfg.Launch[0] != "" {
		l = l.Bin(cfg.Launch[0])
	}
	for _, raw := range cfg.Launch[minLen(len(cfg.Launch), 1):] {
		flagStr := strings.TrimLeft(raw, "-")
		name, val, hasVal := strings.Cut(flagStr, "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}

	url, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("launch browser: %w", err)
	}
	return url, nil
}

func minLen(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Page returns the session's live page, for the resolver and executor.
func (s *Session) Page() *rod.Page { return s.page }

// Close closes the browser over its control connection. This applies to
// a session connected through DebuggerURL as well as to one it launched.
func (s *Session) Close() error {
	if s.browser == nil {
		return nil
	}
	return s.browser.Close()
}
