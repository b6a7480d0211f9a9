package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedactingCoreScrubsMessageAndFields(t *testing.T) {
	t.Cleanup(func() { ForgetSecret("github") })
	RegisterSecret("github", "ghp_supersecrettoken")

	core, logs := observer.New(zap.DebugLevel)
	wrapped := newRedactingCore(core)
	logger := zap.New(wrapped)

	logger.Info("authenticated with ghp_supersecrettoken", zap.String("token", "ghp_supersecrettoken"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Message != "authenticated with {{credential:***}}" {
		t.Errorf("message = %q, want redacted", entries[0].Message)
	}
	for _, f := range entries[0].Context {
		if f.Key == "token" && f.String != "{{credential:***}}" {
			t.Errorf("token field = %q, want {{credential:***}}", f.String)
		}
	}
}

func TestRedactLeavesUnrelatedTextAlone(t *testing.T) {
	if got := redact("nothing secret here"); got != "nothing secret here" {
		t.Errorf("redact modified unrelated text: %q", got)
	}
}
