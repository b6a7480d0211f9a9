// Package repair asks a configured LLM provider to suggest new hints for
// a step the Cascade Resolver failed to resolve, and — under the run's
// accepted policy — rewrites the step's hints both in memory and, when a
// script path is known, atomically in the on-disk .bsl file.
package repair

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/browserlet/browserlet/internal/bsl"
	"github.com/browserlet/browserlet/internal/resolver"
)

// Request is everything a provider needs to propose new hints.
type Request struct {
	StepID       string
	Intent       string
	CurrentHints []bsl.Hint
	Diagnostic   *resolver.Diagnostic
	DOMExcerpt   string // cleaned HTML, ≤600 chars
	PageURL      string
	Action       bsl.Action
}

// Suggestion is a provider's proposed fix.
type Suggestion struct {
	Hints      []bsl.Hint
	Confidence float64
	Reasoning  string
}

// Provider asks an LLM for a repair suggestion. A provider never panics
// and never returns an error for a low-confidence or empty answer — the
// engine treats "no usable suggestion" as a zero-value Suggestion with a
// nil error; Provider.SuggestHints returning a non-nil error means the
// call to the provider itself failed (network, auth, malformed JSON).
type Provider interface {
	SuggestHints(ctx context.Context, req Request) (Suggestion, error)
}

// Engine wraps a Provider with the DOM-excerpt builder and the
// apply/persist/audit steps the runner needs. It implements
// runner.RepairProvider.
type Engine struct {
	provider Provider
	doc      *yaml.Node // the script's format-preserving document tree, or nil
	script   *bsl.Script
	scriptPath string
}

// New builds an Engine. doc/script/scriptPath may be the zero value when
// on-disk persistence is not wanted (e.g. a script read from stdin);
// Repair still returns suggested hints, and with an empty scriptPath
// Apply writes nothing to disk.
func New(provider Provider, doc *yaml.Node, script *bsl.Script, scriptPath string) *Engine {
	return &Engine{provider: provider, doc: doc, script: script, scriptPath: scriptPath}
}

// Repair never throws: on any provider error it returns a nil error and
// zero hints, so the runner proceeds as if repair was never attempted.
func (e *Engine) Repair(ctx context.Context, step bsl.Step, diag *resolver.Diagnostic, pageURL string) ([]bsl.Hint, float64, string, error) {
	if e == nil || e.provider == nil {
		return nil, 0, "", nil
	}

	req := Request{
		StepID:       step.EffectiveID(),
		Intent:       intentOf(step),
		CurrentHints: hintsOf(step),
		Diagnostic:   diag,
		DOMExcerpt:   excerptFromDiagnostic(diag),
		PageURL:      pageURL,
		Action:       step.Action,
	}

	sugg, err := e.provider.SuggestHints(ctx, req)
	if err != nil || len(sugg.Hints) == 0 {
		return nil, 0, "", nil
	}
	return sugg.Hints, sugg.Confidence, sugg.Reasoning, nil
}

// Apply persists an accepted suggestion: rewrites the step's hints node
// in e.doc (if present) and, when scriptPath is set, atomically writes the
// re-marshalled document back to scriptPath and appends an audit entry to
// the sibling history file.
func (e *Engine) Apply(step bsl.Step, hints []bsl.Hint, confidence float64, reasoning, pageURL string) error {
	if e.doc != nil {
		if err := rewriteStepHints(e.doc, step.Index, hints); err != nil {
			return fmt.Errorf("repair: rewrite hints: %w", err)
		}
	}
	if e.scriptPath == "" {
		return nil
	}

	out, err := yaml.Marshal(e.doc)
	if err != nil {
		return fmt.Errorf("repair: marshal script: %w", err)
	}
	if err := writeAtomic(e.scriptPath, out); err != nil {
		return err
	}

	entry := auditEntry{
		Timestamp:     time.Now().UTC(),
		ScriptPath:    e.scriptPath,
		StepIndex:     step.Index,
		OriginalHints: hintsOf(step),
		AppliedHints:  hints,
		Confidence:    confidence,
		Reasoning:     reasoning,
		URL:           pageURL,
	}
	return appendAudit(historyPath(e.scriptPath), entry)
}

func intentOf(step bsl.Step) string {
	if step.Target == nil {
		return ""
	}
	return step.Target.Intent
}

func hintsOf(step bsl.Step) []bsl.Hint {
	if step.Target == nil {
		return nil
	}
	return step.Target.Hints
}

func historyPath(scriptPath string) string {
	return filepath.Join(filepath.Dir(scriptPath), ".browserlet-repair-history.json")
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("repair: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("repair: rename into place: %w", err)
	}
	return nil
}
