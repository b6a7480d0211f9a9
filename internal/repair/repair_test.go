package repair

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/browserlet/browserlet/internal/bsl"
)

type fakeProvider struct {
	sugg Suggestion
	err  error
}

func (f fakeProvider) SuggestHints(ctx context.Context, req Request) (Suggestion, error) {
	return f.sugg, f.err
}

func TestRepairReturnsSuggestionOnSuccess(t *testing.T) {
	p := fakeProvider{sugg: Suggestion{
		Hints:      []bsl.Hint{{Type: bsl.HintID, Value: "go-btn"}},
		Confidence: 0.82,
		Reasoning:  "matched a unique id on the nearest button",
	}}
	e := New(p, nil, nil, "")
	hints, conf, reasoning, err := e.Repair(context.Background(), bsl.Step{ID: "s1"}, nil, "https://x")
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	want := []bsl.Hint{{Type: bsl.HintID, Value: "go-btn"}}
	if diff := cmp.Diff(want, hints); diff != "" {
		t.Errorf("hints mismatch (-want +got):\n%s", diff)
	}
	if conf != 0.82 || reasoning == "" {
		t.Errorf("conf=%v reasoning=%q", conf, reasoning)
	}
}

func TestRepairNeverThrowsOnProviderError(t *testing.T) {
	p := fakeProvider{err: errors.New("network down")}
	e := New(p, nil, nil, "")
	hints, conf, _, err := e.Repair(context.Background(), bsl.Step{ID: "s1"}, nil, "")
	if err != nil {
		t.Fatalf("Repair must never surface a provider error, got %v", err)
	}
	if hints != nil || conf != 0 {
		t.Errorf("expected zero suggestion on provider error, got hints=%v conf=%v", hints, conf)
	}
}

func TestRepairNilEngineIsNoop(t *testing.T) {
	var e *Engine
	hints, _, _, err := e.Repair(context.Background(), bsl.Step{ID: "s1"}, nil, "")
	if err != nil || hints != nil {
		t.Errorf("nil engine should no-op, got hints=%v err=%v", hints, err)
	}
}

const scriptWithHints = `
name: demo
steps:
  - id: click-go
    action: click
    target:
      intent: search button
      hints:
        - type: role
          value: button
`

func TestApplyRewritesHintsPreservingDocument(t *testing.T) {
	script, doc, err := bsl.Parse([]byte(scriptWithHints))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "demo.bsl")
	if err := os.WriteFile(path, []byte(scriptWithHints), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	e := New(fakeProvider{}, doc, script, path)
	newHints := []bsl.Hint{{Type: bsl.HintID, Value: "go-btn"}}
	if err := e.Apply(script.Steps[0], newHints, 0.9, "id is unique", "https://example.com"); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	rewritten, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read rewritten script: %v", err)
	}

	var reparsed struct {
		Name  string `yaml:"name"`
		Steps []struct {
			ID     string `yaml:"id"`
			Target struct {
				Intent string `yaml:"intent"`
				Hints  []struct {
					Type  string `yaml:"type"`
					Value string `yaml:"value"`
				} `yaml:"hints"`
			} `yaml:"target"`
		} `yaml:"steps"`
	}
	if err := yaml.Unmarshal(rewritten, &reparsed); err != nil {
		t.Fatalf("reparse rewritten script: %v", err)
	}
	if reparsed.Name != "demo" {
		t.Errorf("name lost on rewrite: %q", reparsed.Name)
	}
	if reparsed.Steps[0].Target.Intent != "search button" {
		t.Errorf("intent lost on rewrite: %q", reparsed.Steps[0].Target.Intent)
	}
	if len(reparsed.Steps[0].Target.Hints) != 1 || reparsed.Steps[0].Target.Hints[0].Value != "go-btn" {
		t.Fatalf("hints not rewritten: %+v", reparsed.Steps[0].Target.Hints)
	}

	historyPath := filepath.Join(dir, ".browserlet-repair-history.json")
	historyRaw, err := os.ReadFile(historyPath)
	if err != nil {
		t.Fatalf("read audit history: %v", err)
	}
	if len(historyRaw) == 0 {
		t.Fatal("expected non-empty audit history")
	}
}

func TestAppendAuditAccumulatesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".browserlet-repair-history.json")
	for i := 0; i < 3; i++ {
		if err := appendAudit(path, auditEntry{ScriptPath: "demo.bsl", StepIndex: i}); err != nil {
			t.Fatalf("appendAudit: %v", err)
		}
	}
	var entries []auditEntry
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("len(entries) = %d, want 3", len(entries))
	}
}

func TestCleanHTMLStripsScriptAndTags(t *testing.T) {
	got := cleanHTML(`<div><script>evil()</script><p>Hello <b>world</b></p></div>`)
	if got != "Hello world" {
		t.Errorf("cleanHTML = %q, want %q", got, "Hello world")
	}
}

func TestExcerptFromDiagnosticNilIsEmpty(t *testing.T) {
	if got := excerptFromDiagnostic(nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
