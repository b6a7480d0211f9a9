package runner

import (
	"errors"
	"testing"

	"go.uber.org/goleak"

	"github.com/browserlet/browserlet/internal/bserr"
	"github.com/browserlet/browserlet/internal/bsl"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWorstExitCodeAllSuccess(t *testing.T) {
	steps := []StepResult{{StepID: "a"}, {StepID: "b"}}
	if got := worstExitCode(steps); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestWorstExitCodeFirstFailureWins(t *testing.T) {
	steps := []StepResult{
		{StepID: "a"},
		{StepID: "b", Err: bserr.StepFailure("b", "resolve", errors.New("no match"))},
		{StepID: "c", Err: bserr.Timeout("c", "wait_for", errors.New("timed out"))},
	}
	if got := worstExitCode(steps); got != 1 {
		t.Errorf("got %d, want 1 (step failure exit code)", got)
	}
}

func TestAcceptRepairAutoRepairThreshold(t *testing.T) {
	opts := Options{AutoRepair: true}
	step := bsl.Step{ID: "s1"}
	if !acceptRepair(opts, step, []bsl.Hint{{Type: bsl.HintRole, Value: "button"}}, "matched role", 0.70) {
		t.Error("expected accept at confidence == threshold")
	}
	if acceptRepair(opts, step, []bsl.Hint{{Type: bsl.HintRole, Value: "button"}}, "weak match", 0.69) {
		t.Error("expected reject below threshold")
	}
}

func TestAcceptRepairNeitherPolicySet(t *testing.T) {
	opts := Options{}
	if acceptRepair(opts, bsl.Step{ID: "s1"}, []bsl.Hint{{Type: bsl.HintID, Value: "go"}}, "x", 0.99) {
		t.Error("expected reject when neither auto-repair nor interactive is configured")
	}
}

func TestAcceptRepairInteractivePromptDecides(t *testing.T) {
	var asked bool
	opts := Options{
		Interactive: true,
		InteractiveYN: func(step bsl.Step, hints []bsl.Hint, reasoning string, confidence float64) bool {
			asked = true
			return false
		},
	}
	if acceptRepair(opts, bsl.Step{ID: "s1"}, []bsl.Hint{{Type: bsl.HintID, Value: "go"}}, "x", 0.99) {
		t.Error("expected interactive decision to be honored (false)")
	}
	if !asked {
		t.Error("expected InteractiveYN to be invoked")
	}
}

func TestApplyRepairReplacesHints(t *testing.T) {
	script := &bsl.Script{Steps: []bsl.Step{
		{Index: 0, Target: &bsl.Target{Intent: "submit", Hints: []bsl.Hint{{Type: bsl.HintRole, Value: "button"}}}},
	}}
	newHints := []bsl.Hint{{Type: bsl.HintID, Value: "submit-btn"}}
	applyRepair(script, 0, newHints)
	if len(script.Steps[0].Target.Hints) != 1 || script.Steps[0].Target.Hints[0].Value != "submit-btn" {
		t.Errorf("hints not replaced: %+v", script.Steps[0].Target.Hints)
	}
}

func TestApplyRepairCreatesTargetWhenNil(t *testing.T) {
	script := &bsl.Script{Steps: []bsl.Step{{Index: 0}}}
	applyRepair(script, 0, []bsl.Hint{{Type: bsl.HintName, Value: "email"}})
	if script.Steps[0].Target == nil || len(script.Steps[0].Target.Hints) != 1 {
		t.Fatal("expected Target to be created with the new hints")
	}
}
