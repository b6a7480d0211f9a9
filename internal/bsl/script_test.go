package bsl

import (
	"strings"
	"testing"
)

const happyPathScript = `
name: example
steps:
  - action: navigate
    value: "https://example.com"
  - action: screenshot
    value: "/tmp/a.png"
  - action: extract
    target:
      intent: heading
      hints:
        - type: role
          value: heading
      fallback_selector: "h1"
    output:
      variable: h
`

func TestParseHappyPath(t *testing.T) {
	s, doc, err := Parse([]byte(happyPathScript))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc == nil {
		t.Fatal("expected non-nil document node")
	}
	if s.Name != "example" {
		t.Errorf("Name = %q, want example", s.Name)
	}
	if len(s.Steps) != 3 {
		t.Fatalf("len(Steps) = %d, want 3", len(s.Steps))
	}
	if s.Steps[2].Output.Variable != "h" {
		t.Errorf("output variable = %q, want h", s.Steps[2].Output.Variable)
	}
	if s.Steps[2].Target.FallbackSelector != "h1" {
		t.Errorf("fallback_selector = %q, want h1", s.Steps[2].Target.FallbackSelector)
	}
	if got := s.Steps[0].EffectiveID(); got != "step-000-navigate" {
		t.Errorf("EffectiveID = %q, want step-000-navigate", got)
	}
}

func TestParseUnknownActionFails(t *testing.T) {
	src := `
name: bad
steps:
  - action: teleport
    value: x
`
	if _, _, err := Parse([]byte(src)); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestParseStripsZeroWidthCharacters(t *testing.T) {
	zw := "​﻿"
	src := zw + "name: zw\nsteps:\n  - action: navigate\n    value: \"https://x\"\n"
	s, _, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Name != "zw" {
		t.Errorf("Name = %q, want zw (zero-width chars should not alter parsed steps)", s.Name)
	}
	if len(s.Steps) != 1 {
		t.Fatalf("len(Steps) = %d, want 1", len(s.Steps))
	}
}

func TestParseDataAttributeHint(t *testing.T) {
	src := `
name: da
steps:
  - action: click
    target:
      intent: submit
      hints:
        - type: data_attribute
          value:
            name: data-testid
            value: submit-btn
`
	s, _, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	h := s.Steps[0].Target.Hints[0]
	if h.Named.Name != "data-testid" || h.Named.Value != "submit-btn" {
		t.Errorf("Named = %+v, want {data-testid submit-btn}", h.Named)
	}
}

func TestParseUnknownHintTypeFails(t *testing.T) {
	src := `
name: bad
steps:
  - action: click
    target:
      intent: x
      hints:
        - type: css_selector
          value: ".foo"
`
	_, _, err := Parse([]byte(src))
	if err == nil || !strings.Contains(err.Error(), "unknown hint type") {
		t.Fatalf("err = %v, want unknown hint type error", err)
	}
}

func TestDuplicateStepIDsRejected(t *testing.T) {
	s := Script{Steps: []Step{
		{ID: "a", Action: ActionNavigate, Index: 0},
		{ID: "a", Action: ActionClick, Index: 1},
	}}
	errs := Validate(s)
	if len(errs) == 0 {
		t.Fatal("expected duplicate id error")
	}
}
