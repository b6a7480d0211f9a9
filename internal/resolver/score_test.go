package resolver

import (
	"testing"

	"github.com/browserlet/browserlet/internal/bsl"
)

func TestScoreAllHintsMatch(t *testing.T) {
	c := Candidate{Tag: "button", VisibleText: "Submit", Attributes: map[string]string{"role": "button"}}
	hints := []bsl.Hint{
		{Type: bsl.HintRole, Value: "button"},
		{Type: bsl.HintTextContains, Value: "submit"},
	}
	base, trail := score(c, layoutInfo{}, hints)
	if base != 1.0 {
		t.Errorf("base = %v, want 1.0", base)
	}
	if len(trail) != 2 || !trail[0].Matched || !trail[1].Matched {
		t.Errorf("trail = %+v, want both matched", trail)
	}
}

func TestScorePartialMatch(t *testing.T) {
	c := Candidate{Tag: "input", Attributes: map[string]string{"name": "email"}}
	hints := []bsl.Hint{
		{Type: bsl.HintName, Value: "email"},  // weight 0.90, matches
		{Type: bsl.HintAriaLabel, Value: "x"}, // weight 0.90, no match
	}
	base, _ := score(c, layoutInfo{}, hints)
	want := 0.90 / (0.90 + 0.90)
	if base != want {
		t.Errorf("base = %v, want %v", base, want)
	}
}

func TestScoreIgnoresUnknownHintType(t *testing.T) {
	c := Candidate{Tag: "div"}
	hints := []bsl.Hint{{Type: bsl.HintType("css_selector"), Value: ".x"}}
	base, trail := score(c, layoutInfo{}, hints)
	if base != 0 {
		t.Errorf("base = %v, want 0", base)
	}
	if len(trail) != 0 {
		t.Errorf("trail = %+v, want empty (unknown hint excluded)", trail)
	}
}

func TestPositionMatch(t *testing.T) {
	cases := []struct {
		want     string
		row, col int
		match    bool
	}{
		{"row 2", 2, 5, true},
		{"row 2", 3, 5, false},
		{"col 5", 2, 5, true},
		{"index 2", 2, 9, true},
		{"index 9", 2, 9, true},
		{"bogus 2", 2, 2, false},
	}
	for _, tc := range cases {
		if got := positionMatch(tc.want, tc.row, tc.col); got != tc.match {
			t.Errorf("positionMatch(%q, %d, %d) = %v, want %v", tc.want, tc.row, tc.col, got, tc.match)
		}
	}
}

func TestMatchHintNearLabel(t *testing.T) {
	l := layoutInfo{NearbyTexts: []string{"Email Address", "Password"}}
	h := bsl.Hint{Type: bsl.HintNearLabel, Value: "email"}
	if !matchHint(Candidate{}, l, h) {
		t.Error("expected near_label match on case-insensitive substring")
	}
	h.Value = "phone"
	if matchHint(Candidate{}, l, h) {
		t.Error("expected near_label miss")
	}
}

func TestMatchHintDataAttribute(t *testing.T) {
	c := Candidate{Attributes: map[string]string{"data-testid": "submit-btn"}}
	h := bsl.Hint{Type: bsl.HintDataAttribute, Named: bsl.NamedValue{Name: "data-testid", Value: "submit-btn"}}
	if !matchHint(c, layoutInfo{}, h) {
		t.Error("expected data_attribute exact match")
	}
}

func TestClamp01(t *testing.T) {
	if clamp01(1.5) != 1 {
		t.Error("expected clamp to 1")
	}
	if clamp01(-0.5) != 0 {
		t.Error("expected clamp to 0")
	}
}
