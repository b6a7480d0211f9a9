// Package resolver implements the five-stage Cascade Resolver: it maps a
// Step's weighted semantic hints to a unique live element, or produces a
// structured failure Diagnostic.
package resolver

import "github.com/browserlet/browserlet/internal/bsl"

// StructuralContext carries the contextual text a candidate is found inside:
// its containing fieldset's legend, an associated <label>, the nearest ARIA
// landmark, and the nearest preceding heading.
type StructuralContext struct {
	FieldsetLegend  string `json:"fieldset_legend,omitempty"`
	AssociatedLabel string `json:"associated_label,omitempty"`
	Landmark        string `json:"landmark,omitempty"`
	SectionHeading  string `json:"section_heading,omitempty"`
}

// Candidate is a DOM element annotated with everything the scorer and a
// failure diagnostic need. It holds no DOM reference once constructed —
// the element handle used to act on the page lives alongside it only
// inside the resolver's internal scoredCandidate, never here.
type Candidate struct {
	Tag               string            `json:"tag"`
	VisibleText       string            `json:"text"`
	Attributes        map[string]string `json:"attributes"`
	StructuralContext StructuralContext `json:"structural_context"`
}

const maxVisibleTextLen = 80

func truncateText(s string) string {
	r := []rune(s)
	if len(r) <= maxVisibleTextLen {
		return s
	}
	return string(r[:maxVisibleTextLen])
}

// layoutInfo is extraction-time positional data needed by near_label and
// position_context scoring. It never crosses into a Candidate or Diagnostic.
type layoutInfo struct {
	X, Y          float64
	Width, Height float64
	RowIndex      int
	ColIndex      int
	HasPosition   bool
	NearbyTexts   []string // visible text nodes within the near_label search radius
}

// scoredCandidate pairs a public Candidate with the DOM handle and layout
// data needed during resolution, and with the per-hint scoring trail used
// to build a Diagnostic on failure.
type scoredCandidate struct {
	Candidate Candidate
	layout    layoutInfo
	elem      domElement

	base     float64
	adjusted float64
	trail    []HintScore
}

// HintScore records one hint's contribution to a candidate's score, for
// diagnostic reporting.
type HintScore struct {
	Hint         bsl.HintType `json:"hint"`
	Weight       float64      `json:"weight"`
	Matched      bool         `json:"matched"`
	Contribution float64      `json:"contribution"`
}
