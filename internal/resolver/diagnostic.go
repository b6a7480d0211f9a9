package resolver

import (
	"time"

	"github.com/browserlet/browserlet/internal/bsl"
)

// Stage is the cascade stage reached when resolution failed, or the stage
// that produced a successful match.
type Stage int

const (
	StageExactAnchor Stage = iota + 1
	StageBroadScan
	StageStructuralBoost
	StageMicroPrompt
	StageFallbackSelector
)

func (s Stage) String() string {
	switch s {
	case StageExactAnchor:
		return "exact_anchor"
	case StageBroadScan:
		return "hint_weighted_broad_scan"
	case StageStructuralBoost:
		return "structural_context_boost"
	case StageMicroPrompt:
		return "micro_prompt_assist"
	case StageFallbackSelector:
		return "fallback_selector"
	default:
		return "unknown"
	}
}

// TopCandidate is one ranked entry in a Diagnostic's top-5 list.
type TopCandidate struct {
	Tag               string            `json:"tag"`
	Text              string            `json:"text"`
	Attributes        map[string]string `json:"attributes"`
	StructuralContext StructuralContext `json:"structural_context"`
	BaseConfidence    float64           `json:"base_confidence"`
	AdjustedConfidence float64          `json:"adjusted_confidence"`
	HintScores        []HintScore       `json:"hint_scores"`
}

// Confidence carries the threshold/best-score/gap triple the diagnostic
// JSON groups together. A positive Gap means failure.
type Confidence struct {
	Threshold float64  `json:"threshold"`
	BestScore *float64 `json:"best_score"` // nil when no stage produced any candidate
	Gap       float64  `json:"gap"`
}

// Diagnostic is the structured failure record returned when no cascade
// stage produces a confident unique match.
type Diagnostic struct {
	Step           string         `json:"step"`
	Page           string         `json:"page"`
	Timestamp      time.Time      `json:"timestamp"`
	FailedAtStage  Stage          `json:"failed_at_stage"`
	Confidence     Confidence     `json:"confidence"`
	SearchedHints  []bsl.HintType `json:"searched_hints"`
	TopCandidates  []TopCandidate `json:"top_candidates"`
	Suggestion     string         `json:"suggestion,omitempty"`
	// LandmarkHTML is the raw outer HTML of the nearest landmark whose
	// text or markup contains a searched hint value (or <body> when none
	// matches), captured at failure time for the repair engine's DOM
	// excerpt. Never logged directly; only cleaned text/tags survive
	// into a repair request.
	LandmarkHTML string `json:"-"`
}

// hintValues collects every literal value a hint set searches for, so a
// landmark lookup can test page markup against them.
func hintValues(hints []bsl.Hint) []string {
	out := make([]string, 0, len(hints))
	for _, h := range hints {
		if h.IsNamed() {
			if h.Named.Value != "" {
				out = append(out, h.Named.Value)
			}
			continue
		}
		if h.Value != "" {
			out = append(out, h.Value)
		}
	}
	return out
}

func searchedHintTypes(hints []bsl.Hint) []bsl.HintType {
	types := make([]bsl.HintType, 0, len(hints))
	for _, h := range hints {
		types = append(types, h.Type)
	}
	return types
}

func toTopCandidates(cands []scoredCandidate, n int) []TopCandidate {
	if n > len(cands) {
		n = len(cands)
	}
	out := make([]TopCandidate, 0, n)
	for i := 0; i < n; i++ {
		c := cands[i]
		out = append(out, TopCandidate{
			Tag:                c.Candidate.Tag,
			Text:               c.Candidate.VisibleText,
			Attributes:         c.Candidate.Attributes,
			StructuralContext:  c.Candidate.StructuralContext,
			BaseConfidence:     c.base,
			AdjustedConfidence: c.adjusted,
			HintScores:         c.trail,
		})
	}
	return out
}

// suggest derives a short human-readable fix suggestion from which hint
// types failed to match on the best candidate.
func suggest(best *scoredCandidate, hints []bsl.Hint) string {
	if best == nil {
		return "no candidate matched any hint; consider adding a fallback_selector"
	}
	var failed []string
	for _, hs := range best.trail {
		if !hs.Matched {
			failed = append(failed, string(hs.Hint))
		}
	}
	if len(failed) == 0 {
		return "candidates matched but none cleared the uniqueness margin; add a more specific hint"
	}
	s := "hints "
	for i, f := range failed {
		if i > 0 {
			s += ", "
		}
		s += f
	}
	s += " did not match the best candidate; consider revising or removing them"
	return s
}
