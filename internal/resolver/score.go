package resolver

import (
	"math"
	"strings"

	"github.com/browserlet/browserlet/internal/bsl"
)

// foldContains reports whether sub is a case-insensitive substring of s.
func foldContains(s, sub string) bool {
	if sub == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// nearLabelRadiusPx is the euclidean search radius for near_label.
const nearLabelRadiusPx = 120.0

// positionMatch parses "row N" / "col N" / "index N" against the
// candidate's computed structural index.
func positionMatch(want string, row, col int) bool {
	want = strings.ToLower(strings.TrimSpace(want))
	fields := strings.Fields(want)
	if len(fields) != 2 {
		return false
	}
	kind, numStr := fields[0], fields[1]
	n := 0
	for _, r := range numStr {
		if r < '0' || r > '9' {
			return false
		}
		n = n*10 + int(r-'0')
	}
	switch kind {
	case "row":
		return row == n
	case "col":
		return col == n
	case "index":
		return row == n || col == n
	default:
		return false
	}
}

// matchHint applies the match predicate for a single hint type against a
// candidate. It returns whether the hint matched.
func matchHint(c Candidate, l layoutInfo, h bsl.Hint) bool {
	attr := func(name string) string { return c.Attributes[name] }

	switch h.Type {
	case bsl.HintDataAttribute:
		return attr(h.Named.Name) == h.Named.Value
	case bsl.HintID:
		return attr("id") == h.Value
	case bsl.HintName:
		return attr("name") == h.Value
	case bsl.HintRole:
		return attr("role") == h.Value
	case bsl.HintTypeAttr:
		return attr("type") == h.Value
	case bsl.HintAriaLabel:
		return foldContains(attr("aria-label"), h.Value)
	case bsl.HintTextContains:
		return foldContains(c.VisibleText, h.Value)
	case bsl.HintPlaceholderContains:
		return foldContains(attr("placeholder"), h.Value)
	case bsl.HintClassContains:
		return foldContains(attr("class"), h.Value)
	case bsl.HintFieldsetContext:
		return foldContains(c.StructuralContext.FieldsetLegend, h.Value)
	case bsl.HintAssociatedLabel:
		return foldContains(c.StructuralContext.AssociatedLabel, h.Value)
	case bsl.HintLandmarkContext:
		return foldContains(c.StructuralContext.Landmark, h.Value)
	case bsl.HintSectionContext:
		return foldContains(c.StructuralContext.SectionHeading, h.Value)
	case bsl.HintNearLabel:
		for _, t := range l.NearbyTexts {
			if foldContains(t, h.Value) {
				return true
			}
		}
		return false
	case bsl.HintPositionContext:
		if !l.HasPosition {
			return false
		}
		return positionMatch(h.Value, l.RowIndex, l.ColIndex)
	default:
		return false
	}
}

// score computes baseConfidence and the per-hint trail for a candidate
// against a hint set:
//
//	contribution(C, h) = weight(h.type) if C matches h, else 0
//	baseConfidence(C)  = sum(contribution) / sum(weight(h.type) for h in H)
func score(c Candidate, l layoutInfo, hints []bsl.Hint) (base float64, trail []HintScore) {
	if len(hints) == 0 {
		return 0, nil
	}
	var sumContribution, sumWeight float64
	trail = make([]HintScore, 0, len(hints))
	for _, h := range hints {
		w, ok := bsl.Weight(h.Type)
		if !ok {
			continue // never score a hint outside the closed table
		}
		sumWeight += w
		matched := matchHint(c, l, h)
		contribution := 0.0
		if matched {
			contribution = w
			sumContribution += w
		}
		trail = append(trail, HintScore{Hint: h.Type, Weight: w, Matched: matched, Contribution: contribution})
	}
	if sumWeight == 0 {
		return 0, trail
	}
	return sumContribution / sumWeight, trail
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
