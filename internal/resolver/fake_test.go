package resolver

import (
	"context"

	"github.com/browserlet/browserlet/internal/bsl"
)

// fakeElement is the domElement used by tests that never touch a browser.
type fakeElement struct{ id string }

func (f fakeElement) Unwrap() interface{} { return f.id }

// fakeSource is a hand-rolled source backed by a fixed candidate pool, so
// cascade-stage logic can be exercised without rod.
type fakeSource struct {
	pageURL string
	pool    []scoredCandidate

	// structural is applied by structuralBoost, keyed by candidate index
	// in pool, to simulate the extra extraction stage 3 performs.
	structural map[int]StructuralContext
	nearby     map[int][]string

	// fallbackMatches maps a selector string to the indices in pool it
	// should resolve to, so tests can simulate 0/1/N fallback hits.
	fallbackMatches map[string][]int

	// landmark is returned verbatim by landmarkHTML, simulating the
	// nearest-landmark (or <body>) markup a real page would supply.
	landmark string
}

func (f *fakeSource) url() string { return f.pageURL }

func (f *fakeSource) landmarkHTML(ctx context.Context, hints []bsl.Hint) (string, error) {
	return f.landmark, nil
}

func (f *fakeSource) exactAnchor(ctx context.Context, hints []bsl.Hint) ([]scoredCandidate, error) {
	var out []scoredCandidate
	for _, h := range hints {
		if !bsl.IsIdentifierClass(h.Type) {
			continue
		}
		for _, c := range f.pool {
			if matchHint(c.Candidate, c.layout, h) {
				out = append(out, c)
			}
		}
	}
	return dedupeFake(out), nil
}

func (f *fakeSource) broadScan(ctx context.Context, hints []bsl.Hint) ([]scoredCandidate, error) {
	out := make([]scoredCandidate, len(f.pool))
	copy(out, f.pool)
	return out, nil
}

func (f *fakeSource) structuralBoost(ctx context.Context, cands []scoredCandidate) ([]scoredCandidate, error) {
	out := make([]scoredCandidate, len(cands))
	copy(out, cands)
	for i := range out {
		idx := poolIndex(f.pool, out[i])
		if idx < 0 {
			continue
		}
		if sc, ok := f.structural[idx]; ok {
			out[i].Candidate.StructuralContext = sc
		}
		if n, ok := f.nearby[idx]; ok {
			out[i].layout.NearbyTexts = n
		}
	}
	return out, nil
}

func (f *fakeSource) fallback(ctx context.Context, selector string) ([]scoredCandidate, error) {
	idxs := f.fallbackMatches[selector]
	out := make([]scoredCandidate, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, f.pool[i])
	}
	return out, nil
}

func poolIndex(pool []scoredCandidate, c scoredCandidate) int {
	for i, p := range pool {
		if p.elem.(fakeElement).id == c.elem.(fakeElement).id {
			return i
		}
	}
	return -1
}

func dedupeFake(cands []scoredCandidate) []scoredCandidate {
	seen := map[string]bool{}
	out := make([]scoredCandidate, 0, len(cands))
	for _, c := range cands {
		id := c.elem.(fakeElement).id
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, c)
	}
	return out
}

func cand(id, tag, text string, attrs map[string]string) scoredCandidate {
	return scoredCandidate{
		Candidate: Candidate{Tag: tag, VisibleText: text, Attributes: attrs},
		elem:      fakeElement{id: id},
	}
}
