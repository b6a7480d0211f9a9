package resolver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/browserlet/browserlet/internal/bsl"
)

// defaultThreshold and defaultMargin are the cascade's published constants.
const (
	defaultThreshold = 0.70
	defaultMargin    = 0.05
	maxBoostPool     = 20
	maxTopCandidates = 5
)

// domElement is the minimal handle a resolved candidate needs in order to
// be acted on by the executor. The real implementation wraps *rod.Element;
// tests substitute a fake.
type domElement interface {
	// Unwrap exists only so callers outside this package (the executor)
	// can recover the concrete *rod.Element. Tests never call it.
	Unwrap() interface{}
}

// source abstracts the live page so the cascade's stage logic is testable
// without a real browser. rodSource (page.go) is the production
// implementation.
type source interface {
	// exactAnchor performs stage 1: query directly for identifier-class
	// hints (data_attribute, id, name, role) and return exact hits.
	exactAnchor(ctx context.Context, hints []bsl.Hint) ([]scoredCandidate, error)
	// broadScan performs stage 2: enumerate by the coarsest hint (or any
	// focusable/interactive element) and score against all hints.
	broadScan(ctx context.Context, hints []bsl.Hint) ([]scoredCandidate, error)
	// structuralBoost performs stage 3: re-extract structural context
	// (fieldset/label/landmark/section/near-label/position) for the given
	// candidates, which broadScan does not populate (it is only computed
	// when needed, since it is the most expensive extraction).
	structuralBoost(ctx context.Context, cands []scoredCandidate) ([]scoredCandidate, error)
	// fallback performs stage 5: run a raw CSS selector.
	fallback(ctx context.Context, selector string) ([]scoredCandidate, error)
	// url returns the current page URL, for diagnostics.
	url() string
	// landmarkHTML returns the outer HTML of the nearest landmark whose
	// text or markup contains any of hints' values, falling back to
	// <body>'s outer HTML when none matches. Used only to populate a
	// failure Diagnostic's repair excerpt; a query error yields "" rather
	// than failing resolution.
	landmarkHTML(ctx context.Context, hints []bsl.Hint) (string, error)
}

// MicroPromptProvider is stage 4's optional assist: given the intent and
// the top candidates, choose one. Disabled unless supplied in Options.
type MicroPromptProvider interface {
	Choose(ctx context.Context, intent string, candidates []Candidate) (index int, err error)
}

// Options configures a single Resolve call.
type Options struct {
	Threshold   float64 // default 0.70
	Margin      float64 // default 0.05
	MicroPrompt MicroPromptProvider
}

func (o Options) threshold() float64 {
	if o.Threshold == 0 {
		return defaultThreshold
	}
	return o.Threshold
}

func (o Options) margin() float64 {
	if o.Margin == 0 {
		return defaultMargin
	}
	return o.Margin
}

// Result is a successful resolution: the acted-on element plus the stage
// that produced it and its confidence, for logging/audit.
type Result struct {
	Element    domElement
	Stage      Stage
	Confidence float64
}

// scoreAll fills in base/adjusted/trail for each candidate against hints.
func scoreAll(cands []scoredCandidate, hints []bsl.Hint) {
	for i := range cands {
		base, trail := score(cands[i].Candidate, cands[i].layout, hints)
		cands[i].base = base
		cands[i].adjusted = clamp01(base)
		cands[i].trail = trail
	}
}

func sortByScoreDesc(cands []scoredCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].adjusted > cands[j].adjusted
	})
}

// uniqueLeader reports whether cands[0] clears threshold and beats the
// runner-up by at least margin. This is the broad-scan uniqueness
// predicate, reused by the structural-boost and micro-prompt stages.
func uniqueLeader(cands []scoredCandidate, threshold, margin float64) bool {
	if len(cands) == 0 {
		return false
	}
	if cands[0].adjusted < threshold {
		return false
	}
	if len(cands) == 1 {
		return true
	}
	return cands[0].adjusted-cands[1].adjusted >= margin
}

// resolve is the shared cascade implementation, parameterized over a
// source so it can run against a real page or a fake one in tests.
func resolve(ctx context.Context, src source, target bsl.Target, opts Options, stepID string) (*Result, *Diagnostic, error) {
	threshold, margin := opts.threshold(), opts.margin()
	hints := target.Hints

	diag := func(stage Stage, cands []scoredCandidate) *Diagnostic {
		var best *float64
		var bestCand *scoredCandidate
		if len(cands) > 0 {
			b := cands[0].adjusted
			best = &b
			bestCand = &cands[0]
		}
		gap := threshold
		if best != nil {
			gap = threshold - *best
		}
		html, _ := src.landmarkHTML(ctx, hints)
		return &Diagnostic{
			Step:          stepID,
			Page:          src.url(),
			Timestamp:     time.Now().UTC(),
			FailedAtStage: stage,
			Confidence:    Confidence{Threshold: threshold, BestScore: best, Gap: gap},
			SearchedHints: searchedHintTypes(hints),
			TopCandidates: toTopCandidates(cands, maxTopCandidates),
			Suggestion:    suggest(bestCand, hints),
			LandmarkHTML:  html,
		}
	}

	// Stage 1: exact anchor.
	if hasIdentifierClassHint(hints) {
		anchored, err := src.exactAnchor(ctx, hints)
		if err != nil {
			return nil, nil, fmt.Errorf("resolver: stage 1 exact anchor: %w", err)
		}
		scoreAll(anchored, hints)
		sortByScoreDesc(anchored)
		if len(anchored) == 1 && anchored[0].adjusted >= 0.90 {
			return &Result{Element: anchored[0].elem, Stage: StageExactAnchor, Confidence: anchored[0].adjusted}, nil, nil
		}
	}

	if len(hints) == 0 {
		// With no hints at all, only a fallback_selector can succeed.
		return resolveFallbackOnly(ctx, src, target, stepID, threshold)
	}

	// Stage 2: hint-weighted broad scan.
	broad, err := src.broadScan(ctx, hints)
	if err != nil {
		return nil, nil, fmt.Errorf("resolver: stage 2 broad scan: %w", err)
	}
	scoreAll(broad, hints)
	sortByScoreDesc(broad)
	if uniqueLeader(broad, threshold, margin) {
		return &Result{Element: broad[0].elem, Stage: StageBroadScan, Confidence: broad[0].adjusted}, nil, nil
	}

	// Stage 3: structural-context boosts, re-scoring the top N.
	poolSize := maxBoostPool
	if poolSize > len(broad) {
		poolSize = len(broad)
	}
	pool := broad[:poolSize]
	boosted, err := src.structuralBoost(ctx, pool)
	if err != nil {
		return nil, nil, fmt.Errorf("resolver: stage 3 structural boost: %w", err)
	}
	scoreAll(boosted, hints)
	sortByScoreDesc(boosted)
	if uniqueLeader(boosted, threshold, margin) {
		return &Result{Element: boosted[0].elem, Stage: StageStructuralBoost, Confidence: boosted[0].adjusted}, nil, nil
	}

	// Stage 4: micro-prompt assist, only when a provider is installed.
	if opts.MicroPrompt != nil {
		topN := boosted
		if len(topN) > maxTopCandidates {
			topN = topN[:maxTopCandidates]
		}
		if len(topN) > 0 {
			descriptors := make([]Candidate, len(topN))
			for i, c := range topN {
				descriptors[i] = c.Candidate
			}
			idx, err := opts.MicroPrompt.Choose(ctx, target.Intent, descriptors)
			if err == nil && idx >= 0 && idx < len(topN) {
				chosen := topN[idx]
				if chosen.adjusted >= threshold {
					return &Result{Element: chosen.elem, Stage: StageMicroPrompt, Confidence: chosen.adjusted}, nil, nil
				}
			}
		}
	}

	// Stage 5: fallback selector.
	if target.FallbackSelector != "" {
		fb, err := src.fallback(ctx, target.FallbackSelector)
		if err != nil {
			return nil, nil, fmt.Errorf("resolver: stage 5 fallback selector: %w", err)
		}
		if len(fb) == 1 {
			scoreAll(fb, hints)
			return &Result{Element: fb[0].elem, Stage: StageFallbackSelector, Confidence: 0.80}, nil, nil
		}
		// >1 or 0: refuse.
	}

	return nil, diag(StageFallbackSelector, boosted), nil
}

// resolveFallbackOnly handles the empty-hints edge case: only a
// fallback_selector can succeed.
func resolveFallbackOnly(ctx context.Context, src source, target bsl.Target, stepID string, threshold float64) (*Result, *Diagnostic, error) {
	if target.FallbackSelector == "" {
		html, _ := src.landmarkHTML(ctx, nil)
		return nil, &Diagnostic{
			Step:          stepID,
			Page:          src.url(),
			Timestamp:     time.Now().UTC(),
			FailedAtStage: StageFallbackSelector,
			Confidence:    Confidence{Threshold: threshold, BestScore: nil, Gap: threshold},
			SearchedHints: nil,
			Suggestion:    "no hints and no fallback_selector; resolution cannot proceed",
			LandmarkHTML:  html,
		}, nil
	}
	fb, err := src.fallback(ctx, target.FallbackSelector)
	if err != nil {
		return nil, nil, fmt.Errorf("resolver: stage 5 fallback selector: %w", err)
	}
	if len(fb) == 1 {
		return &Result{Element: fb[0].elem, Stage: StageFallbackSelector, Confidence: 0.80}, nil, nil
	}
	best := (*float64)(nil)
	html, _ := src.landmarkHTML(ctx, nil)
	return nil, &Diagnostic{
		Step:          stepID,
		Page:          src.url(),
		Timestamp:     time.Now().UTC(),
		FailedAtStage: StageFallbackSelector,
		Confidence:    Confidence{Threshold: threshold, BestScore: best, Gap: threshold},
		Suggestion:    "fallback_selector matched zero or multiple elements",
		LandmarkHTML:  html,
	}, nil
}

func hasIdentifierClassHint(hints []bsl.Hint) bool {
	for _, h := range hints {
		if bsl.IsIdentifierClass(h.Type) {
			return true
		}
	}
	return false
}
