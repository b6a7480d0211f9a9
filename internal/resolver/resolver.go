package resolver

import (
	"context"

	"github.com/go-rod/rod"

	"github.com/browserlet/browserlet/internal/bsl"
)

// Resolve is the single entry point the runner calls: given a live page
// and a step's target, it returns either a unique resolved element or a
// structured Diagnostic explaining why none was found.
func Resolve(ctx context.Context, page *rod.Page, stepID string, target bsl.Target, opts Options) (*Result, *Diagnostic, error) {
	return resolve(ctx, NewRodSource(page), target, opts, stepID)
}
