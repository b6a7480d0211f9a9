// Package runner drives a parsed script step by step: substitute its
// placeholders, resolve its target, run its action, fold any extracted
// value into the variables map, and on resolver failure give a configured
// repair provider exactly one chance to fix the step's hints before
// retrying.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"github.com/browserlet/browserlet/internal/bserr"
	"github.com/browserlet/browserlet/internal/bsl"
	"github.com/browserlet/browserlet/internal/executor"
	"github.com/browserlet/browserlet/internal/resolver"
	"github.com/browserlet/browserlet/internal/substitute"
)

// RepairProvider is what the runner needs from a repair engine: given a
// failed resolve, propose new hints (internal/repair's Engine has this
// method). Declared here (not imported from internal/repair) so the
// runner depends only on a narrow interface and never imports the
// LLM-facing packages.
type RepairProvider interface {
	Repair(ctx context.Context, step bsl.Step, diag *resolver.Diagnostic, pageURL string) (hints []bsl.Hint, confidence float64, reasoning string, err error)
}

// Options configures a single script run.
type Options struct {
	Vault          substitute.CredentialResolver
	Repair         RepairProvider // nil disables repair entirely
	ResolverOpts   resolver.Options
	GlobalTimeout  time.Duration
	OutputDir      string
	ScriptName     string
	ScriptPath     string // informational; whether a repair is persisted is up to the RepairProvider
	AutoRepair     bool
	Interactive    bool
	InteractiveYN  func(step bsl.Step, hints []bsl.Hint, reasoning string, confidence float64) bool
	Logger         *zap.Logger
}

// StepResult records what happened running one step, for diagnostic
// output and the CLI's user-visible failure report.
type StepResult struct {
	StepID         string
	Err            error // a *bserr.Error when non-nil
	Diagnostic     *resolver.Diagnostic
	ScreenshotPath string
	Repaired       bool
}

// Run executes every step of script in order against page, honoring
// ctx cancellation between steps and through each action's first await.
// It returns the per-step results (always len(script.Steps) long, with
// later entries carrying bserr.KindSkipped once a failure or external
// cancellation stops the run) and the extracted-variables map built up
// along the way.
func Run(ctx context.Context, page *rod.Page, script *bsl.Script, opts Options) ([]StepResult, map[string]any) {
	vars := make(map[string]any)
	results := make([]StepResult, len(script.Steps))

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	skipping := false
	for i, step := range script.Steps {
		id := step.EffectiveID()

		if skipping {
			results[i] = StepResult{StepID: id, Err: bserr.New(bserr.KindSkipped, id, "skip", fmt.Errorf("skipped after prior failure"))}
			continue
		}

		select {
		case <-ctx.Done():
			results[i] = StepResult{StepID: id, Err: bserr.Timeout(id, "cancel", ctx.Err())}
			skipping = true
			continue
		default:
		}

		res := runStep(ctx, page, script, step, vars, opts)
		results[i] = res
		if res.Err != nil {
			log.Warn("step failed", zap.String("step", id), zap.Error(res.Err))
			skipping = true
		}
	}
	return results, vars
}

func runStep(ctx context.Context, page *rod.Page, script *bsl.Script, step bsl.Step, vars map[string]any, opts Options) StepResult {
	id := step.EffectiveID()
	timeout := step.EffectiveTimeout(opts.GlobalTimeout)

	value, err := substitute.Substitute(id, step.Value, vars, opts.Vault)
	if err != nil {
		return StepResult{StepID: id, Err: bserr.StepFailure(id, "substitute", err)}
	}

	in := executor.Input{
		Page:       page,
		Step:       step,
		Value:      value,
		ScriptName: opts.ScriptName,
		OutputDir:  opts.OutputDir,
	}

	if step.NeedsSelector() {
		el, diag, repaired, err := resolveWithRepair(ctx, page, script, step, opts)
		if err != nil {
			shot := bestEffortScreenshot(ctx, page, opts, id)
			return StepResult{StepID: id, Err: bserr.StepFailure(id, "resolve", err), Diagnostic: diag, ScreenshotPath: shot, Repaired: repaired}
		}
		in.Element = el
	}

	result, err := executor.Execute(ctx, timeout, in)
	if err != nil {
		kind := bserr.KindStepFailure
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			kind = bserr.KindTimeout
		}
		shot := bestEffortScreenshot(ctx, page, opts, id)
		return StepResult{StepID: id, Err: bserr.New(kind, id, string(step.Action), err), ScreenshotPath: shot}
	}

	if step.Output != nil && step.Output.Variable != "" && result.Output != nil {
		vars[step.Output.Variable] = result.Output
	}
	if result.ScreenshotPath != "" {
		return StepResult{StepID: id, ScreenshotPath: result.ScreenshotPath}
	}
	return StepResult{StepID: id}
}

// resolveWithRepair runs the cascade once; on failure, if a repair
// provider is configured, it asks for a suggestion and retries the
// cascade exactly once more with it. The provider itself is responsible
// for the run's accept policy (auto-repair threshold or an interactive
// prompt) and for any on-disk persistence — it returns empty hints for a
// suggestion it decided not to apply, which resolveWithRepair treats the
// same as "no suggestion available".
func resolveWithRepair(ctx context.Context, page *rod.Page, script *bsl.Script, step bsl.Step, opts Options) (*rod.Element, *resolver.Diagnostic, bool, error) {
	id := step.EffectiveID()

	res, diag, err := resolver.Resolve(ctx, page, id, *step.Target, opts.ResolverOpts)
	if err == nil && res != nil {
		return res.Rod(), nil, false, nil
	}
	if err == nil {
		err = fmt.Errorf("resolver: no cascade stage produced a confident unique match")
	}
	if opts.Repair == nil {
		return nil, diag, false, err
	}

	hints, _, _, repairErr := opts.Repair.Repair(ctx, step, diag, pageURLOrEmpty(page))
	if repairErr != nil || len(hints) == 0 {
		// Repair errors, and suggestions the provider's own policy declined
		// to apply, are recovered locally: the runner proceeds as if
		// repair had never been attempted.
		return nil, diag, false, err
	}

	applyRepair(script, step.Index, hints)

	res2, diag2, err2 := resolver.Resolve(ctx, page, id, *script.Steps[step.Index].Target, opts.ResolverOpts)
	if err2 == nil && res2 != nil {
		return res2.Rod(), nil, true, nil
	}
	if err2 == nil {
		err2 = fmt.Errorf("resolver: no cascade stage produced a confident unique match after repair")
	}
	return nil, diag2, true, err2
}

func acceptRepair(opts Options, step bsl.Step, hints []bsl.Hint, reasoning string, confidence float64) bool {
	if opts.Interactive && opts.InteractiveYN != nil {
		return opts.InteractiveYN(step, hints, reasoning, confidence)
	}
	if opts.AutoRepair {
		return confidence >= 0.70
	}
	return false
}

// applyRepair updates the in-memory step's hints. Persisting the rewrite
// to the .bsl file on disk is internal/repair's job (it owns the
// yaml.Node document tree); the runner only needs the in-memory step
// updated so the retry sees the new hints.
func applyRepair(script *bsl.Script, index int, hints []bsl.Hint) {
	if script.Steps[index].Target == nil {
		script.Steps[index].Target = &bsl.Target{}
	}
	script.Steps[index].Target.Hints = hints
}

func pageURLOrEmpty(page *rod.Page) string {
	info, err := page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func bestEffortScreenshot(ctx context.Context, page *rod.Page, opts Options, stepID string) string {
	shotCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res, err := executor.Execute(shotCtx, 5*time.Second, executor.Input{
		Page:       page,
		Step:       bsl.Step{Action: bsl.ActionScreenshot, ID: stepID + "-failure"},
		ScriptName: opts.ScriptName,
		OutputDir:  opts.OutputDir,
	})
	if err != nil {
		return ""
	}
	return res.ScreenshotPath
}
