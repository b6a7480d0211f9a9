package runner

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/browserlet/browserlet/internal/browser"
	"github.com/browserlet/browserlet/internal/bserr"
	"github.com/browserlet/browserlet/internal/bsl"
)

// BatchResult is one script's outcome within a Batch run.
type BatchResult struct {
	ScriptPath string
	Steps      []StepResult
	Vars       map[string]any
	ExitCode   int
	Skipped    bool
	Err        error // script-level failure: read, parse, or browser launch
}

// OptionsFor builds the per-script runner Options; it is called once per
// script, on whichever worker goroutine picks it up, so it must be safe
// to call concurrently.
type OptionsFor func(scriptPath string) Options

// Batch runs every script in paths across a fixed-size worker pool
// (default 1). Each worker owns its own browser instance; the only state
// shared between workers is the next-index counter and the bailed flag,
// both atomic. Results preserve the input order by indexing into a
// pre-sized slice rather than appending as workers finish.
//
// Once any worker produces a non-zero exit code and bail is true,
// remaining not-yet-started scripts are marked Skipped; scripts already
// running are allowed to complete.
func Batch(ctx context.Context, paths []string, optsFor OptionsFor, browserCfg browser.Config, workers int, bail bool) ([]BatchResult, error) {
	if workers <= 0 {
		workers = 1
	}

	results := make([]BatchResult, len(paths))
	var next atomic.Int64
	var bailed atomic.Bool

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			for {
				i := int(next.Add(1)) - 1
				if i >= len(paths) {
					return nil
				}
				if bailed.Load() {
					results[i] = BatchResult{ScriptPath: paths[i], Skipped: true, ExitCode: bserr.KindSkipped.ExitCode()}
					continue
				}

				res := runOne(egCtx, paths[i], optsFor, browserCfg)
				results[i] = res
				if res.ExitCode != 0 && bail {
					bailed.Store(true)
				}
			}
		})
	}

	if err := eg.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func runOne(ctx context.Context, path string, optsFor OptionsFor, browserCfg browser.Config) BatchResult {
	raw, err := os.ReadFile(path)
	if err != nil {
		return BatchResult{ScriptPath: path, Err: fmt.Errorf("read %s: %w", path, err), ExitCode: bserr.KindTimeout.ExitCode()}
	}
	script, _, err := bsl.Parse(raw)
	if err != nil {
		return BatchResult{ScriptPath: path, Err: fmt.Errorf("parse %s: %w", path, err), ExitCode: bserr.KindTimeout.ExitCode()}
	}
	if errs := bsl.Validate(*script); len(errs) > 0 {
		return BatchResult{ScriptPath: path, Err: fmt.Errorf("validate %s: %v", path, errs), ExitCode: bserr.KindTimeout.ExitCode()}
	}

	sess, err := browser.Start(ctx, browserCfg)
	if err != nil {
		return BatchResult{ScriptPath: path, Err: fmt.Errorf("launch browser for %s: %w", path, err), ExitCode: bserr.KindTimeout.ExitCode()}
	}
	defer sess.Close()

	opts := optsFor(path)
	steps, vars := Run(ctx, sess.Page(), script, opts)

	return BatchResult{
		ScriptPath: path,
		Steps:      steps,
		Vars:       vars,
		ExitCode:   worstExitCode(steps),
	}
}

func worstExitCode(steps []StepResult) int {
	code := 0
	for _, s := range steps {
		if s.Err == nil {
			continue
		}
		if k := bserr.KindOf(s.Err); k.ExitCode() != 0 && code == 0 {
			code = k.ExitCode()
		}
	}
	return code
}
