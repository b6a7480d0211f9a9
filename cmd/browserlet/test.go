package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/browserlet/browserlet/internal/browser"
	"github.com/browserlet/browserlet/internal/bserr"
	"github.com/browserlet/browserlet/internal/bsl"
	"github.com/browserlet/browserlet/internal/repair"
	"github.com/browserlet/browserlet/internal/resolver"
	"github.com/browserlet/browserlet/internal/runner"
	"github.com/browserlet/browserlet/internal/substitute"
)

var testCmd = &cobra.Command{
	Use:   "test <dir>",
	Short: "Run every .bsl script in a directory through a worker pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := runBatch(cmd, args[0])
		if err != nil {
			return newExitError(code, err)
		}
		if code != 0 {
			return newExitError(code, fmt.Errorf("test run failed with exit code %d", code))
		}
		return nil
	},
}

// runBatch fans a directory of scripts out across runner.Batch. Unlike
// run.go's single-script path, a batch worker parses and discards each
// script's yaml.Node document internally (runner.runOne), so there is no
// document tree left to rewrite a repair suggestion into; --auto-repair
// and --interactive here only ever affect the in-memory retry, never the
// on-disk .bsl file.
func runBatch(cmd *cobra.Command, dir string) (int, error) {
	paths, err := discoverScripts(dir)
	if err != nil {
		return bserr.KindTimeout.ExitCode(), err
	}
	if len(paths) == 0 {
		return 0, nil
	}

	flags := cmd.Flags()
	headed, _ := flags.GetBool("headed")
	timeout, _ := flags.GetDuration("timeout")
	outputDir, _ := flags.GetString("output-dir")
	useVault, _ := flags.GetBool("vault")
	autoRepair, _ := flags.GetBool("auto-repair")
	interactive, _ := flags.GetBool("interactive")
	workers, _ := flags.GetInt("workers")
	bail, _ := flags.GetBool("bail")

	if timeout == 0 {
		timeout = cfg.GlobalTimeout
	}
	if timeout == 0 {
		timeout = defaultStepTimeout
	}
	if outputDir == "" {
		outputDir = cfg.OutputDir
	}

	browserCfg := browser.DefaultConfig()
	browserCfg.Headless = !headed && cfg.Headless

	var credResolver substitute.CredentialResolver = substitute.NoVault{}
	if useVault {
		v, unlockErr := unlockVaultForRun()
		if unlockErr != nil {
			return bserr.KindTimeout.ExitCode(), fmt.Errorf("vault: %w", unlockErr)
		}
		rv := newRedactingVault(v)
		defer rv.forgetAll()
		credResolver = rv
	}

	var repairProvider runner.RepairProvider
	if autoRepair || interactive {
		repairProvider = inMemoryRepairAdapter{
			engine:      repair.New(buildProvider(), nil, nil, ""),
			autoRepair:  autoRepair,
			interactive: interactive,
		}
	}

	optsFor := func(scriptPath string) runner.Options {
		return runner.Options{
			Vault: credResolver,
			ResolverOpts: resolver.Options{
				Threshold: cfg.Threshold,
				Margin:    cfg.Margin,
			},
			GlobalTimeout: timeout,
			OutputDir:     outputDir,
			ScriptName:    filepath.Base(scriptPath),
			ScriptPath:    scriptPath,
			AutoRepair:    autoRepair,
			Interactive:   interactive,
			InteractiveYN: promptYN,
			Repair:        repairProvider,
			Logger:        logger,
		}
	}

	results, err := runner.Batch(context.Background(), paths, optsFor, browserCfg, workers, bail)
	if err != nil {
		return bserr.KindTimeout.ExitCode(), err
	}

	code := 0
	for _, r := range results {
		fmt.Printf("%s: ", r.ScriptPath)
		switch {
		case r.Skipped:
			fmt.Println("skipped")
		case r.Err != nil:
			fmt.Printf("error: %v\n", r.Err)
		case r.ExitCode != 0:
			fmt.Printf("failed (exit %d)\n", r.ExitCode)
		default:
			fmt.Println("ok")
		}
		if r.ExitCode != 0 && code == 0 {
			code = r.ExitCode
		}
	}
	return code, nil
}

func discoverScripts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".bsl" {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// inMemoryRepairAdapter wraps a repair.Engine built with no document tree
// and no script path, so a suggestion never reaches disk; it decides
// acceptance itself (mirroring run.go's repairAdapter) since the runner
// treats any hints it returns as already accepted. It exists for batch
// runs, where no single yaml.Node document is held open across the whole
// worker pool to rewrite.
type inMemoryRepairAdapter struct {
	engine      *repair.Engine
	autoRepair  bool
	interactive bool
}

func (a inMemoryRepairAdapter) Repair(ctx context.Context, step bsl.Step, diag *resolver.Diagnostic, pageURL string) ([]bsl.Hint, float64, string, error) {
	hints, confidence, reasoning, err := a.engine.Repair(ctx, step, diag, pageURL)
	if err != nil || len(hints) == 0 {
		return nil, 0, "", err
	}

	accept := a.autoRepair && confidence >= 0.70
	if a.interactive {
		accept = promptYN(step, hints, reasoning, confidence)
	}
	if !accept {
		return nil, 0, "", nil
	}
	return hints, confidence, reasoning, nil
}
