package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/browserlet/browserlet/internal/browser"
	"github.com/browserlet/browserlet/internal/bserr"
	"github.com/browserlet/browserlet/internal/bsl"
	"github.com/browserlet/browserlet/internal/repair"
	"github.com/browserlet/browserlet/internal/repair/claude"
	"github.com/browserlet/browserlet/internal/repair/ollama"
	"github.com/browserlet/browserlet/internal/resolver"
	"github.com/browserlet/browserlet/internal/runner"
	"github.com/browserlet/browserlet/internal/substitute"
	"github.com/browserlet/browserlet/internal/vault"
)

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a single BSL script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := runScript(cmd, args[0])
		if err != nil {
			return newExitError(code, err)
		}
		if code != 0 {
			return newExitError(code, fmt.Errorf("run failed with exit code %d", code))
		}
		return nil
	},
}

func runScript(cmd *cobra.Command, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return bserr.KindTimeout.ExitCode(), fmt.Errorf("read script: %w", err)
	}
	script, doc, err := bsl.Parse(raw)
	if err != nil {
		return bserr.KindTimeout.ExitCode(), fmt.Errorf("parse script: %w", err)
	}
	if errs := bsl.Validate(*script); len(errs) > 0 {
		return bserr.KindTimeout.ExitCode(), fmt.Errorf("validate script: %v", errs)
	}

	flags := cmd.Flags()
	headed, _ := flags.GetBool("headed")
	timeout, _ := flags.GetDuration("timeout")
	outputDir, _ := flags.GetString("output-dir")
	useVault, _ := flags.GetBool("vault")
	microPrompts, _ := flags.GetBool("micro-prompts")
	autoRepair, _ := flags.GetBool("auto-repair")
	interactive, _ := flags.GetBool("interactive")
	diagnosticJSON, _ := flags.GetBool("diagnostic-json")
	sessionRestore, _ := flags.GetString("session-restore")

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
	if sessionRestore != "" {
		browserCfg.DebuggerURL = sessionRestore
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := browser.Start(ctx, browserCfg)
	if err != nil {
		return bserr.KindTimeout.ExitCode(), fmt.Errorf("launch browser: %w", err)
	}
	defer sess.Close()

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

	var micro resolver.MicroPromptProvider
	var repairEngine *repair.Engine
	if microPrompts || autoRepair {
		provider := buildProvider()
		repairEngine = repair.New(provider, doc, script, path)
		if microPrompts {
			micro = microPromptAdapter{provider: provider}
		}
	}

	opts := runner.Options{
		Vault: credResolver,
		ResolverOpts: resolver.Options{
			Threshold:   cfg.Threshold,
			Margin:      cfg.Margin,
			MicroPrompt: micro,
		},
		GlobalTimeout: timeout,
		OutputDir:     outputDir,
		ScriptName:    script.Name,
		ScriptPath:    path,
		AutoRepair:    autoRepair,
		Interactive:   interactive,
		InteractiveYN: promptYN,
		Logger:        logger,
	}
	if repairEngine != nil {
		opts.Repair = repairAdapter{engine: repairEngine, opts: &opts}
	}

	results, _ := runner.Run(ctx, sess.Page(), script, opts)
	return reportResults(results, diagnosticJSON)
}

// repairAdapter bridges repair.Engine into runner.RepairProvider. It
// decides acceptance itself (the auto-repair confidence threshold, or the
// operator's answer when --interactive is set) and persists an accepted
// suggestion through Engine.Apply before returning it: the runner treats
// any hints it gets back as already accepted and retries with them in
// memory, so persisting first keeps the in-memory hints and the on-disk
// file in agreement.
type repairAdapter struct {
	engine *repair.Engine
	opts   *runner.Options
}

func (r repairAdapter) Repair(ctx context.Context, step bsl.Step, diag *resolver.Diagnostic, pageURL string) ([]bsl.Hint, float64, string, error) {
	hints, confidence, reasoning, err := r.engine.Repair(ctx, step, diag, pageURL)
	if err != nil || len(hints) == 0 {
		return nil, 0, "", err
	}
	accept := confidence >= 0.70 && r.opts.AutoRepair
	if r.opts.Interactive && r.opts.InteractiveYN != nil {
		accept = r.opts.InteractiveYN(step, hints, reasoning, confidence)
	}
	if !accept {
		return nil, 0, "", nil
	}
	if applyErr := r.engine.Apply(step, hints, confidence, reasoning, pageURL); applyErr != nil {
		logger.Warn("repair: failed to persist accepted suggestion", zap.Error(applyErr))
	}
	return hints, confidence, reasoning, nil
}

type microPromptAdapter struct {
	provider repair.Provider
}

func (m microPromptAdapter) Choose(ctx context.Context, intent string, candidates []resolver.Candidate) (int, error) {
	// The micro-prompt stage reuses the same repair provider contract: it
	// asks for a hint set from the intent alone (the candidates are not
	// sent to the provider) and picks the first candidate whose id or name
	// one of the suggested hints matches.
	req := repair.Request{Intent: intent}
	sugg, err := m.provider.SuggestHints(ctx, req)
	if err != nil || len(sugg.Hints) == 0 {
		return -1, fmt.Errorf("micro-prompt: no usable suggestion")
	}
	for i, c := range candidates {
		if candidateMatchesAnyHint(c, sugg.Hints) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("micro-prompt: suggestion matched no candidate")
}

func candidateMatchesAnyHint(c resolver.Candidate, hints []bsl.Hint) bool {
	for _, h := range hints {
		if h.Type == bsl.HintID && c.Attributes["id"] == h.Value {
			return true
		}
		if h.Type == bsl.HintName && c.Attributes["name"] == h.Value {
			return true
		}
	}
	return false
}

func buildProvider() repair.Provider {
	switch cfg.LLM.Provider {
	case "ollama":
		return ollama.New(cfg.LLM.BaseURL, cfg.LLM.Model)
	default:
		return claude.New(os.Getenv("ANTHROPIC_API_KEY"), cfg.LLM.BaseURL, cfg.LLM.Model)
	}
}

func unlockVaultForRun() (*vault.Vault, error) {
	if v, ok := vault.UnlockCached(cfg.Vault.Path); ok {
		return v, nil
	}
	passphrase := os.Getenv("BROWSERLET_VAULT_PASSPHRASE")
	if passphrase == "" {
		return nil, fmt.Errorf("BROWSERLET_VAULT_PASSPHRASE not set")
	}
	return vault.Unlock(cfg.Vault.Path, passphrase)
}

func promptYN(step bsl.Step, hints []bsl.Hint, reasoning string, confidence float64) bool {
	fmt.Printf("repair suggestion for step %s (confidence %.2f): %s\n", step.EffectiveID(), confidence, reasoning)
	for _, h := range hints {
		fmt.Printf("  - %s: %s\n", h.Type, h.Value)
	}
	fmt.Print("apply? [y/N] ")
	var answer string
	fmt.Scanln(&answer)
	return answer == "y" || answer == "Y"
}

func reportResults(results []runner.StepResult, diagnosticJSON bool) (int, error) {
	code := 0
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		k := bserr.KindOf(r.Err)
		if k.ExitCode() != 0 && code == 0 {
			code = k.ExitCode()
		}

		fmt.Fprintf(os.Stderr, "step %s failed: %v\n", r.StepID, r.Err)
		if r.ScreenshotPath != "" {
			fmt.Fprintf(os.Stderr, "  screenshot: %s\n", r.ScreenshotPath)
		}
		if r.Diagnostic != nil {
			if diagnosticJSON {
				enc, _ := json.MarshalIndent(r.Diagnostic, "", "  ")
				fmt.Fprintln(os.Stderr, string(enc))
			} else {
				fmt.Fprintf(os.Stderr, "  stage: %s, threshold: %.2f, best: %s, gap: %.2f\n",
					r.Diagnostic.FailedAtStage, r.Diagnostic.Confidence.Threshold,
					formatBestScore(r.Diagnostic.Confidence.BestScore), r.Diagnostic.Confidence.Gap)
				fmt.Fprintf(os.Stderr, "  suggestion: %s\n", r.Diagnostic.Suggestion)
			}
		}
	}
	return code, nil
}

func formatBestScore(s *float64) string {
	if s == nil {
		return "none"
	}
	return fmt.Sprintf("%.2f", *s)
}
