// Command browserlet replays a recorded BSL workflow against a real
// browser, resolving each step's target through the five-stage Cascade
// Resolver instead of a brittle recorded CSS path.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/browserlet/browserlet/internal/config"
	"github.com/browserlet/browserlet/internal/logging"
)

var (
	verbose bool
	logger  *zap.Logger
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "browserlet",
	Short: "Replay recorded browser workflows via semantic element resolution",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(verbose)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	runCmd.Flags().Bool("headed", false, "run with a visible browser window")
	runCmd.Flags().Duration("timeout", 0, "global step timeout (default from config)")
	runCmd.Flags().String("output-dir", "", "directory for screenshots and extracted output")
	runCmd.Flags().Bool("vault", false, "unlock the credential vault for this run")
	runCmd.Flags().Bool("micro-prompts", false, "enable stage-4 LLM micro-prompt assist")
	runCmd.Flags().Bool("auto-repair", false, "apply high-confidence repair suggestions automatically")
	runCmd.Flags().Bool("interactive", false, "prompt before applying a repair suggestion")
	runCmd.Flags().Bool("diagnostic-json", false, "print a structured diagnostic on resolver failure")
	runCmd.Flags().String("session-restore", "", "reconnect to an existing browser session id instead of launching")

	testCmd.Flags().AddFlagSet(runCmd.Flags())
	testCmd.Flags().Int("workers", 1, "number of scripts to run concurrently")
	testCmd.Flags().Bool("bail", false, "stop launching new scripts after the first failure")

	vaultCmd.AddCommand(
		vaultInitCmd,
		vaultAddCmd,
		vaultDelCmd,
		vaultListCmd,
		vaultLockCmd,
		vaultResetCmd,
		vaultImportCmd,
	)

	rootCmd.AddCommand(runCmd, testCmd, vaultCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeOf(err))
	}
}

// exitCodeOf maps a top-level command error to a process exit code. A
// plain cobra usage error (bad flags, unknown command) exits 2, matching
// the infrastructure-error convention; a *exitError carries the runner's
// own decided code.
func exitCodeOf(err error) int {
	var ee *exitError
	if as(err, &ee) {
		return ee.code
	}
	return 2
}

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func as(err error, target **exitError) bool {
	for err != nil {
		if ee, ok := err.(*exitError); ok {
			*target = ee
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func newExitError(code int, err error) *exitError {
	return &exitError{code: code, err: err}
}

const defaultStepTimeout = 30 * time.Second
