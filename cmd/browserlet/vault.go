package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/browserlet/browserlet/internal/vault"
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage the encrypted credential store",
}

var vaultInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new, empty vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := readNewPassphrase()
		if err != nil {
			return err
		}
		if err := vault.Init(cfg.Vault.Path, passphrase); err != nil {
			return err
		}
		fmt.Printf("vault created at %s\n", cfg.Vault.Path)
		return nil
	},
}

var vaultAddCmd = &cobra.Command{
	Use:   "add <alias>",
	Short: "Store a new credential under alias",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := unlockVaultInteractive()
		if err != nil {
			return err
		}
		value, err := readSecret("value: ")
		if err != nil {
			return err
		}
		if _, err := v.Add(args[0], value); err != nil {
			return err
		}
		fmt.Printf("stored %q\n", args[0])
		return nil
	},
}

var vaultDelCmd = &cobra.Command{
	Use:   "del <alias>",
	Short: "Remove a stored credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := unlockVaultInteractive()
		if err != nil {
			return err
		}
		if err := v.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("removed %q\n", args[0])
		return nil
	},
}

var vaultListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credential aliases",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := unlockVaultInteractive()
		if err != nil {
			return err
		}
		for _, c := range v.List() {
			fmt.Printf("%s\t%s\tcreated %s\tupdated %s\n", c.Alias, c.ID,
				c.CreatedAt.Format("2006-01-02 15:04:05"), c.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var vaultLockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Start the localhost credential bridge and wait for a signal to stop",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := unlockVaultInteractive()
		if err != nil {
			return err
		}
		bridge := vault.NewBridge(v, cfg.Vault.BridgeAddr)
		ctx := context.Background()
		if err := bridge.Start(ctx); err != nil {
			return fmt.Errorf("start bridge: %w", err)
		}
		fmt.Println("vault bridge listening; press Ctrl+C to stop")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		stopCtx, cancel := context.WithTimeout(context.Background(), defaultStepTimeout)
		defer cancel()
		return bridge.Stop(stopCtx)
	},
}

var vaultResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the vault file entirely",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("yes")
		if !confirm && !promptConfirm("this deletes every stored credential, continue?") {
			return nil
		}
		if err := vault.Reset(cfg.Vault.Path); err != nil {
			return err
		}
		fmt.Println("vault reset")
		return nil
	},
}

var vaultImportCmd = &cobra.Command{
	Use:   "import-from-extension <alias>",
	Short: "Mint a one-shot bridge token for a browser extension to exchange for a credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := unlockVaultInteractive()
		if err != nil {
			return err
		}
		bridge := vault.NewBridge(v, cfg.Vault.BridgeAddr)
		if err := bridge.Start(context.Background()); err != nil {
			return fmt.Errorf("start bridge: %w", err)
		}
		token, err := bridge.GenerateToken(args[0], 0)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	vaultResetCmd.Flags().Bool("yes", false, "skip the confirmation prompt")
}

func unlockVaultInteractive() (*vault.Vault, error) {
	if v, ok := vault.UnlockCached(cfg.Vault.Path); ok {
		return v, nil
	}
	if passphrase := os.Getenv("BROWSERLET_VAULT_PASSPHRASE"); passphrase != "" {
		return vault.Unlock(cfg.Vault.Path, passphrase)
	}
	passphrase, err := readSecret("vault passphrase: ")
	if err != nil {
		return nil, err
	}
	return vault.Unlock(cfg.Vault.Path, passphrase)
}

func readNewPassphrase() (string, error) {
	first, err := readSecret("passphrase: ")
	if err != nil {
		return "", err
	}
	second, err := readSecret("confirm passphrase: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("passphrases did not match")
	}
	return first, nil
}

// readSecret reads a line without echoing it when stdin is a terminal,
// falling back to a plain scanned line (e.g. under a test harness or a
// piped passphrase) when it is not.
func readSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("read passphrase: %w", err)
		}
		return string(b), nil
	}
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return "", fmt.Errorf("read passphrase: %w", scanner.Err())
	}
	return scanner.Text(), nil
}

func promptConfirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	var answer string
	fmt.Scanln(&answer)
	return answer == "y" || answer == "Y"
}
