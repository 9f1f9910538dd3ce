// Package cmd provides the veto CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vetoguard/veto/internal/config"
)

// Exit codes per spec §6: 0 success, 1 validation/decision error, 2
// configuration error.
const (
	ExitOK       = 0
	ExitDecision = 1
	ExitConfig   = 2
)

var (
	cfgFile    string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "veto",
	Short: "veto - a policy decision core for AI agent tool calls",
	Long: `veto evaluates proposed AI agent tool calls against a signed,
versioned rule set and renders an allow/deny/modify decision.

Config is loaded from veto.yaml in the current directory, $HOME/.veto/, or
/etc/veto/. Environment variables override config values with the VETO_
prefix (e.g. VETO_SYNC_POLICY_SYNC_URL).

Commands:
  validate   Load and normalize rule files without deciding
  test       Run test cases against policies
  simulate   Decide a single input
  diff       Compare two rule sets by id
  deploy     Sign and publish a rule bundle
  hash-key   Hash a sync API key or bundle passphrase with argon2id
  version    Print version information`,
}

// Execute runs the root command and exits the process with the
// appropriate code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if ce, ok := err.(*configError); ok {
			_ = ce
			os.Exit(ExitConfig)
		}
		os.Exit(ExitDecision)
	}
}

// configError marks an error as a configuration failure (exit 2) rather
// than a validation/decision failure (exit 1).
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func wrapConfigErr(err error) error {
	if err == nil {
		return nil
	}
	return &configError{err: err}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./veto.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "machine-readable JSON output")
}

func initConfig() {
	config.InitViper(cfgFile)
}
