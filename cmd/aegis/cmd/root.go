// Package cmd provides the CLI commands for the Aegis gateway.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "aegis",
	Short: "Aegis - policy gateway for agent tool calls",
	Long: `Aegis is a reverse-proxy gateway that enforces declarative
least-privilege policy on agent tool calls.

Agents call tools through the gateway (POST /tools/{tool}/{action});
every call is evaluated against YAML policy files, and the decision is
traced, logged, and kept in an in-memory audit ring. Policies reload
atomically when the policy directory changes.

Configuration:
  Config is loaded from aegis.yaml in the current directory,
  $HOME/.aegis/, or /etc/aegis/. Plain environment variables override
  file values: PORT, POLICY_DIR, OTEL_ENDPOINT, DECISION_RING_SIZE,
  APPROVAL_TTL_SECONDS.

Commands:
  serve       Start the gateway
  validate    Validate the policy directory without serving
  version     Print version information`,
}

// exitError carries a process exit code through cobra's error return.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// Execute runs the root command and maps failures to exit codes: 1 for
// startup errors such as an unreadable policy directory, 2 when the listener
// cannot bind.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./aegis.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
