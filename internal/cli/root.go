// Package cli wires configuration, stores, broker, and orchestrator into
// the rebalancer command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	logLevel   string
	account    string
}

// NewRootCmd builds the rebalancer command tree.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "rebalancer",
		Short:         "Portfolio rebalance and order execution engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&flags.account, "account", "", "account id (overrides the configured one)")

	cmd.AddCommand(
		newRunCmd(flags),
		newCancelCmd(flags),
		newOrdersCmd(flags),
		newHoldingsCmd(flags),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the command tree and reports whether it succeeded.
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
