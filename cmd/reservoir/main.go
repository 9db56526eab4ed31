// CLAUDE:SUMMARY Entry point for the reservoir CLI — cobra commands over one shared Service per invocation.
// Command reservoir manages a directory-backed content archive: periodic
// sources, retention locks, and a size-budgeted store.
//
// The reservoir root is taken from --root or RESERVOIR_ROOT, defaulting to
// the current directory. Every invocation operates directly on the on-disk
// state, so short-lived commands coexist with a running daemon.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/reservoir/reservoir"
)

var version = "dev"

func main() {
	logLevel := os.Getenv("LOG_LEVEL")
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	rootCmd := &cobra.Command{
		Use:           "reservoir",
		Short:         "Directory-backed content archive with retention locks",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("root", "", "reservoir root directory (default: $RESERVOIR_ROOT or .)")

	rootCmd.AddCommand(
		newSourceCmd(logger),
		newFetchCmd(logger),
		newDaemonCmd(logger),
		newStatusCmd(logger),
		newStopCmd(logger),
		newRetainCmd(logger),
		newReleaseCmd(logger),
		newListCmd(logger),
		newCatCmd(logger),
		newEvictCmd(logger),
		newConfigCmd(logger),
		newAdapterCmd(logger),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// serviceFromCmd opens the Service for the invocation's root directory.
func serviceFromCmd(cmd *cobra.Command, logger *slog.Logger) (*reservoir.Service, error) {
	root, _ := cmd.Flags().GetString("root")
	if root == "" {
		root = os.Getenv("RESERVOIR_ROOT")
	}
	if root == "" {
		root = "."
	}
	return reservoir.Open(root, logger)
}
