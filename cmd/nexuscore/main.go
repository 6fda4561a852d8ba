// Package main provides the CLI entry point for the runtime core (spec.md
// §6.4): init, chat, gateway, vault, schedule, rollback, and identity.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nexuscore/agentcore/internal/security"
)

// Build information, populated by -ldflags at release build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPath string

func main() {
	base := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(security.NewRedactingHandler(base))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	err := rootCmd.Execute()
	code := exitCodeFor(err)
	if err != nil {
		slog.Error("command failed", "error", err, "exit_code", code)
	}
	os.Exit(code)
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "nexuscore",
		Short:        "nexuscore - local multi-channel AI agent runtime",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	rootCmd.AddCommand(
		buildInitCmd(),
		buildChatCmd(),
		buildGatewayCmd(),
		buildVaultCmd(),
		buildScheduleCmd(),
		buildRollbackCmd(),
		buildIdentityCmd(),
	)
	return rootCmd
}

func defaultConfigPath() string {
	if p := os.Getenv("NEXUSCORE_CONFIG"); p != "" {
		return p
	}
	return "./nexuscore.yaml"
}
