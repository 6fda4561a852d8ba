package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexuscore/agentcore/internal/storage"
)

// buildIdentityCmd creates the "identity" command group (spec.md §6.4:
// "identity status|reset").
func buildIdentityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Inspect or reset the agent's persisted identity",
	}
	cmd.AddCommand(buildIdentityStatusCmd(), buildIdentityResetCmd())
	return cmd
}

func buildIdentityStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the current identity and its version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			stores, err := storage.OpenSQLite(cfg.Storage.DataDir + "/" + cfg.Storage.StoreFile)
			if err != nil {
				return startupErr(fmt.Errorf("open storage: %w", err))
			}
			defer stores.Close()

			id, err := stores.Identity.Get(cmd.Context())
			if err != nil {
				return startupErr(fmt.Errorf("load identity: %w", err))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "creator:             %s\n", id.Creator)
			fmt.Fprintf(out, "display_name:        %s\n", id.DisplayName)
			fmt.Fprintf(out, "purpose:             %s\n", id.Purpose)
			fmt.Fprintf(out, "personality:         %s\n", id.Personality)
			fmt.Fprintf(out, "communication_style: %s\n", id.CommunicationStyle)
			fmt.Fprintf(out, "version:             %d\n", id.Version)
			fmt.Fprintf(out, "updated_at:          %s\n", id.UpdatedAt)
			return nil
		},
	}
}

// identityResetFields are the scalar columns identity.Evolve can mutate
// (internal/storage's identityColumn allow-list); values/beliefs/
// curiosities/boundaries/capabilities have no Evolve path and are left
// untouched by a reset.
var identityResetFields = []string{"display_name", "purpose", "personality", "communication_style"}

func buildIdentityResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the mutable identity fields back to empty, preserving creator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			stores, err := storage.OpenSQLite(cfg.Storage.DataDir + "/" + cfg.Storage.StoreFile)
			if err != nil {
				return startupErr(fmt.Errorf("open storage: %w", err))
			}
			defer stores.Close()

			ctx := cmd.Context()
			for _, field := range identityResetFields {
				if err := stores.Identity.Evolve(ctx, field, "", "operator reset", 1.0, "cli_reset"); err != nil {
					return startupErr(fmt.Errorf("reset %s: %w", field, err))
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "identity reset to blank mutable fields")
			return nil
		},
	}
}
