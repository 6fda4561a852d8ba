package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nexuscore/agentcore/internal/storage"
)

// buildRollbackCmd creates "rollback <revision>" (spec.md §6.4). Identity is
// the only entity in storage.md §4.5 with a version counter and an
// append-only evolution log (identity_evolution), so a schema/content
// revision here means reverting the persisted Identity row to the state it
// was in at a prior version — not a database schema migration rollback,
// which this module's linear, forward-only migration list (internal/storage
// migrations) has no "down" step for.
func buildRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <revision>",
		Short: "Revert the agent identity to a prior version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.Atoi(args[0])
			if err != nil || target < 1 {
				return configErr(fmt.Errorf("revision must be a positive integer, got %q", args[0]))
			}
			return runRollback(cmd, target)
		},
	}
}

func runRollback(cmd *cobra.Command, target int) error {
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
	id, err := stores.Identity.Get(ctx)
	if err != nil {
		return startupErr(fmt.Errorf("load identity: %w", err))
	}
	if target >= id.Version {
		return configErr(fmt.Errorf("identity is already at version %d, nothing to roll back to reach %d", id.Version, target))
	}

	steps := id.Version - target
	evolutions, err := stores.Identity.Evolutions(ctx, steps)
	if err != nil {
		return startupErr(fmt.Errorf("load evolution log: %w", err))
	}
	if len(evolutions) < steps {
		return startupErr(fmt.Errorf("evolution log has only %d entries, cannot reach revision %d", len(evolutions), target))
	}

	// Evolutions is ordered most-recent-first; undo each in that order by
	// restoring its pre-change value, which is itself recorded as a new
	// evolution (append-only log, spec §3 invariant — a rollback is a
	// forward-moving revert, not a history rewrite).
	for _, e := range evolutions[:steps] {
		reason := fmt.Sprintf("rollback to revision %d", target)
		if err := stores.Identity.Evolve(ctx, e.Field, e.Old, reason, 1.0, "cli_rollback"); err != nil {
			return startupErr(fmt.Errorf("revert field %s: %w", e.Field, err))
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "reverted %d evolution step(s); identity now effectively at revision %d\n", steps, target)
	return nil
}
