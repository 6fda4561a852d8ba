package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nexuscore/agentcore/internal/scheduler"
	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/pkg/models"
)

// buildScheduleCmd creates the "schedule" command group (spec.md §6.4:
// "schedule list|create|delete"), operating directly on storage.ScheduleStore
// — no running runtime is required since the scheduler only reads rows on
// its own tick.
func buildScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage scheduled (cron-driven) goals",
	}
	cmd.AddCommand(buildScheduleListCmd(), buildScheduleCreateCmd(), buildScheduleDeleteCmd())
	return cmd
}

func openScheduleStore() (storage.StoreSet, error) {
	cfg, err := loadConfig()
	if err != nil {
		return storage.StoreSet{}, err
	}
	stores, err := storage.OpenSQLite(cfg.Storage.DataDir + "/" + cfg.Storage.StoreFile)
	if err != nil {
		return storage.StoreSet{}, startupErr(fmt.Errorf("open storage: %w", err))
	}
	return stores, nil
}

func buildScheduleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every scheduled task",
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := openScheduleStore()
			if err != nil {
				return err
			}
			defer stores.Close()
			tasks, err := stores.Schedules.List(cmd.Context())
			if err != nil {
				return startupErr(err)
			}
			out := cmd.OutOrStdout()
			for _, t := range tasks {
				next := "none"
				if t.NextRun != nil {
					next = t.NextRun.Format(time.RFC3339)
				}
				fmt.Fprintf(out, "%s\t%s\t%q\tenabled=%v\tnext=%s\n", t.ID, t.Name, t.ScheduleExpr, t.Enabled, next)
			}
			return nil
		},
	}
}

func buildScheduleCreateCmd() *cobra.Command {
	var name, expr, goal string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a scheduled goal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || expr == "" || goal == "" {
				return configErr(fmt.Errorf("--name, --cron, and --goal are all required"))
			}
			next, err := scheduler.NextOccurrence(expr, time.Now())
			if err != nil {
				return configErr(err)
			}
			stores, err := openScheduleStore()
			if err != nil {
				return err
			}
			defer stores.Close()
			task := &models.ScheduledTask{
				ID:           uuid.NewString(),
				Name:         name,
				ScheduleExpr: expr,
				Goal:         goal,
				Enabled:      true,
				NextRun:      &next,
			}
			if err := stores.Schedules.Create(cmd.Context(), task); err != nil {
				return startupErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created schedule %s (next run %s)\n", task.ID, next.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Schedule name")
	cmd.Flags().StringVar(&expr, "cron", "", "Cron expression (optional leading seconds field, or @hourly/@daily/...)")
	cmd.Flags().StringVar(&goal, "goal", "", "Goal text to run on each fire")
	return cmd
}

func buildScheduleDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a scheduled task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := openScheduleStore()
			if err != nil {
				return err
			}
			defer stores.Close()
			if err := stores.Schedules.Delete(cmd.Context(), args[0]); err != nil {
				return startupErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted schedule %s\n", args[0])
			return nil
		},
	}
}
