package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nexuscore/agentcore/internal/agent"
	"github.com/nexuscore/agentcore/pkg/models"
)

// buildChatCmd creates the "chat" command (spec.md §6.4): a local,
// interactive owner-tier session run directly against the pipeline, with no
// gateway listener involved.
func buildChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session on the local terminal",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	v, err := unlockVault(cfg)
	if err != nil {
		return err
	}
	defer v.Close()

	rt, err := buildRuntime(cfg, v, nil)
	if err != nil {
		return startupErr(err)
	}
	defer rt.Close()

	ctx := cmd.Context()
	session, err := rt.sessionRouter.Connect(ctx, "cli", "local-operator")
	if err != nil {
		return startupErr(fmt.Errorf("open session: %w", err))
	}

	out := cmd.OutOrStdout()
	approve := agent.StoreBackedApproval(rt.stores.Approvals, func(ctx context.Context, req *models.ApprovalRequest) (models.ApprovalStatus, error) {
		fmt.Fprintf(out, "\napproval requested for %s %s — approve? [y/N] ", req.ToolName, req.ParamsJSON)
		answer, err := readLine("")
		if err != nil {
			return models.ApprovalDenied, err
		}
		if strings.EqualFold(strings.TrimSpace(answer), "y") {
			return models.ApprovalApproved, nil
		}
		return models.ApprovalDenied, nil
	})

	pipeline := agent.NewPipeline(rt.llmRouter, rt.stores.Sessions, rt.stores.Memories, agent.LoopConfig{
		MaxRounds: cfg.Gateway.MaxRounds,
		MaxTokens: 4096,
		Reflect:   true,
	})

	fmt.Fprintln(out, "chat session started; type a message, or Ctrl-D to quit.")
	reader := bufio.NewReader(cmd.InOrStdin())
	taskID := uuid.NewString()
	for {
		fmt.Fprint(out, "> ")
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			exec := agent.NewExecutor(rt.registry, rt.engine, approve, session.AuthorityTier)
			exec.SetScheduleStore(rt.stores.Schedules)
			result, runErr := pipeline.Run(ctx, session, exec, models.TaskTypeSimple, line, taskID)
			if runErr != nil {
				fmt.Fprintf(out, "error: %v\n", runErr)
			} else {
				fmt.Fprintln(out, result.AssistantText)
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return startupErr(err)
		}
	}
	return nil
}
