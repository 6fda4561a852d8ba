package goals

import (
	"fmt"
	"strings"

	"github.com/nexuscore/agentcore/pkg/models"
)

// buildSystemPrompt assembles the fresh system prompt for one checkpoint
// turn (spec §4.3 step 3: "goal id, progress X/Y, current checkpoint
// details, context summary, completed + remaining checkpoint lists").
func buildSystemPrompt(goal *models.Goal, checkpoints []*models.Checkpoint, active *models.Checkpoint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are executing one checkpoint of an autonomous goal (goal_id=%s).\n", goal.GoalID)
	fmt.Fprintf(&b, "Overall goal: %s\n", goal.Goal)
	fmt.Fprintf(&b, "Progress: checkpoint %d of %d.\n\n", active.Order+1, len(checkpoints))
	fmt.Fprintf(&b, "Current checkpoint: %s\n%s\nSuccess criteria: %s\n\n", active.Title, active.Description, active.SuccessCriteria)

	if goal.ContextSummary != "" {
		fmt.Fprintf(&b, "Context summary from prior checkpoints:\n%s\n\n", goal.ContextSummary)
	}

	var completed, remaining []string
	for _, c := range checkpoints {
		switch {
		case c.Order == active.Order:
			continue
		case c.Status == models.CheckpointCompleted:
			completed = append(completed, fmt.Sprintf("#%d %s", c.Order, c.Title))
		case c.Status != models.CheckpointFailed:
			remaining = append(remaining, fmt.Sprintf("#%d %s", c.Order, c.Title))
		}
	}
	if len(completed) > 0 {
		fmt.Fprintf(&b, "Completed checkpoints: %s\n", strings.Join(completed, "; "))
	}
	if len(remaining) > 0 {
		fmt.Fprintf(&b, "Remaining checkpoints: %s\n", strings.Join(remaining, "; "))
	}

	b.WriteString("\nWork this checkpoint to completion using the tools available to you. When you believe the success criteria are met, say so plainly in your final response.")
	return b.String()
}

// kickoffTurn is the seed user turn IsolatedTurn hands the fresh conversation
// (the isolated history contains only this turn at turn start).
func kickoffTurn(active *models.Checkpoint) string {
	return fmt.Sprintf("Begin checkpoint %q now.", active.Title)
}
