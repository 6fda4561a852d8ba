package goals

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexuscore/agentcore/internal/llm"
	"github.com/nexuscore/agentcore/pkg/models"
)

const decomposeSystemPrompt = `You decompose an autonomous goal into an ordered checkpoint plan.
Respond with a JSON array only, no prose, no markdown fence. Each element:
{"title": string, "description": string, "success_criteria": string}
Produce between %d and %d checkpoints. Order them so each depends only on
checkpoints before it.`

// decompose runs the single decomposition LLM call (spec §4.3 "Decomposition:
// on goal creation, a single LLM call produces an ordered list of 3-20
// checkpoints, each with title, description, and objective success
// criteria").
func decompose(ctx context.Context, router *llm.Router, goalID, goalText string, limits Limits) ([]*models.Checkpoint, error) {
	req := llm.CompletionRequest{
		System: fmt.Sprintf(decomposeSystemPrompt, limits.MinCheckpoints, limits.MaxCheckpoints),
		Messages: []llm.Message{
			{Role: "user", Content: goalText},
		},
		MaxTokens: 2048,
	}
	resp, err := router.Complete(ctx, models.TaskTypePlanning, req)
	if err != nil {
		return nil, fmt.Errorf("goals: decompose goal: %w", err)
	}

	var raw []struct {
		Title           string `json:"title"`
		Description     string `json:"description"`
		SuccessCriteria string `json:"success_criteria"`
	}
	if err := json.Unmarshal(extractJSONArray(resp.Text), &raw); err != nil {
		return nil, fmt.Errorf("goals: parse decomposition response: %w", err)
	}
	if len(raw) < limits.MinCheckpoints {
		return nil, fmt.Errorf("goals: decomposition returned %d checkpoints, want at least %d", len(raw), limits.MinCheckpoints)
	}
	if len(raw) > limits.MaxCheckpoints {
		raw = raw[:limits.MaxCheckpoints]
	}

	out := make([]*models.Checkpoint, 0, len(raw))
	for i, c := range raw {
		out = append(out, &models.Checkpoint{
			GoalID:          goalID,
			Order:           i,
			Title:           c.Title,
			Description:     c.Description,
			SuccessCriteria: c.SuccessCriteria,
			Status:          models.CheckpointPending,
		})
	}
	return out, nil
}

// progressVerdict is evaluate_progress's parsed response (spec §4.3 step 6).
type progressVerdict struct {
	Action      string `json:"action"` // "continue" | "revise"
	Checkpoints []struct {
		Title           string `json:"title"`
		Description     string `json:"description"`
		SuccessCriteria string `json:"success_criteria"`
	} `json:"checkpoints,omitempty"`
}

const evaluateProgressSystemPrompt = `You review progress on a multi-step autonomous goal and decide whether the
remaining plan still makes sense. Respond with JSON only, no prose:
{"action": "continue"}
or, to replace every pending (not yet completed) checkpoint:
{"action": "revise", "checkpoints": [{"title": ..., "description": ..., "success_criteria": ...}, ...]}`

// evaluateProgress runs the evaluate_progress LLM call and, on a "revise"
// verdict, returns the replacement pending-checkpoint list (caller persists
// it via storage.GoalStore.ReplacePendingCheckpoints).
func evaluateProgress(ctx context.Context, router *llm.Router, goal *models.Goal, checkpoints []*models.Checkpoint) ([]*models.Checkpoint, error) {
	req := llm.CompletionRequest{
		System: evaluateProgressSystemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: summarizeCheckpointsForReview(goal, checkpoints)},
		},
		MaxTokens: 1536,
	}
	resp, err := router.Complete(ctx, models.TaskTypePlanning, req)
	if err != nil {
		return nil, fmt.Errorf("goals: evaluate_progress: %w", err)
	}

	var verdict progressVerdict
	if err := json.Unmarshal(extractJSONObject(resp.Text), &verdict); err != nil {
		return nil, fmt.Errorf("goals: parse evaluate_progress response: %w", err)
	}
	if verdict.Action != "revise" || len(verdict.Checkpoints) == 0 {
		return nil, nil
	}

	nextOrder := 0
	for _, c := range checkpoints {
		if c.Order >= nextOrder {
			nextOrder = c.Order + 1
		}
	}
	revised := make([]*models.Checkpoint, 0, len(verdict.Checkpoints))
	for i, c := range verdict.Checkpoints {
		revised = append(revised, &models.Checkpoint{
			GoalID:          goal.GoalID,
			Order:           nextOrder + i,
			Title:           c.Title,
			Description:     c.Description,
			SuccessCriteria: c.SuccessCriteria,
			Status:          models.CheckpointPending,
		})
	}
	return revised, nil
}

func summarizeCheckpointsForReview(goal *models.Goal, checkpoints []*models.Checkpoint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\n", goal.Goal)
	for _, c := range checkpoints {
		fmt.Fprintf(&b, "[%s] #%d %s - %s\n", c.Status, c.Order, c.Title, c.ResultSummary)
	}
	return b.String()
}

// summarizeCheckpoint runs the cheap per-checkpoint result summary call
// (spec §4.3 step 5 "summarize the checkpoint result with a cheap LLM
// call").
func summarizeCheckpoint(ctx context.Context, router *llm.Router, checkpoint *models.Checkpoint, turnText string) (string, error) {
	req := llm.CompletionRequest{
		System: "Summarize this checkpoint's outcome in one or two sentences, stating whether its success criteria were met.",
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf("Checkpoint: %s\nSuccess criteria: %s\nAgent turn output:\n%s", checkpoint.Title, checkpoint.SuccessCriteria, turnText)},
		},
		MaxTokens: 256,
	}
	resp, err := router.Complete(ctx, models.TaskTypeSimple, req)
	if err != nil {
		return "", fmt.Errorf("goals: summarize checkpoint: %w", err)
	}
	return resp.Text, nil
}

// compressConversation runs the rolling-summary compression call (spec
// §4.3 step 7), bounded to maxTokens via a 4-chars-per-token heuristic since
// exact tokenization is provider-specific.
func compressConversation(ctx context.Context, router *llm.Router, goal *models.Goal, conversation []models.Turn, maxTokens int) (string, error) {
	var transcript strings.Builder
	for _, t := range conversation {
		fmt.Fprintf(&transcript, "%s: %s\n", t.Role, t.Content)
	}
	req := llm.CompletionRequest{
		System: "Compress this goal's working context into a concise rolling summary an agent can resume from. Preserve concrete facts, decisions, and file/resource names. Drop conversational filler.",
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf("Prior summary:\n%s\n\nRecent turns:\n%s", goal.ContextSummary, transcript.String())},
		},
		MaxTokens: maxTokens,
	}
	resp, err := router.Complete(ctx, models.TaskTypeSimple, req)
	if err != nil {
		return "", fmt.Errorf("goals: compress conversation: %w", err)
	}
	return clampToTokenBudget(resp.Text, maxTokens), nil
}

func clampToTokenBudget(text string, maxTokens int) string {
	maxChars := maxTokens * 4
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	return text[:maxChars]
}

// extractJSONArray strips a surrounding markdown fence or stray prose the
// model may have added despite being asked for JSON only, returning the
// first top-level "[...]" span.
func extractJSONArray(text string) []byte {
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end < start {
		return []byte(text)
	}
	return []byte(text[start : end+1])
}

// extractJSONObject is extractJSONArray's object-shaped counterpart.
func extractJSONObject(text string) []byte {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return []byte(text)
	}
	return []byte(text[start : end+1])
}
