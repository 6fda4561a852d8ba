package agent

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscore/agentcore/internal/llm"
	"github.com/nexuscore/agentcore/pkg/models"
)

const reflectionPrompt = "Summarize this completed turn in two sentences: what was accomplished and the outcome (success, partial, or failure). Reply with the summary only."

// reflect issues the lightweight post-turn LLM call (spec §4.2) and writes
// its summary as a write-once Memory row. Reflection failures never fail
// the turn itself; they are swallowed after a best-effort summary fallback
// so a flaky reflection call can't turn a successful turn into an error.
func (p *Pipeline) reflect(ctx context.Context, session *models.Session, taskID string, result *TurnResult) {
	if p.memories == nil {
		return
	}

	summary := result.AssistantText
	outcome := "success"
	if result.SafetyEvent != "" {
		outcome = "failure"
	}

	resp, err := p.router.Complete(ctx, models.TaskTypeSimple, llm.CompletionRequest{
		System:    reflectionPrompt,
		Messages:  []llm.Message{{Role: "user", Content: strings.TrimSpace(result.AssistantText)}},
		MaxTokens: 256,
	})
	if err == nil && resp.Text != "" {
		summary = resp.Text
	}

	_ = p.memories.Create(ctx, &models.Memory{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Summary:   summary,
		Outcome:   outcome,
		CreatedAt: time.Now(),
	})
}
