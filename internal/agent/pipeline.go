package agent

import (
	"context"
	"errors"
	"time"

	"github.com/nexuscore/agentcore/internal/llm"
	"github.com/nexuscore/agentcore/internal/security"
	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/pkg/models"
)

// ErrNoProvider is returned when a Pipeline is constructed without a router.
var ErrNoProvider = errors.New("agent: no llm router configured")

// Pipeline runs the plan→execute→reflect turn loop (spec §4.2) for one
// session against one Executor. A fresh Executor (and therefore a fresh
// visible-tool set and approval callback) is supplied per turn, since the
// originating session and its authority tier can differ turn to turn for
// the background workers (spec §4.2 conversation isolation).
type Pipeline struct {
	router   *llm.Router
	sessions storage.SessionStore
	memories storage.MemoryStore
	config   LoopConfig
}

// NewPipeline builds a Pipeline. config is sanitized against LoopConfig
// defaults (max_rounds, max_tokens).
func NewPipeline(router *llm.Router, sessions storage.SessionStore, memories storage.MemoryStore, config LoopConfig) *Pipeline {
	return &Pipeline{
		router:   router,
		sessions: sessions,
		memories: memories,
		config:   sanitizeLoopConfig(config),
	}
}

// Run executes one turn for session against exec, appending the user
// message, every round's assistant/tool turns, and (if enabled) a
// reflection-triggered memory row. taskID is attached to the reflection
// memory row; pass "" for turns with no associated task.
func (p *Pipeline) Run(ctx context.Context, session *models.Session, exec *Executor, taskType models.TaskType, userMessage string, taskID string) (*TurnResult, error) {
	if p.router == nil {
		return nil, ErrNoProvider
	}

	if userMessage != "" {
		userTurn := models.Turn{Role: "user", Content: userMessage, CreatedAt: time.Now()}
		if err := p.sessions.AppendTurn(ctx, session.SessionID, userTurn, maxConversationLen); err != nil {
			return nil, err
		}
		session.Conversation = append(session.Conversation, userTurn)
	}

	state := &LoopState{Phase: PhaseInit}
	result := &TurnResult{}
	loopDetector := security.NewLoopDetector(0, 0)

	for state.Round = 0; state.Round < p.config.MaxRounds; state.Round++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		state.Phase = PhaseStream
		req := llm.CompletionRequest{
			System:    p.config.SystemPrompt,
			Messages:  toLLMMessages(session.Conversation),
			Tools:     toLLMTools(exec.VisibleTools()),
			MaxTokens: p.config.MaxTokens,
		}
		resp, err := p.router.Complete(ctx, taskType, req)
		if err != nil {
			return result, err
		}
		result.CostUSD += resp.CostUSD

		assistantTurn := models.Turn{
			Role:      "assistant",
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
			CreatedAt: time.Now(),
		}
		if err := p.sessions.AppendTurn(ctx, session.SessionID, assistantTurn, maxConversationLen); err != nil {
			return result, err
		}
		session.Conversation = append(session.Conversation, assistantTurn)

		if loopDetector.Observe(resp.Text) {
			result.SafetyEvent = "loop_detected"
			result.Rounds = state.Round + 1
			result.ToolCalls = state.ToolCalls
			safetyTurn := models.Turn{
				Role:      "tool",
				Content:   `{"error":"turn ended: three near-duplicate responses in a row","terminal":true}`,
				CreatedAt: time.Now(),
			}
			_ = p.sessions.AppendTurn(ctx, session.SessionID, safetyTurn, maxConversationLen)
			session.Conversation = append(session.Conversation, safetyTurn)
			return result, nil
		}

		if len(resp.ToolCalls) == 0 {
			state.Phase = PhaseComplete
			result.AssistantText = resp.Text
			result.Rounds = state.Round + 1
			result.ToolCalls = state.ToolCalls
			if p.config.Reflect {
				p.reflect(ctx, session, taskID, result)
			}
			return result, nil
		}

		state.Phase = PhaseExecuteTools
		for _, call := range resp.ToolCalls {
			state.ToolCalls++
			content, err := exec.Dispatch(ctx, call)
			if errors.Is(err, ErrBlacklisted) {
				result.SafetyEvent = "blacklist_rejected:" + call.Name
				result.Rounds = state.Round + 1
				result.ToolCalls = state.ToolCalls
				safetyTurn := models.Turn{
					Role:       "tool",
					Content:    `{"error":"rejected by safety policy","terminal":true}`,
					ToolCallID: call.ID,
					CreatedAt:  time.Now(),
				}
				_ = p.sessions.AppendTurn(ctx, session.SessionID, safetyTurn, maxConversationLen)
				session.Conversation = append(session.Conversation, safetyTurn)
				return result, nil
			}
			if err != nil {
				return result, err
			}
			toolTurn := models.Turn{Role: "tool", Content: content, ToolCallID: call.ID, CreatedAt: time.Now()}
			if err := p.sessions.AppendTurn(ctx, session.SessionID, toolTurn, maxConversationLen); err != nil {
				return result, err
			}
			session.Conversation = append(session.Conversation, toolTurn)

			if security.DetectInjection(content) {
				exec.SetInjectionSuspected(true)
			}
		}
	}

	result.Rounds = state.Round
	result.ToolCalls = state.ToolCalls
	return result, ErrMaxRounds
}

const maxConversationLen = 20

func toLLMMessages(turns []models.Turn) []llm.Message {
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, llm.Message{
			Role:       t.Role,
			Content:    t.Content,
			ToolCalls:  t.ToolCalls,
			ToolCallID: t.ToolCallID,
		})
	}
	return out
}
