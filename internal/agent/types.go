// Package agent implements the plan→execute→reflect turn loop (spec §4.2):
// building the prompt, calling the LLM router, dispatching tool calls through
// the layered authority/permission/safety policy, routing approvals back to
// the originating channel, sanitizing tool output, and writing a reflection
// memory at turn end.
package agent

import (
	"errors"
	"time"
)

// LoopPhase names the state machine step a turn is currently in.
type LoopPhase string

const (
	PhaseInit         LoopPhase = "init"
	PhaseComplete     LoopPhase = "complete"
	PhaseStream       LoopPhase = "stream"
	PhaseExecuteTools LoopPhase = "execute_tools"
	PhaseReflect      LoopPhase = "reflect"
)

// LoopConfig configures one Pipeline's turn behavior.
type LoopConfig struct {
	// MaxRounds limits tool-use iterations per turn (spec §4.2 default 8).
	MaxRounds int

	// MaxTokens is the default completion token budget per LLM call.
	MaxTokens int

	// SystemPrompt is prepended to every turn's messages as the system
	// message (runtime self-model + identity + skill triggers + goal
	// context, assembled by the caller).
	SystemPrompt string

	// Reflect enables the post-turn reflection call that writes a Memory
	// row. Disabled for cheap/background turns that don't warrant one.
	Reflect bool
}

// DefaultLoopConfig returns the spec's defaults: 8 rounds, 4096 tokens.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{MaxRounds: 8, MaxTokens: 4096, Reflect: true}
}

func sanitizeLoopConfig(cfg LoopConfig) LoopConfig {
	defaults := DefaultLoopConfig()
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = defaults.MaxRounds
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	return cfg
}

// LoopState tracks one turn's progress across rounds.
type LoopState struct {
	Phase     LoopPhase
	Round     int
	ToolCalls int
}

// TurnResult is what a completed turn hands back to its caller (gateway,
// goal runner, or autonomous mind).
type TurnResult struct {
	AssistantText string
	Rounds        int
	ToolCalls     int
	SafetyEvent   string // non-empty if the turn ended via a blacklist hit
	CostUSD       float64
}

var (
	// ErrMaxRounds is returned when a turn exhausts MaxRounds without the
	// LLM returning a terminal assistant message.
	ErrMaxRounds = errors.New("agent: turn reached max rounds without a terminal response")
	// ErrBlacklisted signals a tool invocation was rejected fatally by the
	// destructive blacklist or protected-file guard (spec §4.2 rule 1/2).
	ErrBlacklisted = errors.New("agent: tool call rejected by safety policy")
)

// toolEvent is the structured per-call record appended to a turn's session
// conversation for observability, independent of the sanitized tool output
// also appended as a Turn.
type toolEvent struct {
	ToolName  string
	Decision  string
	Denied    bool
	Err       string
	StartedAt time.Time
}

// isTerminal reports whether a turn's phase represents its final state.
func isTerminal(phase LoopPhase) bool {
	return phase == PhaseComplete
}
