// Package models holds the persistent and wire-level entity types shared
// across the gateway, execution pipeline, goal runner, mind, and policy
// kernel.
package models

import "time"

// AuthorityTier is the code-enforced classification of a session's user.
type AuthorityTier string

const (
	TierOwner   AuthorityTier = "owner"
	TierTrusted AuthorityTier = "trusted"
	TierPublic  AuthorityTier = "public"
)

// Rank returns a numeric rank where higher means more privileged, so that
// tier comparisons (t >= required) can be done with simple integer compare.
func (t AuthorityTier) Rank() int {
	switch t {
	case TierOwner:
		return 2
	case TierTrusted:
		return 1
	case TierPublic:
		return 0
	default:
		return -1
	}
}

// PermissionLevel is the per-tool classification feeding the approval decision.
type PermissionLevel string

const (
	PermissionSafe        PermissionLevel = "safe"
	PermissionModerate    PermissionLevel = "moderate"
	PermissionDestructive PermissionLevel = "destructive"
	PermissionCritical    PermissionLevel = "critical"
)

// PermissionMode is the gateway-wide (or per-session) approval mode.
type PermissionMode string

const (
	ModeAskAlways PermissionMode = "ask_always"
	ModeSmartAuto PermissionMode = "smart_auto"
	ModeFullAuto  PermissionMode = "full_auto"
)

// TaskStatus is the lifecycle of a top-level task record.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// GoalStatus is the lifecycle of a Goal.
type GoalStatus string

const (
	GoalPlanning  GoalStatus = "planning"
	GoalActive    GoalStatus = "active"
	GoalPaused    GoalStatus = "paused"
	GoalCompleted GoalStatus = "completed"
	GoalFailed    GoalStatus = "failed"
	GoalCancelled GoalStatus = "cancelled"
)

// CheckpointStatus is the lifecycle of a single Checkpoint.
type CheckpointStatus string

const (
	CheckpointPending   CheckpointStatus = "pending"
	CheckpointActive    CheckpointStatus = "active"
	CheckpointCompleted CheckpointStatus = "completed"
	CheckpointFailed    CheckpointStatus = "failed"
)

// ApprovalStatus is the lifecycle of an Approval Request row.
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalDenied    ApprovalStatus = "denied"
	ApprovalExpired   ApprovalStatus = "expired"
	ApprovalCancelled ApprovalStatus = "cancelled"
)

// TaskType is the closed set of LLM routing task types.
type TaskType string

const (
	TaskTypePlanning  TaskType = "planning"
	TaskTypeCoding    TaskType = "coding"
	TaskTypeReview    TaskType = "review"
	TaskTypeAnalysis  TaskType = "analysis"
	TaskTypeSimple    TaskType = "simple"
	TaskTypeEmbedding TaskType = "embedding"
)

// Turn is one message in a Session's conversation.
type Turn struct {
	Role       string     `json:"role"` // "system" | "user" | "assistant" | "tool"
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	Anchor     bool       `json:"anchor,omitempty"` // system anchors survive trimming
}

// ToolCall is a single tool invocation requested by the LLM.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input []byte          `json:"input"`
	Raw   map[string]any  `json:"-"`
}

// ToolResult is the outcome of executing a ToolCall.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Session is a persistent per-(channel,user_id) conversation container.
type Session struct {
	SessionID     string        `json:"session_id"`
	Channel       string        `json:"channel"`
	UserID        string        `json:"user_id"`
	AuthorityTier AuthorityTier `json:"authority_tier"`
	Conversation  []Turn        `json:"conversation"`
	CreatedAt     time.Time     `json:"created_at"`
	LastActive    time.Time     `json:"last_active"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	ActiveTaskID  string        `json:"active_task_id,omitempty"`
}

// TaskRecord is one top-level goal/turn accounting row.
type TaskRecord struct {
	TaskID      string     `json:"task_id"`
	SessionID   string     `json:"session_id"`
	Goal        string     `json:"goal"`
	Status      TaskStatus `json:"status"`
	PlanJSON    string     `json:"plan_json,omitempty"`
	Result      string     `json:"result,omitempty"`
	Tokens      int        `json:"tokens"`
	CostUSD     float64    `json:"cost_usd"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Goal is a multi-checkpoint autonomous objective.
type Goal struct {
	GoalID            string     `json:"goal_id"`
	SessionID         string     `json:"session_id"`
	Goal              string     `json:"goal"`
	Status            GoalStatus `json:"status"`
	ContextSummary    string     `json:"context_summary,omitempty"`
	CurrentCheckpoint int        `json:"current_checkpoint"`
	TotalCheckpoints  int        `json:"total_checkpoints"`
	Attempts          int        `json:"attempts"`
	MaxAttempts       int        `json:"max_attempts"`
	LLMCallsUsed      int        `json:"llm_calls_used"`
	CostUSD           float64    `json:"cost_usd"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Checkpoint is the smallest autonomous unit of goal execution.
type Checkpoint struct {
	GoalID           string           `json:"goal_id"`
	Order            int              `json:"order"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	SuccessCriteria  string           `json:"success_criteria"`
	Status           CheckpointStatus `json:"status"`
	ResultSummary    string           `json:"result_summary,omitempty"`
	Attempts         int              `json:"attempts"`
	StartedAt        *time.Time       `json:"started_at,omitempty"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
}

// ApprovalRequest is one row per gated tool call.
type ApprovalRequest struct {
	ID         string         `json:"id"`
	ToolName   string         `json:"tool_name"`
	ParamsJSON string         `json:"params_json"`
	Context    string         `json:"context"`
	Status     ApprovalStatus `json:"status"`
	SessionID  string         `json:"session_id"`
	CreatedAt  time.Time      `json:"created_at"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
	TimeoutAt  time.Time      `json:"timeout_at"`
}

// Memory is a write-once task-completion summary with an embedding.
type Memory struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Summary   string    `json:"summary"`
	Outcome   string    `json:"outcome"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// KnowledgeChunk is one upserted chunk from the skill/knowledge indexer.
type KnowledgeChunk struct {
	ID          string    `json:"id"`
	FilePath    string    `json:"file_path"`
	HeadingPath string    `json:"heading_path"`
	Content     string    `json:"content"`
	Tags        []string  `json:"tags,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Identity is the single-row agent identity.
type Identity struct {
	Creator            string    `json:"creator"`
	DisplayName        string    `json:"display_name"`
	Purpose            string    `json:"purpose"`
	Values             []string  `json:"values,omitempty"`
	Beliefs            []string  `json:"beliefs,omitempty"`
	Curiosities        []string  `json:"curiosities,omitempty"`
	Boundaries         []string  `json:"boundaries,omitempty"`
	Capabilities       []string  `json:"capabilities,omitempty"`
	Personality        string    `json:"personality,omitempty"`
	CommunicationStyle string    `json:"communication_style,omitempty"`
	Version            int       `json:"version"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// IdentityEvolution is an append-only record of identity mutation.
type IdentityEvolution struct {
	Trigger    string    `json:"trigger"`
	Field      string    `json:"field"`
	Old        string    `json:"old"`
	New        string    `json:"new"`
	Reason     string    `json:"reason"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// LLMUsage is one accounting row per router call.
type LLMUsage struct {
	TaskID             string    `json:"task_id,omitempty"`
	Model              string    `json:"model"`
	Provider           string    `json:"provider"`
	InTokens           int       `json:"in_tokens"`
	OutTokens          int       `json:"out_tokens"`
	CostUSD            float64   `json:"cost_usd"`
	FinishReason       string    `json:"finish_reason"`
	LatencyMS          int64     `json:"latency_ms"`
	FallbackFrom       string    `json:"fallback_from,omitempty"`
	SuspectedTruncated bool      `json:"suspected_truncated"`
	TaskType           TaskType  `json:"task_type"`
	CreatedAt          time.Time `json:"created_at"`
}

// ScheduledTask is a cron-like definition producing mind events or goals.
type ScheduledTask struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	ScheduleExpr string     `json:"schedule_expr"`
	Goal         string     `json:"goal"`
	Enabled      bool       `json:"enabled"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	NextRun      *time.Time `json:"next_run,omitempty"`
}

// PaymentAudit is an append-only ledger row for payment-capable tools.
type PaymentAudit struct {
	TS          time.Time `json:"ts"`
	Tool        string    `json:"tool"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Recipient   string    `json:"recipient"`
	Provider    string    `json:"provider"`
	Chain       string    `json:"chain,omitempty"`
	Status      string    `json:"status"`
	ApprovalID  string    `json:"approval_id,omitempty"`
	SessionID   string    `json:"session_id"`
	Channel     string    `json:"channel"`
	TaskContext string    `json:"task_context,omitempty"`
	TxRef       string    `json:"tx_ref,omitempty"`
	Fee         float64   `json:"fee"`
	Error       string    `json:"error,omitempty"`
}

// MindScratchpad is the single-row, single-writer autonomous mind notebook.
type MindScratchpad struct {
	Version   int       `json:"version"`
	Markdown  string    `json:"markdown"`
	UpdatedAt time.Time `json:"updated_at"`
}
