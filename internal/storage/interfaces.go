// Package storage persists the spec §3 entities in an embedded relational
// database with row-level JSON columns, plus a vector side-index. All
// "user-visible boundary" writes (session append, approval resolution,
// checkpoint transition, identity evolution, payment audit, memory write)
// are committed synchronously (spec §4.5).
package storage

import (
	"context"
	"errors"

	"github.com/nexuscore/agentcore/pkg/models"
)

var (
	// ErrNotFound is returned when a lookup by id finds no row.
	ErrNotFound = errors.New("storage: not found")
	// ErrAlreadyExists is returned by Create on a unique-constraint conflict.
	ErrAlreadyExists = errors.New("storage: already exists")
	// ErrConflict is returned when an optimistic state transition is no
	// longer valid, e.g. a second approval resolver (spec §8 property 9).
	ErrConflict = errors.New("storage: conflict")
)

// SessionStore persists Session rows, unique on (channel, user_id).
type SessionStore interface {
	GetOrCreate(ctx context.Context, channel, userID string, tier models.AuthorityTier) (*models.Session, error)
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	AppendTurn(ctx context.Context, sessionID string, turn models.Turn, maxLen int) error
	Update(ctx context.Context, s *models.Session) error
}

// TaskStore persists TaskRecord rows.
type TaskStore interface {
	Create(ctx context.Context, t *models.TaskRecord) error
	Get(ctx context.Context, taskID string) (*models.TaskRecord, error)
	Update(ctx context.Context, t *models.TaskRecord) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*models.TaskRecord, error)
}

// GoalStore persists Goal and Checkpoint rows.
type GoalStore interface {
	Create(ctx context.Context, g *models.Goal, checkpoints []*models.Checkpoint) error
	Get(ctx context.Context, goalID string) (*models.Goal, error)
	Update(ctx context.Context, g *models.Goal) error
	ListByStatus(ctx context.Context, status models.GoalStatus) ([]*models.Goal, error)

	Checkpoints(ctx context.Context, goalID string) ([]*models.Checkpoint, error)
	UpdateCheckpoint(ctx context.Context, c *models.Checkpoint) error
	// ReplacePendingCheckpoints atomically drops all pending checkpoints and
	// inserts a revised list, preserving completed/failed ones (spec §4.3
	// step 6 evaluate_progress revision).
	ReplacePendingCheckpoints(ctx context.Context, goalID string, revised []*models.Checkpoint) error
}

// ApprovalStore persists ApprovalRequest rows.
type ApprovalStore interface {
	Create(ctx context.Context, a *models.ApprovalRequest) error
	Get(ctx context.Context, id string) (*models.ApprovalRequest, error)
	// Resolve transitions a pending approval to approved/denied; it returns
	// ErrConflict if the row is no longer pending (first resolver wins,
	// spec §8 property 9).
	Resolve(ctx context.Context, id string, status models.ApprovalStatus) error
	ListPendingBySession(ctx context.Context, sessionID string) ([]*models.ApprovalRequest, error)
	ExpireOverdue(ctx context.Context) ([]*models.ApprovalRequest, error)
}

// MemoryStore persists write-once Memory rows.
type MemoryStore interface {
	Create(ctx context.Context, m *models.Memory) error
	RecentBySession(ctx context.Context, sessionID string, limit int) ([]*models.Memory, error)
}

// KnowledgeStore persists upserted KnowledgeChunk rows.
type KnowledgeStore interface {
	Upsert(ctx context.Context, c *models.KnowledgeChunk) error
	SearchKeyword(ctx context.Context, query string, limit int) ([]*models.KnowledgeChunk, error)
	All(ctx context.Context) ([]*models.KnowledgeChunk, error)
}

// IdentityStore persists the single-row Identity plus its evolution log.
type IdentityStore interface {
	Get(ctx context.Context) (*models.Identity, error)
	Init(ctx context.Context, id *models.Identity) error
	Evolve(ctx context.Context, field, newValue, reason string, confidence float64, trigger string) error
	Evolutions(ctx context.Context, limit int) ([]*models.IdentityEvolution, error)
}

// UsageStore persists LLM Usage rows.
type UsageStore interface {
	Record(ctx context.Context, u *models.LLMUsage) error
	SumCostSince(ctx context.Context, provider string, sinceUnixSeconds int64) (float64, error)
}

// ScheduleStore persists ScheduledTask rows.
type ScheduleStore interface {
	Create(ctx context.Context, s *models.ScheduledTask) error
	List(ctx context.Context) ([]*models.ScheduledTask, error)
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, s *models.ScheduledTask) error
}

// PaymentAuditStore persists append-only PaymentAudit rows.
type PaymentAuditStore interface {
	Append(ctx context.Context, p *models.PaymentAudit) error
}

// ScratchpadStore persists the single-row, single-writer Mind Scratchpad.
type ScratchpadStore interface {
	Get(ctx context.Context) (*models.MindScratchpad, error)
	Set(ctx context.Context, markdown string) error
}

// StoreSet groups every persistence dependency the runtime core wires
// together, mirroring the teacher's StoreSet aggregate.
type StoreSet struct {
	Sessions   SessionStore
	Tasks      TaskStore
	Goals      GoalStore
	Approvals  ApprovalStore
	Memories   MemoryStore
	Knowledge  KnowledgeStore
	Identity   IdentityStore
	Usage      UsageStore
	Schedules  ScheduleStore
	Payments   PaymentAuditStore
	Scratchpad ScratchpadStore

	closer func() error
}

// Close releases any underlying resources (e.g. the sqlite connection pool).
func (s StoreSet) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
