package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/agentcore/pkg/models"
)

func openTestStore(t *testing.T) *StoreSet {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nexus.db")
	ss, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })
	return ss
}

func TestOpenSQLite_CreatesSchemaOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nexus.db")
	ss, err := OpenSQLite(path)
	require.NoError(t, err)
	ss.Close()

	// Reopening against the same file must not fail re-applying migrations.
	ss2, err := OpenSQLite(path)
	require.NoError(t, err)
	defer ss2.Close()
}

func TestSessionStore_GetOrCreateIsIdempotentAndTrims(t *testing.T) {
	ss := openTestStore(t)
	ctx := context.Background()

	s1, err := ss.Sessions.GetOrCreate(ctx, "cli", "alice", models.TierOwner)
	require.NoError(t, err)
	s2, err := ss.Sessions.GetOrCreate(ctx, "cli", "alice", models.TierOwner)
	require.NoError(t, err)
	require.Equal(t, s1.SessionID, s2.SessionID)

	for i := 0; i < 25; i++ {
		err := ss.Sessions.AppendTurn(ctx, s1.SessionID, models.Turn{Role: "user", Content: "hi"}, 20)
		require.NoError(t, err)
	}
	got, err := ss.Sessions.Get(ctx, s1.SessionID)
	require.NoError(t, err)
	require.LessOrEqual(t, len(got.Conversation), 20)
}

func TestApprovalStore_ResolveIsFirstWriterWins(t *testing.T) {
	ss := openTestStore(t)
	ctx := context.Background()

	sess, err := ss.Sessions.GetOrCreate(ctx, "cli", "bob", models.TierOwner)
	require.NoError(t, err)

	appr := &models.ApprovalRequest{
		ID:        "appr-1",
		ToolName:  "send_payment",
		Status:    models.ApprovalPending,
		SessionID: sess.SessionID,
		CreatedAt: time.Now(),
		TimeoutAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, ss.Approvals.Create(ctx, appr))

	require.NoError(t, ss.Approvals.Resolve(ctx, appr.ID, models.ApprovalApproved))
	err = ss.Approvals.Resolve(ctx, appr.ID, models.ApprovalDenied)
	require.ErrorIs(t, err, ErrConflict)

	got, err := ss.Approvals.Get(ctx, appr.ID)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalApproved, got.Status)
}

func TestApprovalStore_ExpireOverdue(t *testing.T) {
	ss := openTestStore(t)
	ctx := context.Background()

	sess, err := ss.Sessions.GetOrCreate(ctx, "cli", "carol", models.TierOwner)
	require.NoError(t, err)

	appr := &models.ApprovalRequest{
		ID:        "appr-2",
		ToolName:  "shell",
		Status:    models.ApprovalPending,
		SessionID: sess.SessionID,
		CreatedAt: time.Now().Add(-2 * time.Hour),
		TimeoutAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, ss.Approvals.Create(ctx, appr))

	expired, err := ss.Approvals.ExpireOverdue(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, models.ApprovalExpired, expired[0].Status)
}

func TestGoalStore_ReplacePendingCheckpointsPreservesCompleted(t *testing.T) {
	ss := openTestStore(t)
	ctx := context.Background()

	sess, err := ss.Sessions.GetOrCreate(ctx, "cli", "dave", models.TierOwner)
	require.NoError(t, err)

	goal := &models.Goal{
		GoalID:           "goal-1",
		SessionID:        sess.SessionID,
		Goal:             "ship feature",
		Status:           models.GoalActive,
		TotalCheckpoints: 2,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	checkpoints := []*models.Checkpoint{
		{GoalID: goal.GoalID, Order: 0, Title: "step 1", Status: models.CheckpointCompleted},
		{GoalID: goal.GoalID, Order: 1, Title: "step 2", Status: models.CheckpointPending},
	}
	require.NoError(t, ss.Goals.Create(ctx, goal, checkpoints))

	revised := []*models.Checkpoint{
		{Order: 1, Title: "step 2 revised", Status: models.CheckpointPending},
		{Order: 2, Title: "step 3", Status: models.CheckpointPending},
	}
	require.NoError(t, ss.Goals.ReplacePendingCheckpoints(ctx, goal.GoalID, revised))

	got, err := ss.Goals.Checkpoints(ctx, goal.GoalID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, models.CheckpointCompleted, got[0].Status)
	require.Equal(t, "step 2 revised", got[1].Title)
	require.Equal(t, "step 3", got[2].Title)
}

func TestIdentityStore_CreatorIsImmutable(t *testing.T) {
	ss := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, ss.Identity.Init(ctx, &models.Identity{Creator: "root-user", DisplayName: "nexus"}))
	require.ErrorIs(t, ss.Identity.Init(ctx, &models.Identity{Creator: "someone-else"}), ErrAlreadyExists)

	require.NoError(t, ss.Identity.Evolve(ctx, "display_name", "nexus-prime", "user renamed me", 0.9, "owner_request"))

	got, err := ss.Identity.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "root-user", got.Creator)
	require.Equal(t, "nexus-prime", got.DisplayName)
	require.Equal(t, 2, got.Version)

	evolutions, err := ss.Identity.Evolutions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, evolutions, 1)
	require.Equal(t, "display_name", evolutions[0].Field)
}

func TestKnowledgeStore_UpsertAndSearchKeyword(t *testing.T) {
	ss := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, ss.Knowledge.Upsert(ctx, &models.KnowledgeChunk{
		ID: "chunk-1", FilePath: "docs/runbook.md", Content: "restart the gateway process when the socket wedges", UpdatedAt: time.Now(),
	}))
	require.NoError(t, ss.Knowledge.Upsert(ctx, &models.KnowledgeChunk{
		ID: "chunk-2", FilePath: "docs/other.md", Content: "unrelated content about scheduling", UpdatedAt: time.Now(),
	}))

	found, err := ss.Knowledge.SearchKeyword(ctx, "gateway", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "chunk-1", found[0].ID)
}

func TestScratchpadStore_SetBumpsVersion(t *testing.T) {
	ss := openTestStore(t)
	ctx := context.Background()

	empty, err := ss.Scratchpad.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, empty.Version)

	require.NoError(t, ss.Scratchpad.Set(ctx, "first note"))
	require.NoError(t, ss.Scratchpad.Set(ctx, "second note"))

	got, err := ss.Scratchpad.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "second note", got.Markdown)
	require.Equal(t, 2, got.Version)
}

func TestUsageStore_SumCostSince(t *testing.T) {
	ss := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, ss.Usage.Record(ctx, &models.LLMUsage{
		Provider: "anthropic", Model: "claude", CostUSD: 1.50, CreatedAt: time.Now(),
	}))
	require.NoError(t, ss.Usage.Record(ctx, &models.LLMUsage{
		Provider: "anthropic", Model: "claude", CostUSD: 2.50, CreatedAt: time.Now(),
	}))
	require.NoError(t, ss.Usage.Record(ctx, &models.LLMUsage{
		Provider: "openai", Model: "gpt", CostUSD: 5.00, CreatedAt: time.Now(),
	}))

	total, err := ss.Usage.SumCostSince(ctx, "anthropic", time.Now().Add(-time.Hour).Unix())
	require.NoError(t, err)
	require.InDelta(t, 4.0, total, 0.001)
}
