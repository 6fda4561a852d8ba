package goals

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/agentcore/internal/agent"
	"github.com/nexuscore/agentcore/internal/approvals"
	"github.com/nexuscore/agentcore/internal/llm"
	"github.com/nexuscore/agentcore/internal/policy"
	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/internal/tools"
	"github.com/nexuscore/agentcore/internal/worker"
	"github.com/nexuscore/agentcore/pkg/models"
)

type fakeScope struct{}

func (fakeScope) SessionTier(string) models.AuthorityTier { return models.TierOwner }
func (fakeScope) SessionsForApproval(origin string, _ models.AuthorityTier) []string {
	return []string{origin}
}

type fakeNotifier struct{}

func (fakeNotifier) NotifyApproval(string, *models.ApprovalRequest) {}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *fakeBroadcaster) BroadcastEvent(_ string, _ models.AuthorityTier, kind string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, kind)
}

func (b *fakeBroadcaster) saw(kind string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e == kind {
			return true
		}
	}
	return false
}

// newTestRunner wires a Runner whose provider completes decomposition with a
// fixed 3-checkpoint plan and every other call with a terminal assistant
// message (no tool calls), so a goal runs to completion in a few loop turns.
func newTestRunner(t *testing.T) (*Runner, *storage.StoreSet, *fakeBroadcaster) {
	t.Helper()
	stores := storage.NewMemoryStoreSet()

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(tools.Tool{
		Name:            "noop",
		PermissionLevel: models.PermissionSafe,
		Execute: func(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
			return &tools.Result{Content: "ok"}, nil
		},
	}))

	engine, err := policy.NewEngine(models.ModeFullAuto, nil, nil, nil, nil, nil, nil)
	require.NoError(t, err)

	provider := llm.Provider{Name: "stub", Complete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		switch {
		case req.MaxTokens == 2048:
			return &llm.CompletionResponse{Text: `[
				{"title":"step one","description":"do the first thing","success_criteria":"first thing done"},
				{"title":"step two","description":"do the second thing","success_criteria":"second thing done"},
				{"title":"step three","description":"do the third thing","success_criteria":"third thing done"}
			]`, FinishReason: "stop"}, nil
		default:
			return &llm.CompletionResponse{Text: "checkpoint complete, criteria satisfied", FinishReason: "stop"}, nil
		}
	}}
	router := llm.NewRouter([]llm.Provider{provider}, map[models.TaskType][]llm.Route{
		models.TaskTypePlanning: {{Provider: "stub"}},
		models.TaskTypeCoding:   {{Provider: "stub"}},
		models.TaskTypeSimple:   {{Provider: "stub"}},
	}, nil, time.Minute)

	broker := approvals.NewBroker(fakeScope{}, fakeNotifier{})
	broadcaster := &fakeBroadcaster{}

	limits := DefaultLimits()
	limits.PauseBetweenCheckpoints = time.Millisecond
	limits.MinCheckpoints = 3

	runner := New(*stores, registry, engine, router, agent.DefaultLoopConfig(), nil, broker, broadcaster, &worker.ExclusionToken{}, &worker.PauseToken{}, limits, nil)
	return runner, stores, broadcaster
}

func TestRunner_CreateGoalRunsToCompletion(t *testing.T) {
	runner, stores, broadcaster := newTestRunner(t)
	ctx := context.Background()

	sess, err := stores.Sessions.GetOrCreate(ctx, "cli", "owner", models.TierOwner)
	require.NoError(t, err)

	goal, err := runner.CreateGoal(ctx, sess.SessionID, "ship the feature", 0)
	require.NoError(t, err)
	require.Equal(t, 3, goal.TotalCheckpoints)

	require.Eventually(t, func() bool {
		g, err := stores.Goals.Get(ctx, goal.GoalID)
		return err == nil && g.Status == models.GoalCompleted
	}, 2*time.Second, 5*time.Millisecond)

	require.True(t, broadcaster.saw("goal_started"))
	require.True(t, broadcaster.saw("goal_checkpoint_complete"))
	require.True(t, broadcaster.saw("goal_completed"))

	runner.Stop()
}

func TestRunner_PauseTokenHaltsProgressAtBoundary(t *testing.T) {
	runner, stores, _ := newTestRunner(t)
	ctx := context.Background()

	sess, err := stores.Sessions.GetOrCreate(ctx, "cli", "owner", models.TierOwner)
	require.NoError(t, err)

	runner.pause.Pause()
	goal, err := runner.CreateGoal(ctx, sess.SessionID, "ship the feature", 0)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	g, err := stores.Goals.Get(ctx, goal.GoalID)
	require.NoError(t, err)
	require.NotEqual(t, models.GoalCompleted, g.Status)

	runner.pause.Resume()
	require.Eventually(t, func() bool {
		g, err := stores.Goals.Get(ctx, goal.GoalID)
		return err == nil && g.Status == models.GoalCompleted
	}, 2*time.Second, 5*time.Millisecond)

	runner.Stop()
}

func TestRunner_StartResumesActiveGoalsWhenAutoContinue(t *testing.T) {
	runner, stores, broadcaster := newTestRunner(t)
	ctx := context.Background()

	sess, err := stores.Sessions.GetOrCreate(ctx, "cli", "owner", models.TierOwner)
	require.NoError(t, err)

	goal := &models.Goal{GoalID: "goal-1", SessionID: sess.SessionID, Goal: "resume me", Status: models.GoalActive, TotalCheckpoints: 1}
	checkpoints := []*models.Checkpoint{{GoalID: "goal-1", Order: 0, Title: "only step", Status: models.CheckpointPending}}
	require.NoError(t, stores.Goals.Create(ctx, goal, checkpoints))

	require.NoError(t, runner.Start(ctx))

	require.Eventually(t, func() bool {
		g, err := stores.Goals.Get(ctx, "goal-1")
		return err == nil && g.Status == models.GoalCompleted
	}, 2*time.Second, 5*time.Millisecond)

	require.True(t, broadcaster.saw("goal_completed"))
	runner.Stop()
}
