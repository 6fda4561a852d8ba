package mind

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/agentcore/internal/agent"
	"github.com/nexuscore/agentcore/internal/llm"
	"github.com/nexuscore/agentcore/internal/policy"
	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/internal/tools"
	"github.com/nexuscore/agentcore/internal/worker"
	"github.com/nexuscore/agentcore/pkg/models"
)

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

// newTestWorker wires a mind Worker whose stub provider updates the
// scratchpad on round one, then produces a terminal assistant message.
func newTestWorker(t *testing.T) (*Worker, *storage.StoreSet, *fakeBroadcaster) {
	t.Helper()
	stores := storage.NewMemoryStoreSet()

	registry := tools.NewRegistry()
	engine, err := policy.NewEngine(models.ModeFullAuto, nil, nil, nil, nil, nil, nil)
	require.NoError(t, err)

	round := 0
	provider := llm.Provider{Name: "stub", Complete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		round++
		if round == 1 {
			params, _ := json.Marshal(map[string]string{"markdown": "checked revenue, nothing new"})
			return &llm.CompletionResponse{ToolCalls: []models.ToolCall{{ID: "c1", Name: toolUpdateScratchpad, Input: params}}, FinishReason: "tool_use"}, nil
		}
		return &llm.CompletionResponse{Text: "nothing else to do", FinishReason: "stop"}, nil
	}}
	router := llm.NewRouter([]llm.Provider{provider}, map[models.TaskType][]llm.Route{
		models.TaskTypeAnalysis: {{Provider: "stub"}},
	}, nil, time.Minute)

	broadcaster := &fakeBroadcaster{}
	// wake is invoked directly in these tests rather than through run()'s
	// sleep loop, so the configured wakeup interval is never exercised here.
	w := New(*stores, registry, engine, router, agent.DefaultLoopConfig(), broadcaster, &worker.ExclusionToken{}, &worker.PauseToken{}, DefaultLimits(), 0, nil, nil)
	return w, stores, broadcaster
}

func TestWorker_WakeUpdatesScratchpadAndBroadcasts(t *testing.T) {
	w, stores, broadcaster := newTestWorker(t)
	ctx := context.Background()

	w.wake(ctx)

	require.True(t, broadcaster.saw("mind_wakeup"))
	require.True(t, broadcaster.saw("mind_sleep"))

	pad, err := stores.Scratchpad.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "checked revenue, nothing new", pad.Markdown)
}

func TestWorker_EventInjectionIsConsumedOnNextWake(t *testing.T) {
	w, _, _ := newTestWorker(t)
	w.InjectEvent("owner asked to be notified of price drops")

	require.Len(t, w.events.pending, 1)
	drained := w.events.drain()
	require.Len(t, drained, 1)
	require.Equal(t, "owner asked to be notified of price drops", drained[0].Text)
	require.Empty(t, w.events.pending)
}

func TestWorker_BudgetExhaustionExtendsWakeup(t *testing.T) {
	w, _, _ := newTestWorker(t)
	w.dailyBudget = 1.0
	w.spentToday = 1.0 // already at 100% of the (BudgetPct-scaled) allotment

	w.wake(context.Background())

	require.Equal(t, time.Duration(w.limits.MaxWakeupSeconds)*time.Second, w.currentDelay())
}

func TestOutboundLimiter_CapsPerHour(t *testing.T) {
	l := newOutboundLimiter(2)
	now := time.Now()
	require.True(t, l.Allow(now))
	require.True(t, l.Allow(now.Add(time.Minute)))
	require.False(t, l.Allow(now.Add(2*time.Minute)))
	require.True(t, l.Allow(now.Add(2*time.Hour)))
}

func TestIsMessageWorthy_FiltersRoutineChatter(t *testing.T) {
	require.True(t, isMessageWorthy("goal_milestone"))
	require.False(t, isMessageWorthy("routine_update"))
}

func TestExecNotifyOwner_RecipientCooldownSuppressesRapidRepeats(t *testing.T) {
	w, _, broadcaster := newTestWorker(t)

	params, _ := json.Marshal(map[string]string{"class": "goal_milestone", "text": "first"})
	result, err := w.execNotifyOwner(context.Background(), params)
	require.NoError(t, err)
	require.JSONEq(t, `{"sent":true}`, result.Content)

	result, err = w.execNotifyOwner(context.Background(), params)
	require.NoError(t, err)
	require.Contains(t, result.Content, "recipient cooldown")

	require.Len(t, broadcaster.events, 1, "the cooled-down second call must not broadcast again")
}
