package mind

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscore/agentcore/internal/agent"
	"github.com/nexuscore/agentcore/internal/llm"
	"github.com/nexuscore/agentcore/internal/policy"
	"github.com/nexuscore/agentcore/internal/security"
	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/internal/tools"
	"github.com/nexuscore/agentcore/internal/worker"
	"github.com/nexuscore/agentcore/pkg/models"
)

// Broadcaster delivers mind lifecycle events to connected clients (spec
// §4.3 step 9: mind_wakeup, mind_action, mind_sleep). gateway.Hub
// implements this — identical shape to internal/goals.Broadcaster, kept as
// a separate narrow interface so neither background worker imports the
// other or the gateway.
type Broadcaster interface {
	BroadcastEvent(originSessionID string, minTier models.AuthorityTier, kind string, data any)
}

// Worker runs the autonomous mind's wake cycle (spec §4.3 "Autonomous
// Mind"). It shares its exclusion and pause tokens with the gateway and
// goal runner so only one of a user turn, a goal checkpoint, or a mind
// wakeup ever runs at a time.
type Worker struct {
	stores    storage.StoreSet
	registry  *tools.Registry
	engine    *policy.Engine
	router    *llm.Router
	loop      agent.LoopConfig
	broadcast Broadcaster
	exclusion *worker.ExclusionToken
	pause     *worker.PauseToken
	limits    Limits
	logger    *slog.Logger

	actionTools []string
	dailyBudget float64

	events   eventQueue
	outbound *outboundLimiter
	// recipientCooldown enforces the minimum per-recipient gap (spec §4.6,
	// default 60s) on top of the hourly cap, so a tight wakeup loop can't
	// fire several owner notifications within the same second.
	recipientCooldown *security.RecipientCooldown

	mu         sync.Mutex
	enabled    bool
	nextDelay  time.Duration
	spentToday float64
	dayStart   time.Time
	sessionID  string
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New builds a mind Worker. exclusion, pause, and dailyBudgetUSD (the sum of
// every configured LLM provider's daily_budget_usd, against which
// limits.BudgetPct is applied) are shared with the rest of the runtime core.
// actionTools lists any additional registry tool names (beyond the mind's
// own scratchpad/wakeup/notify tools) visible during a wakeup turn.
func New(
	stores storage.StoreSet,
	registry *tools.Registry,
	engine *policy.Engine,
	router *llm.Router,
	loop agent.LoopConfig,
	broadcast Broadcaster,
	exclusion *worker.ExclusionToken,
	pause *worker.PauseToken,
	limits Limits,
	dailyBudgetUSD float64,
	actionTools []string,
	logger *slog.Logger,
) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if exclusion == nil {
		exclusion = &worker.ExclusionToken{}
	}
	if pause == nil {
		pause = &worker.PauseToken{}
	}
	limits = sanitizeLimits(limits)
	loop.Reflect = false
	w := &Worker{
		stores:      stores,
		registry:    registry,
		engine:      engine,
		router:      router,
		loop:        loop,
		broadcast:   broadcast,
		exclusion:   exclusion,
		pause:       pause,
		limits:      limits,
		logger:      logger.With("component", "mind"),
		actionTools: actionTools,
		dailyBudget: dailyBudgetUSD,
		outbound:          newOutboundLimiter(limits.MaxOwnerMsgPerHour),
		recipientCooldown: security.NewRecipientCooldown(0),
		enabled:     true,
		nextDelay:   time.Duration(limits.WakeupSeconds) * time.Second,
		dayStart:    time.Now(),
		sessionID:   "mind-" + uuid.NewString(),
	}
	w.registerTools()
	return w
}

// InjectEvent enqueues text for consumption on the next wakeup (spec §4.3
// "Event injection"), from any source: goal runner, channel adapter,
// scheduler, wallet watcher, email poller.
func (w *Worker) InjectEvent(text string) {
	w.events.push(text, time.Now())
}

// Enable turns the mind on or off (distinct from the pause token, which is
// a transient per-turn yield, not a durable state).
func (w *Worker) Enable(on bool) {
	w.mu.Lock()
	w.enabled = on
	w.mu.Unlock()
}

func (w *Worker) isEnabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enabled
}

// Start launches the wake-cycle loop in the background.
func (w *Worker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Stop cancels the wake-cycle loop and waits for it to exit.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	for {
		delay := w.currentDelay()
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if !w.isEnabled() {
			continue
		}
		// Step 2: pause-check.
		if w.pause.IsSet() {
			continue
		}

		w.wake(ctx)
	}
}

func (w *Worker) currentDelay() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nextDelay
}

func (w *Worker) setNextWakeupDelay(d time.Duration) {
	w.mu.Lock()
	w.nextDelay = d
	w.mu.Unlock()
}

// wake runs one full wakeup cycle (spec §4.3 steps 2-9).
func (w *Worker) wake(ctx context.Context) {
	w.resetDailyBudgetIfNeeded()

	// Step 3: budget check.
	if w.budgetExhausted() {
		w.setNextWakeupDelay(time.Duration(w.limits.MaxWakeupSeconds) * time.Second)
		w.logger.Info("mind budget exhausted, extending next wakeup")
		return
	}

	if err := w.exclusion.Acquire(ctx); err != nil {
		return
	}
	defer w.exclusion.Release()

	w.broadcast.BroadcastEvent("", models.TierOwner, "mind_wakeup", nil)

	// Step 4: priority stack.
	stack := buildPriorityStack(ctx, w.stores, w.router, w.limits.PriorityOrder)

	// Step 5: context assembly.
	pad, err := w.stores.Scratchpad.Get(ctx)
	markdown := ""
	if err == nil && pad != nil {
		markdown = pad.Markdown
	}
	identity, _ := w.stores.Identity.Get(ctx)
	events := w.events.drain()
	budgetTotal := w.dailyBudget * w.limits.BudgetPct
	turnText := buildWakeupTurn(identity, stack, markdown, events, w.spentTodaySnapshot(), budgetTotal)

	sess := &models.Session{
		SessionID:     w.sessionID,
		Channel:       "mind",
		UserID:        "mind",
		AuthorityTier: models.TierOwner,
		Conversation:  []models.Turn{{Role: "user", Content: turnText, CreatedAt: time.Now()}},
		CreatedAt:     time.Now(),
		LastActive:    time.Now(),
	}
	if err := w.stores.Sessions.Update(ctx, sess); err != nil {
		w.logger.Error("persist mind session", "error", err)
		return
	}

	// Step 6: one restricted-tool agent turn.
	loop := w.loop
	loop.SystemPrompt = "You operate with a restricted tool whitelist. Only the tools offered to you this turn are available."
	loop.MaxRounds = w.limits.MaxRoundsPerWakeup
	pipeline := agent.NewPipeline(w.router, w.stores.Sessions, w.stores.Memories, loop)

	approve := agent.StoreBackedApproval(w.stores.Approvals, func(ctx context.Context, req *models.ApprovalRequest) (models.ApprovalStatus, error) {
		return models.ApprovalDenied, nil // the mind never gets to wait on a human; gated tools are simply refused
	})
	exec := agent.NewExecutor(w.registry, w.engine, approve, models.TierOwner)
	exec.RestrictTools(mindToolNames(w.actionTools))
	exec.SetScheduleStore(w.stores.Schedules)

	result, err := pipeline.Run(ctx, sess, exec, models.TaskTypeAnalysis, "", "")
	if err != nil {
		w.logger.Warn("mind wakeup turn failed", "error", err)
		w.broadcast.BroadcastEvent("", models.TierOwner, "mind_error", map[string]any{"error": err.Error()})
	}
	if result != nil {
		w.addSpend(result.CostUSD)
	}

	// Steps 7-8 (scratchpad write, next-wakeup) happen via tool calls inside
	// the turn itself; fall back to the configured default if the model
	// never called mind_set_next_wakeup.
	w.ensureNextWakeupSet()

	w.broadcast.BroadcastEvent("", models.TierOwner, "mind_sleep", map[string]any{"next_wakeup_seconds": int(w.currentDelay().Seconds())})
}

func (w *Worker) ensureNextWakeupSet() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.nextDelay <= 0 {
		w.nextDelay = time.Duration(w.limits.WakeupSeconds) * time.Second
	}
}

func (w *Worker) resetDailyBudgetIfNeeded() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if time.Since(w.dayStart) >= 24*time.Hour {
		w.dayStart = time.Now()
		w.spentToday = 0
	}
}

func (w *Worker) budgetExhausted() bool {
	if w.dailyBudget <= 0 {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.spentToday >= w.dailyBudget*w.limits.BudgetPct
}

func (w *Worker) addSpend(cost float64) {
	w.mu.Lock()
	w.spentToday += cost
	w.mu.Unlock()
}

func (w *Worker) spentTodaySnapshot() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.spentToday
}
