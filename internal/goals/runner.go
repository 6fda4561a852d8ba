package goals

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscore/agentcore/internal/agent"
	"github.com/nexuscore/agentcore/internal/approvals"
	"github.com/nexuscore/agentcore/internal/llm"
	"github.com/nexuscore/agentcore/internal/policy"
	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/internal/tools"
	"github.com/nexuscore/agentcore/internal/worker"
	"github.com/nexuscore/agentcore/pkg/models"
)

// Broadcaster delivers goal lifecycle events to connected clients at or
// above a goal's originating tier (spec §4.3 steps 1/2/4). gateway.Hub
// implements this.
type Broadcaster interface {
	BroadcastEvent(originSessionID string, minTier models.AuthorityTier, kind string, data any)
}

// Runner advances every active goal one checkpoint at a time. It shares its
// exclusion and pause tokens with the gateway (internal/worker) so a user
// turn always preempts a goal turn, and shares its approval broker with the
// gateway so an approval prompted by a goal turn resolves from any
// sufficiently privileged connected client (spec §4.3 step 4).
type Runner struct {
	stores    storage.StoreSet
	registry  *tools.Registry
	engine    *policy.Engine
	router    *llm.Router
	loop      agent.LoopConfig
	rules     []agent.InvocationRule
	approvals *approvals.Broker
	broadcast Broadcaster
	exclusion *worker.ExclusionToken
	pause     *worker.PauseToken
	limits    Limits
	logger    *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a goal Runner. exclusion, pause, and approvalBroker must be the
// same instances the gateway was constructed with.
func New(
	stores storage.StoreSet,
	registry *tools.Registry,
	engine *policy.Engine,
	router *llm.Router,
	loop agent.LoopConfig,
	rules []agent.InvocationRule,
	approvalBroker *approvals.Broker,
	broadcast Broadcaster,
	exclusion *worker.ExclusionToken,
	pause *worker.PauseToken,
	limits Limits,
	logger *slog.Logger,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if exclusion == nil {
		exclusion = &worker.ExclusionToken{}
	}
	if pause == nil {
		pause = &worker.PauseToken{}
	}
	loop.Reflect = false // checkpoint summarization replaces the pipeline's own reflection (spec §4.3 step 5)
	return &Runner{
		stores:    stores,
		registry:  registry,
		engine:    engine,
		router:    router,
		loop:      loop,
		rules:     rules,
		approvals: approvalBroker,
		broadcast: broadcast,
		exclusion: exclusion,
		pause:     pause,
		limits:    sanitizeLimits(limits),
		logger:    logger.With("component", "goal-runner"),
		cancels:   map[string]context.CancelFunc{},
	}
}

// Start resumes every status=active goal when auto_continue is set (spec
// §4.3 "On startup, if auto_continue=true, all goals with status=active are
// resumed automatically"). It returns once every resumed goal's background
// loop has been launched, not once they finish.
func (r *Runner) Start(ctx context.Context) error {
	if !r.limits.AutoContinue {
		return nil
	}
	active, err := r.stores.Goals.ListByStatus(ctx, models.GoalActive)
	if err != nil {
		return err
	}
	for _, goal := range active {
		r.logger.Info("resuming active goal", "goal_id", goal.GoalID)
		r.spawn(ctx, goal)
	}
	return nil
}

// Stop cancels every running goal loop and waits for them to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	for _, cancel := range r.cancels {
		cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// CreateGoal decomposes goalText into an ordered checkpoint plan, persists
// it atomically, and launches the goal's background execution loop (spec
// §4.3 "Decomposition").
func (r *Runner) CreateGoal(ctx context.Context, sessionID, goalText string, maxAttempts int) (*models.Goal, error) {
	if maxAttempts <= 0 {
		maxAttempts = r.limits.MaxCheckpointAttempts
	}
	goal := &models.Goal{
		GoalID:      uuid.NewString(),
		SessionID:   sessionID,
		Goal:        goalText,
		Status:      models.GoalPlanning,
		MaxAttempts: maxAttempts,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	checkpoints, err := decompose(ctx, r.router, goal.GoalID, goalText, r.limits)
	if err != nil {
		return nil, err
	}
	goal.TotalCheckpoints = len(checkpoints)
	goal.Status = models.GoalActive

	if err := r.stores.Goals.Create(ctx, goal, checkpoints); err != nil {
		return nil, err
	}

	r.broadcast.BroadcastEvent(goal.SessionID, r.originTier(ctx, goal), "goal_started", goal)
	r.spawn(ctx, goal)
	return goal, nil
}

func (r *Runner) spawn(parent context.Context, goal *models.Goal) {
	ctx, cancel := context.WithCancel(parent)
	r.mu.Lock()
	r.cancels[goal.GoalID] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.cancels, goal.GoalID)
			r.mu.Unlock()
		}()
		r.runGoal(ctx, goal)
	}()
}

// originTier resolves the goal's originating session tier, used as the
// minimum tier for cross-channel approvals and event broadcasts.
func (r *Runner) originTier(ctx context.Context, goal *models.Goal) models.AuthorityTier {
	sess, err := r.stores.Sessions.Get(ctx, goal.SessionID)
	if err != nil {
		return models.TierPublic
	}
	return sess.AuthorityTier
}

// runGoal is the execution loop (spec §4.3 "Execution loop", steps 1-9). It
// runs until the goal reaches a terminal or paused state, or ctx is
// cancelled (Runner.Stop, or process shutdown).
func (r *Runner) runGoal(ctx context.Context, goal *models.Goal) {
	startedAt := time.Now()
	sinceEvaluation := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if r.waitWhilePaused(ctx) {
			return
		}

		checkpoints, err := r.stores.Goals.Checkpoints(ctx, goal.GoalID)
		if err != nil {
			r.logger.Error("load checkpoints", "goal_id", goal.GoalID, "error", err)
			return
		}

		// Step 1: fetch next pending checkpoint.
		next := firstPending(checkpoints)
		if next == nil {
			goal.Status = models.GoalCompleted
			goal.UpdatedAt = time.Now()
			_ = r.stores.Goals.Update(ctx, goal)
			r.broadcast.BroadcastEvent(goal.SessionID, r.originTier(ctx, goal), "goal_completed", goal)
			return
		}

		// Step 2: safety limits.
		if reason := r.exceedsLimits(goal, startedAt); reason != "" {
			goal.Status = models.GoalPaused
			goal.UpdatedAt = time.Now()
			_ = r.stores.Goals.Update(ctx, goal)
			r.broadcast.BroadcastEvent(goal.SessionID, r.originTier(ctx, goal), "goal_paused", map[string]any{"goal_id": goal.GoalID, "reason": reason})
			return
		}

		sess, err := r.stores.Sessions.Get(ctx, goal.SessionID)
		if err != nil {
			r.logger.Error("load session", "goal_id", goal.GoalID, "error", err)
			return
		}

		result, isolatedTranscript, turnErr := r.runCheckpoint(ctx, goal, checkpoints, next, sess)
		if turnErr != nil {
			r.logger.Warn("checkpoint turn failed", "goal_id", goal.GoalID, "checkpoint", next.Order, "error", turnErr)
		}

		r.finishCheckpoint(ctx, goal, next, result, turnErr)

		sinceEvaluation++
		if sinceEvaluation >= r.limits.EvaluateEveryNCheckpoints {
			sinceEvaluation = 0
			r.runEvaluateProgress(ctx, goal)
		}

		r.compressContext(ctx, goal, isolatedTranscript)

		goal.UpdatedAt = time.Now()
		_ = r.stores.Goals.Update(ctx, goal)

		if r.waitWhilePaused(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.limits.PauseBetweenCheckpoints):
		}
	}
}

// runCheckpoint is steps 3-4: isolate the session conversation, build the
// fresh system prompt, and run one agent turn with an approval callback
// broadcasting to every client at the goal's originating tier.
func (r *Runner) runCheckpoint(ctx context.Context, goal *models.Goal, checkpoints []*models.Checkpoint, active *models.Checkpoint, sess *models.Session) (*agent.TurnResult, []models.Turn, error) {
	active.Status = models.CheckpointActive
	active.Attempts++
	now := time.Now()
	active.StartedAt = &now
	_ = r.stores.Goals.UpdateCheckpoint(ctx, active)

	if err := r.exclusion.Acquire(ctx); err != nil {
		return nil, nil, err
	}
	defer r.exclusion.Release()

	loop := r.loop
	loop.SystemPrompt = buildSystemPrompt(goal, checkpoints, active)
	pipeline := agent.NewPipeline(r.router, r.stores.Sessions, r.stores.Memories, loop)

	approve := agent.StoreBackedApproval(r.stores.Approvals, func(ctx context.Context, req *models.ApprovalRequest) (models.ApprovalStatus, error) {
		req.SessionID = goal.SessionID
		return r.approvals.Notify(ctx, req)
	})

	exec := agent.NewExecutor(r.registry, r.engine, approve, sess.AuthorityTier)
	exec.RegisterRules(r.rules)
	exec.SetScheduleStore(r.stores.Schedules)

	var transcript []models.Turn
	seed := []models.Turn{{Role: "user", Content: kickoffTurn(active), CreatedAt: time.Now()}}
	result, err := agent.IsolatedTurn(ctx, r.stores.Sessions, sess, seed, func(ctx context.Context, isolated *models.Session) (*agent.TurnResult, error) {
		res, runErr := pipeline.Run(ctx, isolated, exec, models.TaskTypeCoding, "", "")
		transcript = append([]models.Turn{}, isolated.Conversation...)
		return res, runErr
	})
	return result, transcript, err
}

// finishCheckpoint is step 5: summarize the turn result, persist it, and
// transition the checkpoint to completed or failed.
func (r *Runner) finishCheckpoint(ctx context.Context, goal *models.Goal, checkpoint *models.Checkpoint, result *agent.TurnResult, turnErr error) {
	now := time.Now()
	checkpoint.CompletedAt = &now

	if result != nil {
		goal.LLMCallsUsed += result.Rounds
		goal.CostUSD += result.CostUSD
	}

	if turnErr != nil {
		if checkpoint.Attempts >= r.limits.MaxCheckpointAttempts {
			checkpoint.Status = models.CheckpointFailed
			checkpoint.ResultSummary = "exceeded max attempts: " + turnErr.Error()
			_ = r.stores.Goals.UpdateCheckpoint(ctx, checkpoint)
			goal.Status = models.GoalFailed
			goal.UpdatedAt = time.Now()
			_ = r.stores.Goals.Update(ctx, goal)
			r.broadcast.BroadcastEvent(goal.SessionID, r.originTier(ctx, goal), "goal_failed", map[string]any{"goal_id": goal.GoalID, "reason": turnErr.Error()})
			return
		}
		checkpoint.Status = models.CheckpointPending
		checkpoint.ResultSummary = "attempt failed: " + turnErr.Error()
		_ = r.stores.Goals.UpdateCheckpoint(ctx, checkpoint)
		return
	}

	summary, err := summarizeCheckpoint(ctx, r.router, checkpoint, result.AssistantText)
	if err != nil {
		summary = result.AssistantText
	}
	checkpoint.Status = models.CheckpointCompleted
	checkpoint.ResultSummary = summary
	_ = r.stores.Goals.UpdateCheckpoint(ctx, checkpoint)
	goal.CurrentCheckpoint = checkpoint.Order + 1

	r.broadcast.BroadcastEvent(goal.SessionID, r.originTier(ctx, goal), "goal_checkpoint_complete", map[string]any{"goal_id": goal.GoalID, "checkpoint": checkpoint.Order, "summary": summary})
}

// runEvaluateProgress is step 6.
func (r *Runner) runEvaluateProgress(ctx context.Context, goal *models.Goal) {
	checkpoints, err := r.stores.Goals.Checkpoints(ctx, goal.GoalID)
	if err != nil {
		return
	}
	revised, err := evaluateProgress(ctx, r.router, goal, checkpoints)
	if err != nil {
		r.logger.Warn("evaluate_progress failed", "goal_id", goal.GoalID, "error", err)
		return
	}
	if len(revised) == 0 {
		return
	}
	if err := r.stores.Goals.ReplacePendingCheckpoints(ctx, goal.GoalID, revised); err != nil {
		r.logger.Warn("replace pending checkpoints", "goal_id", goal.GoalID, "error", err)
		return
	}
	goal.TotalCheckpoints = countCompleted(checkpoints) + len(revised)
}

// compressContext is step 7. It summarizes the checkpoint's own isolated
// turn transcript, not the session's user-visible conversation (which
// IsolatedTurn restores to its pre-checkpoint state once the turn ends).
func (r *Runner) compressContext(ctx context.Context, goal *models.Goal, transcript []models.Turn) {
	if len(transcript) == 0 {
		return
	}
	summary, err := compressConversation(ctx, r.router, goal, transcript, r.limits.ContextSummaryMaxTokens)
	if err != nil {
		r.logger.Warn("compress conversation", "goal_id", goal.GoalID, "error", err)
		return
	}
	goal.ContextSummary = summary
}

// exceedsLimits is step 2.
func (r *Runner) exceedsLimits(goal *models.Goal, startedAt time.Time) string {
	switch {
	case goal.LLMCallsUsed >= r.limits.MaxLLMCallsPerGoal:
		return "max_llm_calls_per_goal exceeded"
	case time.Since(startedAt) >= r.limits.MaxTotalTime:
		return "max_total_time_per_goal_seconds exceeded"
	case goal.CostUSD >= r.limits.CostBudgetUSD:
		return "cost_budget_per_goal_usd exceeded"
	default:
		return ""
	}
}

// waitWhilePaused is step 8: yield at the checkpoint boundary (never
// mid-turn) while the shared pause token is set, returning true if ctx was
// cancelled while waiting.
func (r *Runner) waitWhilePaused(ctx context.Context) (cancelled bool) {
	for r.pause.IsSet() {
		select {
		case <-ctx.Done():
			return true
		case <-time.After(100 * time.Millisecond):
		}
	}
	return false
}

func firstPending(checkpoints []*models.Checkpoint) *models.Checkpoint {
	for _, c := range checkpoints {
		if c.Status == models.CheckpointPending {
			return c
		}
	}
	return nil
}

func countCompleted(checkpoints []*models.Checkpoint) int {
	n := 0
	for _, c := range checkpoints {
		if c.Status == models.CheckpointCompleted {
			n++
		}
	}
	return n
}
