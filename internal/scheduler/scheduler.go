// Package scheduler drives cron-expressed Scheduled Task rows (spec §3,
// §4.3): goals that fire on a schedule rather than at user request, and the
// autonomous mind's periodic wakeup.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/pkg/models"
)

// cronParser accepts the standard 5-field cron plus an optional leading
// seconds field and the handful of descriptors (@daily, @hourly, ...),
// matching the teacher's own scheduler configuration surface.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// GoalStarter launches a new goal for a scheduled task's target. The goal
// runner supplies the concrete implementation.
type GoalStarter func(ctx context.Context, goal string) error

// Scheduler polls storage.ScheduleStore on a fixed tick, firing each
// ScheduledTask whose next_run has elapsed and advancing it to its next
// occurrence. It holds no in-memory schedule state beyond the parsed cron
// expressions, so restarts simply resume from the stored next_run values.
type Scheduler struct {
	store        storage.ScheduleStore
	startGoal    GoalStarter
	tickInterval time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu      sync.Mutex
	started bool
}

// New builds a Scheduler. tickInterval defaults to 30 seconds, fine-grained
// enough for minute-resolution cron expressions without busy-polling.
func New(store storage.ScheduleStore, startGoal GoalStarter, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:        store,
		startGoal:    startGoal,
		tickInterval: 30 * time.Second,
		logger:       logger,
		now:          time.Now,
	}
}

// Run blocks, ticking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: already running")
	}
	s.started = true
	s.mu.Unlock()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	tasks, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("scheduler: list failed", "error", err)
		return
	}
	now := s.now()
	for _, t := range tasks {
		if !t.Enabled || t.NextRun == nil || t.NextRun.After(now) {
			continue
		}
		s.fire(ctx, t, now)
	}
}

func (s *Scheduler) fire(ctx context.Context, t *models.ScheduledTask, now time.Time) {
	if err := s.startGoal(ctx, t.Goal); err != nil {
		s.logger.Error("scheduler: goal start failed", "schedule", t.Name, "error", err)
	}
	t.LastRun = &now
	switch {
	case t.ScheduleExpr == "":
		// One-shot reminder row (e.g. a payment cooldown, spec.md:122): fire
		// exactly once, never reschedule.
		t.Enabled = false
		t.NextRun = nil
	default:
		next, err := NextOccurrence(t.ScheduleExpr, now)
		if err != nil {
			s.logger.Error("scheduler: invalid schedule expression, disabling", "schedule", t.Name, "error", err)
			t.Enabled = false
		} else {
			t.NextRun = &next
		}
	}
	if err := s.store.Update(ctx, t); err != nil {
		s.logger.Error("scheduler: update failed", "schedule", t.Name, "error", err)
	}
}

// NextOccurrence parses expr as a cron expression and returns its next fire
// time strictly after after.
func NextOccurrence(expr string, after time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("scheduler: invalid cron expression %q: %w", expr, err)
	}
	return sched.Next(after), nil
}
