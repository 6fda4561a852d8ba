package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/pkg/models"
)

func TestScheduler_TickFiresDueTaskAndAdvances(t *testing.T) {
	stores := storage.NewMemoryStoreSet()
	past := time.Now().Add(-time.Minute)
	require.NoError(t, stores.Schedules.Create(context.Background(), &models.ScheduledTask{
		ID: "s1", Name: "nightly-report", ScheduleExpr: "@daily", Goal: "write the nightly report",
		Enabled: true, NextRun: &past,
	}))

	var fired int32
	sched := New(stores.Schedules, func(ctx context.Context, goal string) error {
		atomic.AddInt32(&fired, 1)
		require.Equal(t, "write the nightly report", goal)
		return nil
	}, nil)

	sched.tick(context.Background())
	require.EqualValues(t, 1, atomic.LoadInt32(&fired))

	tasks, err := stores.Schedules.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.NotNil(t, tasks[0].NextRun)
	require.True(t, tasks[0].NextRun.After(time.Now()))

	sched.tick(context.Background())
	require.EqualValues(t, 1, atomic.LoadInt32(&fired), "not due again yet")
}

func TestScheduler_DisabledTaskNeverFires(t *testing.T) {
	stores := storage.NewMemoryStoreSet()
	past := time.Now().Add(-time.Minute)
	require.NoError(t, stores.Schedules.Create(context.Background(), &models.ScheduledTask{
		ID: "s1", Name: "off", ScheduleExpr: "@daily", Goal: "should not run", Enabled: false, NextRun: &past,
	}))

	sched := New(stores.Schedules, func(ctx context.Context, goal string) error {
		t.Fatal("disabled task must not fire")
		return nil
	}, nil)
	sched.tick(context.Background())
}
