package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextOccurrence_DailyAtMidnight(t *testing.T) {
	after := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	next, err := NextOccurrence("@daily", after)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC), next)
}

func TestNextOccurrence_InvalidExpression(t *testing.T) {
	_, err := NextOccurrence("not a cron expression", time.Now())
	require.Error(t, err)
}

func TestNextOccurrence_EveryFiveMinutes(t *testing.T) {
	after := time.Date(2026, 7, 30, 10, 2, 0, 0, time.UTC)
	next, err := NextOccurrence("*/5 * * * *", after)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 7, 30, 10, 5, 0, 0, time.UTC), next)
}
