package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/agentcore/internal/config"
)

func TestGoalLimitsMapping(t *testing.T) {
	cfg := &config.Config{
		Goals: config.GoalsConfig{
			MaxCheckpoints:             8,
			MaxCheckpointAttempts:      3,
			MaxLLMCallsPerGoal:         40,
			MaxTotalTimePerGoalSeconds: 3600,
			CostBudgetPerGoalUSD:       5.0,
			ContextSummaryMaxTokens:    2000,
			PauseBetweenCheckpointsSec: 30,
			AutoContinue:               true,
		},
	}

	limits := goalLimits(cfg)
	require.Equal(t, 8, limits.MaxCheckpoints)
	require.Equal(t, 3, limits.MaxCheckpointAttempts)
	require.Equal(t, 40, limits.MaxLLMCallsPerGoal)
	require.Equal(t, 3600*1e9, float64(limits.MaxTotalTime))
	require.Equal(t, 5.0, limits.CostBudgetUSD)
	require.Equal(t, 2000, limits.ContextSummaryMaxTokens)
	require.Equal(t, 30*1e9, float64(limits.PauseBetweenCheckpoints))
	require.True(t, limits.AutoContinue)
}

func TestMindLimitsMapping(t *testing.T) {
	cfg := &config.Config{
		Mind: config.MindConfig{
			WakeupSeconds:      300,
			MinWakeupSeconds:   60,
			MaxWakeupSeconds:   900,
			BudgetPct:          0.1,
			MaxRoundsPerWakeup: 4,
			MaxOwnerMsgPerHour: 2,
			PriorityOrder:      []string{"reminders", "reflection"},
		},
	}

	limits := mindLimits(cfg)
	require.Equal(t, 300, limits.WakeupSeconds)
	require.Equal(t, 60, limits.MinWakeupSeconds)
	require.Equal(t, 900, limits.MaxWakeupSeconds)
	require.Equal(t, 0.1, limits.BudgetPct)
	require.Equal(t, 4, limits.MaxRoundsPerWakeup)
	require.Equal(t, 2, limits.MaxOwnerMsgPerHour)
	require.Equal(t, []string{"reminders", "reflection"}, limits.PriorityOrder)
}
