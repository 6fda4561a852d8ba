package main

import (
	"time"

	"github.com/nexuscore/agentcore/internal/config"
	"github.com/nexuscore/agentcore/internal/goals"
	"github.com/nexuscore/agentcore/internal/mind"
)

// goalLimits maps the YAML goals section onto goals.Limits; zero fields
// fall through to goals.DefaultLimits inside goals.New's own sanitizer.
func goalLimits(cfg *config.Config) goals.Limits {
	g := cfg.Goals
	return goals.Limits{
		MaxCheckpoints:          g.MaxCheckpoints,
		MaxCheckpointAttempts:   g.MaxCheckpointAttempts,
		MaxLLMCallsPerGoal:      g.MaxLLMCallsPerGoal,
		MaxTotalTime:            time.Duration(g.MaxTotalTimePerGoalSeconds) * time.Second,
		CostBudgetUSD:           g.CostBudgetPerGoalUSD,
		ContextSummaryMaxTokens: g.ContextSummaryMaxTokens,
		PauseBetweenCheckpoints: time.Duration(g.PauseBetweenCheckpointsSec) * time.Second,
		AutoContinue:            g.AutoContinue,
	}
}

// mindLimits maps the YAML mind section onto mind.Limits.
func mindLimits(cfg *config.Config) mind.Limits {
	m := cfg.Mind
	return mind.Limits{
		WakeupSeconds:      m.WakeupSeconds,
		MinWakeupSeconds:   m.MinWakeupSeconds,
		MaxWakeupSeconds:   m.MaxWakeupSeconds,
		BudgetPct:          m.BudgetPct,
		MaxRoundsPerWakeup: m.MaxRoundsPerWakeup,
		MaxOwnerMsgPerHour: m.MaxOwnerMsgPerHour,
		PriorityOrder:      m.PriorityOrder,
	}
}
