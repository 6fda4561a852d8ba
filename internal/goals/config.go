// Package goals runs autonomous multi-checkpoint objectives (spec §4.3
// "Goal Runner"): a goal is decomposed once into an ordered checkpoint list,
// then advanced one checkpoint at a time via isolated background turns that
// cooperate with interactive user turns over the same exclusion/pause
// primitives the gateway uses (internal/worker).
package goals

import "time"

// Limits bounds one goal's resource use and execution cadence (spec §4.3
// step 2 safety limits, step 9 pacing).
type Limits struct {
	// MinCheckpoints/MaxCheckpoints bound the decomposition call's output
	// (spec §4.3 "an ordered list of 3-20 checkpoints").
	MinCheckpoints int
	MaxCheckpoints int

	// MaxCheckpointAttempts is how many times one checkpoint may be retried
	// before the goal is marked failed.
	MaxCheckpointAttempts int

	// MaxLLMCallsPerGoal, MaxTotalTime, and CostBudgetUSD are the per-goal
	// safety limits checked before every checkpoint (spec §4.3 step 2).
	MaxLLMCallsPerGoal int
	MaxTotalTime       time.Duration
	CostBudgetUSD      float64

	// ContextSummaryMaxTokens bounds the rolling conversation summary
	// persisted on the goal row (spec §4.3 step 7). Enforced as a rune-count
	// heuristic (4 chars/token) since exact tokenization is provider-specific.
	ContextSummaryMaxTokens int

	// EvaluateEveryNCheckpoints is the cadence of the evaluate_progress call
	// (spec §4.3 step 6, N=2).
	EvaluateEveryNCheckpoints int

	// PauseBetweenCheckpoints is the inter-checkpoint sleep (spec §4.3 step 9).
	PauseBetweenCheckpoints time.Duration

	// AutoContinue resumes every status=active goal on Runner.Start (spec
	// §4.3 "On startup, if auto_continue=true...").
	AutoContinue bool
}

// DefaultLimits returns the spec's defaults.
func DefaultLimits() Limits {
	return Limits{
		MinCheckpoints:            3,
		MaxCheckpoints:            20,
		MaxCheckpointAttempts:     3,
		MaxLLMCallsPerGoal:        200,
		MaxTotalTime:              4 * time.Hour,
		CostBudgetUSD:             5.0,
		ContextSummaryMaxTokens:   2000,
		EvaluateEveryNCheckpoints: 2,
		PauseBetweenCheckpoints:   5 * time.Second,
		AutoContinue:              true,
	}
}

func sanitizeLimits(l Limits) Limits {
	d := DefaultLimits()
	if l.MinCheckpoints <= 0 {
		l.MinCheckpoints = d.MinCheckpoints
	}
	if l.MaxCheckpoints <= 0 {
		l.MaxCheckpoints = d.MaxCheckpoints
	}
	if l.MaxCheckpointAttempts <= 0 {
		l.MaxCheckpointAttempts = d.MaxCheckpointAttempts
	}
	if l.MaxLLMCallsPerGoal <= 0 {
		l.MaxLLMCallsPerGoal = d.MaxLLMCallsPerGoal
	}
	if l.MaxTotalTime <= 0 {
		l.MaxTotalTime = d.MaxTotalTime
	}
	if l.CostBudgetUSD <= 0 {
		l.CostBudgetUSD = d.CostBudgetUSD
	}
	if l.ContextSummaryMaxTokens <= 0 {
		l.ContextSummaryMaxTokens = d.ContextSummaryMaxTokens
	}
	if l.EvaluateEveryNCheckpoints <= 0 {
		l.EvaluateEveryNCheckpoints = d.EvaluateEveryNCheckpoints
	}
	if l.PauseBetweenCheckpoints <= 0 {
		l.PauseBetweenCheckpoints = d.PauseBetweenCheckpoints
	}
	return l
}
