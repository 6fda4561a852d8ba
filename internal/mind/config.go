// Package mind implements the autonomous mind worker (spec §4.3): a single
// background task that wakes on its own schedule, reviews a priority stack
// built from live state, runs one restricted-tool agent turn, updates its
// scratchpad, and reschedules its own next wakeup.
package mind

import "time"

// Limits mirrors the mind section of the configuration surface (spec §6.3
// "Autonomous mind").
type Limits struct {
	WakeupSeconds      int
	MinWakeupSeconds   int
	MaxWakeupSeconds   int
	BudgetPct          float64
	MaxRoundsPerWakeup int
	MaxOwnerMsgPerHour int
	PriorityOrder      []string
}

// DefaultLimits mirrors internal/config.Default()'s Mind block.
//
// PriorityOrder only names buildPriorityStack's actual categories
// ("goals", "schedule", "knowledge", "capability"); injected events are
// surfaced separately, in buildWakeupTurn's own "Events since last wake"
// section, not as a priority-stack category.
func DefaultLimits() Limits {
	return Limits{
		WakeupSeconds:      300,
		MinWakeupSeconds:   60,
		MaxWakeupSeconds:   3600,
		BudgetPct:          0.1,
		MaxRoundsPerWakeup: 8,
		MaxOwnerMsgPerHour: 5,
		PriorityOrder:      []string{"goals", "schedule", "knowledge", "capability"},
	}
}

func sanitizeLimits(l Limits) Limits {
	d := DefaultLimits()
	if l.WakeupSeconds <= 0 {
		l.WakeupSeconds = d.WakeupSeconds
	}
	if l.MinWakeupSeconds <= 0 {
		l.MinWakeupSeconds = d.MinWakeupSeconds
	}
	if l.MaxWakeupSeconds <= 0 {
		l.MaxWakeupSeconds = d.MaxWakeupSeconds
	}
	if l.MinWakeupSeconds > l.MaxWakeupSeconds {
		l.MinWakeupSeconds, l.MaxWakeupSeconds = l.MaxWakeupSeconds, l.MinWakeupSeconds
	}
	if l.BudgetPct <= 0 {
		l.BudgetPct = d.BudgetPct
	}
	if l.MaxRoundsPerWakeup <= 0 {
		l.MaxRoundsPerWakeup = d.MaxRoundsPerWakeup
	}
	if l.MaxOwnerMsgPerHour <= 0 {
		l.MaxOwnerMsgPerHour = d.MaxOwnerMsgPerHour
	}
	if len(l.PriorityOrder) == 0 {
		l.PriorityOrder = d.PriorityOrder
	}
	return l
}

func clamp(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}
