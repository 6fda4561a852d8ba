package mind

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nexuscore/agentcore/internal/llm"
	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/pkg/models"
)

// PriorityItem is one line of the assembled priority stack (spec §4.3 step
// 4 "Build priority stack from live state").
type PriorityItem struct {
	Category string
	Text     string
}

const knowledgeStaleAfter = 30 * 24 * time.Hour

// buildPriorityStack gathers live state into a deterministic, ranked list:
// first by category (per cfg.PriorityOrder), then by each category's own
// discovery order (spec "Ranking is deterministic: first by presence in
// each category, then configured category order").
func buildPriorityStack(ctx context.Context, stores storage.StoreSet, router *llm.Router, order []string) []PriorityItem {
	byCategory := map[string][]PriorityItem{
		"goals":      goalItems(ctx, stores),
		"schedule":   scheduleItems(ctx, stores),
		"knowledge":  knowledgeItems(ctx, stores),
		"capability": capabilityItems(router),
	}

	var out []PriorityItem
	seen := map[string]bool{}
	for _, cat := range order {
		out = append(out, byCategory[cat]...)
		seen[cat] = true
	}
	// Any category not named in cfg.PriorityOrder still appears, in a stable
	// order, so a misconfigured priority_order never silently drops state.
	var rest []string
	for cat := range byCategory {
		if !seen[cat] {
			rest = append(rest, cat)
		}
	}
	sort.Strings(rest)
	for _, cat := range rest {
		out = append(out, byCategory[cat]...)
	}
	return out
}

func goalItems(ctx context.Context, stores storage.StoreSet) []PriorityItem {
	goals, err := stores.Goals.ListByStatus(ctx, models.GoalActive)
	if err != nil {
		return nil
	}
	var out []PriorityItem
	for _, g := range goals {
		out = append(out, PriorityItem{
			Category: "goals",
			Text:     fmt.Sprintf("goal %q: checkpoint %d/%d", g.Goal, g.CurrentCheckpoint, g.TotalCheckpoints),
		})
	}
	return out
}

func scheduleItems(ctx context.Context, stores storage.StoreSet) []PriorityItem {
	tasks, err := stores.Schedules.List(ctx)
	if err != nil {
		return nil
	}
	now := time.Now()
	var out []PriorityItem
	for _, t := range tasks {
		if !t.Enabled || t.NextRun == nil {
			continue
		}
		if t.NextRun.After(now.Add(time.Hour)) {
			continue
		}
		due := "due soon"
		if t.NextRun.Before(now) {
			due = "overdue"
		}
		out = append(out, PriorityItem{
			Category: "schedule",
			Text:     fmt.Sprintf("scheduled task %q is %s (%s)", t.Name, due, t.ScheduleExpr),
		})
	}
	return out
}

func knowledgeItems(ctx context.Context, stores storage.StoreSet) []PriorityItem {
	if stores.Knowledge == nil {
		return nil
	}
	chunks, err := stores.Knowledge.All(ctx)
	if err != nil {
		return nil
	}
	cutoff := time.Now().Add(-knowledgeStaleAfter)
	var out []PriorityItem
	for _, c := range chunks {
		if c.UpdatedAt.After(cutoff) {
			continue
		}
		out = append(out, PriorityItem{
			Category: "knowledge",
			Text:     fmt.Sprintf("knowledge chunk %q has not been refreshed since %s", c.FilePath, c.UpdatedAt.Format(time.DateOnly)),
		})
	}
	return out
}

// capabilityItems flags providers whose recent call history suggests a
// capability gap (elevated error or fallback rate), surfaced so the mind can
// decide whether to raise it to the owner.
func capabilityItems(router *llm.Router) []PriorityItem {
	if router == nil {
		return nil
	}
	var out []PriorityItem
	for name, s := range router.Stats() {
		if s.Calls == 0 {
			continue
		}
		if float64(s.Errors)/float64(s.Calls) > 0.25 {
			out = append(out, PriorityItem{
				Category: "capability",
				Text:     fmt.Sprintf("provider %q is failing %d/%d recent calls", name, s.Errors, s.Calls),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	return out
}
