// Package identity assembles the Runtime Self-Model (spec §4.6): a
// machine-generated block rebuilt from live process state on every turn and
// inserted into the system prompt. It is distinct from storage.Identity
// (the persisted, LLM-mutable agent identity row) — this package reports
// ground-truth facts about the running process that the LLM cannot
// influence.
package identity

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/nexuscore/agentcore/internal/llm"
	"github.com/nexuscore/agentcore/internal/security"
	"github.com/nexuscore/agentcore/internal/tools"
	"github.com/nexuscore/agentcore/pkg/models"
)

// ContextFlag names which of the three turn kinds the self-model is being
// assembled for (spec §4.6 "context flag").
type ContextFlag string

const (
	ContextUserChat     ContextFlag = "user_chat"
	ContextGoalExecution ContextFlag = "goal_execution"
	ContextMindWakeup   ContextFlag = "mind_wakeup"
)

// GoalProgress is the subset of an active goal's state surfaced in the
// self-model, if a background turn is running one.
type GoalProgress struct {
	GoalID            string
	CurrentCheckpoint int
	TotalCheckpoints  int
}

// Snapshot is the set of live facts gathered immediately before assembling
// a turn's system prompt.
type Snapshot struct {
	Fingerprint    string
	Tools          []tools.Tool
	SessionTier    models.AuthorityTier
	Channel        string
	ProcessCount   int
	StorageUsedMB  float64
	StorageCapMB   float64
	BudgetRemaining float64
	ProviderStats  map[string]llm.ProviderStats
	Context        ContextFlag
	ActiveGoal     *GoalProgress
}

// Render builds the XML self-model block. The LLM is instructed, in the
// surrounding system prompt text (not here), not to override these facts;
// this function only produces the ground-truth block itself.
func Render(s Snapshot) string {
	var b strings.Builder
	b.WriteString("<runtime-self-model>\n")
	fmt.Fprintf(&b, "  <fingerprint>%s</fingerprint>\n", xmlEscape(s.Fingerprint))
	fmt.Fprintf(&b, "  <authority-tier channel=%q>%s</authority-tier>\n", s.Channel, s.SessionTier)
	fmt.Fprintf(&b, "  <context>%s</context>\n", s.Context)

	b.WriteString("  <tools>\n")
	for level, count := range countByPermission(s.Tools) {
		fmt.Fprintf(&b, "    <level name=%q count=\"%d\"/>\n", level, count)
	}
	b.WriteString("  </tools>\n")

	fmt.Fprintf(&b, "  <resources processes=\"%d\" storage_used_mb=\"%.1f\" storage_cap_mb=\"%.1f\" budget_remaining_usd=\"%.2f\"/>\n",
		s.ProcessCount, s.StorageUsedMB, s.StorageCapMB, s.BudgetRemaining)

	level := security.EvaluateStorageQuota(int64(s.StorageUsedMB*1024*1024), int64(s.StorageCapMB*1024*1024))
	fmt.Fprintf(&b, "  <storage-quota-level>%s</storage-quota-level>\n", quotaLevelName(level))

	b.WriteString("  <providers>\n")
	for name, stat := range s.ProviderStats {
		rate := 0.0
		if stat.Calls > 0 {
			rate = float64(stat.Fallbacks+stat.SuspectedTruncated) / float64(stat.Calls)
		}
		fmt.Fprintf(&b, "    <provider name=%q calls=\"%d\" fallbacks=\"%d\" suspected_truncated=\"%d\" degraded_rate=\"%.3f\"/>\n",
			name, stat.Calls, stat.Fallbacks, stat.SuspectedTruncated, rate)
	}
	b.WriteString("  </providers>\n")

	if s.ActiveGoal != nil {
		fmt.Fprintf(&b, "  <active-goal id=%q current=\"%d\" total=\"%d\"/>\n",
			s.ActiveGoal.GoalID, s.ActiveGoal.CurrentCheckpoint, s.ActiveGoal.TotalCheckpoints)
	}

	b.WriteString("</runtime-self-model>")
	return b.String()
}

func countByPermission(ts []tools.Tool) map[models.PermissionLevel]int {
	out := map[models.PermissionLevel]int{}
	for _, t := range ts {
		out[t.PermissionLevel]++
	}
	return out
}

func quotaLevelName(l security.StorageQuotaLevel) string {
	switch l {
	case security.StorageQuotaWarn:
		return "warn"
	case security.StorageQuotaHardStop:
		return "hard_stop"
	default:
		return "ok"
	}
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
