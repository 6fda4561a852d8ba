package identity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/agentcore/internal/llm"
	"github.com/nexuscore/agentcore/internal/tools"
	"github.com/nexuscore/agentcore/pkg/models"
)

func TestRender_IncludesAllFacts(t *testing.T) {
	snapshot := Snapshot{
		Fingerprint: "abc123",
		Tools: []tools.Tool{
			{Name: "read_file", PermissionLevel: models.PermissionSafe},
			{Name: "shell", PermissionLevel: models.PermissionDestructive},
		},
		SessionTier:     models.TierOwner,
		Channel:         "cli",
		ProcessCount:    2,
		StorageUsedMB:   100,
		StorageCapMB:    1000,
		BudgetRemaining: 4.5,
		ProviderStats: map[string]llm.ProviderStats{
			"anthropic": {Calls: 10, Fallbacks: 1, SuspectedTruncated: 0},
		},
		Context: ContextUserChat,
		ActiveGoal: &GoalProgress{
			GoalID: "goal-1", CurrentCheckpoint: 2, TotalCheckpoints: 5,
		},
	}

	out := Render(snapshot)
	require.Contains(t, out, "<fingerprint>abc123</fingerprint>")
	require.Contains(t, out, `authority-tier channel="cli"`)
	require.Contains(t, out, ">owner<")
	require.Contains(t, out, `level name="safe" count="1"`)
	require.Contains(t, out, `level name="destructive" count="1"`)
	require.Contains(t, out, `provider name="anthropic" calls="10" fallbacks="1"`)
	require.Contains(t, out, `active-goal id="goal-1" current="2" total="5"`)
	require.Contains(t, out, "<storage-quota-level>ok</storage-quota-level>")
}

func TestRender_NoActiveGoalOmitsElement(t *testing.T) {
	out := Render(Snapshot{Context: ContextMindWakeup})
	require.NotContains(t, out, "active-goal")
}

func TestRender_HighStorageUsageIsFlaggedHardStop(t *testing.T) {
	out := Render(Snapshot{StorageUsedMB: 960, StorageCapMB: 1000})
	require.Contains(t, out, "<storage-quota-level>hard_stop</storage-quota-level>")
}
