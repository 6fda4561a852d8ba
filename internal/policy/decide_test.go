package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscore/agentcore/internal/security"
	"github.com/nexuscore/agentcore/pkg/models"
)

func TestDecide_StorageQuotaHardStopRejectsFileWrites(t *testing.T) {
	protected := NewProtectedGuard(nil)
	blacklist, err := NewBlacklist(nil)
	require.NoError(t, err)
	engine, err := NewEngine(models.ModeFullAuto, nil, protected, blacklist, nil, nil, nil)
	require.NoError(t, err)
	engine.StorageQuota = func() security.StorageQuotaLevel { return security.StorageQuotaHardStop }

	inv := Invocation{
		Tool: ToolSpec{Name: "write_file", PermissionLevel: models.PermissionModerate, IsFileWriteTool: true},
		Path: "notes.md",
	}
	assert.Equal(t, DecisionRejectSoft, engine.Decide(inv))
}

func TestDecide_StorageQuotaWarnDoesNotBlockWrites(t *testing.T) {
	protected := NewProtectedGuard(nil)
	blacklist, err := NewBlacklist(nil)
	require.NoError(t, err)
	engine, err := NewEngine(models.ModeFullAuto, nil, protected, blacklist, nil, nil, nil)
	require.NoError(t, err)
	engine.StorageQuota = func() security.StorageQuotaLevel { return security.StorageQuotaWarn }

	inv := Invocation{
		Tool: ToolSpec{Name: "write_file", PermissionLevel: models.PermissionModerate, IsFileWriteTool: true},
		Path: "notes.md",
	}
	assert.Equal(t, DecisionAutoApprove, engine.Decide(inv))
}

func TestDecide_SmartAutoShellAllowlist(t *testing.T) {
	protected := NewProtectedGuard(nil)
	blacklist, err := NewBlacklist(nil)
	require.NoError(t, err)
	engine, err := NewEngine(models.ModeSmartAuto, nil, protected, blacklist, []string{`^ls `}, nil, nil)
	require.NoError(t, err)

	inv := Invocation{
		Tool: ToolSpec{
			Name:            "shell_execute",
			PermissionLevel: models.PermissionModerate,
			IsShellTool:     true,
		},
		Command: "ls /tmp",
	}
	assert.Equal(t, DecisionAutoApprove, engine.Decide(inv))
}

func TestDecide_BlacklistWinsRegardlessOfMode(t *testing.T) {
	protected := NewProtectedGuard(nil)
	blacklist, err := NewBlacklist(nil)
	require.NoError(t, err)
	engine, err := NewEngine(models.ModeFullAuto, nil, protected, blacklist, nil, nil, nil)
	require.NoError(t, err)

	inv := Invocation{
		Tool:    ToolSpec{Name: "shell_execute", PermissionLevel: models.PermissionSafe, IsShellTool: true},
		Command: "rm -rf /",
	}
	assert.Equal(t, DecisionRejectFatal, engine.Decide(inv))
}

func TestDecide_ProtectedFileWrite(t *testing.T) {
	protected := NewProtectedGuard([]string{"internal/policy"})
	blacklist, err := NewBlacklist(nil)
	require.NoError(t, err)
	engine, err := NewEngine(models.ModeFullAuto, nil, protected, blacklist, nil, nil, nil)
	require.NoError(t, err)

	inv := Invocation{
		Tool: ToolSpec{Name: "file_write", PermissionLevel: models.PermissionModerate, IsProtectedFileWriter: true},
		Path: "internal/policy/decide.go",
	}
	assert.Equal(t, DecisionRejectFatal, engine.Decide(inv))
}

func TestDecide_CriticalAlwaysAsks(t *testing.T) {
	protected := NewProtectedGuard(nil)
	blacklist, err := NewBlacklist(nil)
	require.NoError(t, err)
	engine, err := NewEngine(models.ModeFullAuto, nil, protected, blacklist, nil, nil, nil)
	require.NoError(t, err)

	inv := Invocation{Tool: ToolSpec{Name: "send_payment", PermissionLevel: models.PermissionCritical}}
	assert.Equal(t, DecisionRequireApproval, engine.Decide(inv))
}

func TestVisibleToSession(t *testing.T) {
	assert.True(t, VisibleToSession(models.TierTrusted, models.TierOwner))
	assert.False(t, VisibleToSession(models.TierTrusted, models.TierPublic))
	assert.True(t, VisibleToSession(models.TierPublic, models.TierPublic))
}
