package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/agentcore/internal/policy"
	"github.com/nexuscore/agentcore/internal/security"
	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/internal/tools"
	"github.com/nexuscore/agentcore/pkg/models"
)

func paymentTool() tools.Tool {
	t := echoTool(models.PermissionSafe)
	t.Name = "pay"
	t.IsPaymentTool = true
	return t
}

func newTestEngine(t *testing.T, mode models.PermissionMode) *policy.Engine {
	t.Helper()
	blacklist, err := policy.NewBlacklist(nil)
	require.NoError(t, err)
	engine, err := policy.NewEngine(mode, nil, policy.NewProtectedGuard(nil), blacklist, nil, nil, nil)
	require.NoError(t, err)
	return engine
}

func echoTool(level models.PermissionLevel) tools.Tool {
	return tools.Tool{
		Name:            "echo",
		Description:     "echoes the message param",
		PermissionLevel: level,
		Schema:          json.RawMessage(`{"type":"object","properties":{"message":{"type":"string"}},"required":["message"]}`),
		Execute: func(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
			var p struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(params, &p)
			return &tools.Result{Content: p.Message}, nil
		},
	}
}

func TestExecutor_DispatchAutoApprovesSafeTool(t *testing.T) {
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(echoTool(models.PermissionSafe)))

	engine := newTestEngine(t, models.ModeSmartAuto)
	exec := NewExecutor(registry, engine, func(ctx context.Context, req *models.ApprovalRequest) (models.ApprovalStatus, error) {
		t.Fatal("approval callback should not be invoked for a safe tool")
		return models.ApprovalDenied, nil
	}, models.TierTrusted)

	out, err := exec.Dispatch(context.Background(), models.ToolCall{ID: "1", Name: "echo", Input: []byte(`{"message":"hi"}`)})
	require.NoError(t, err)
	require.Equal(t, "hi", out)
}

func TestExecutor_DispatchRequiresApprovalForCritical(t *testing.T) {
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(echoTool(models.PermissionCritical)))

	engine := newTestEngine(t, models.ModeFullAuto)
	called := false
	exec := NewExecutor(registry, engine, func(ctx context.Context, req *models.ApprovalRequest) (models.ApprovalStatus, error) {
		called = true
		require.Equal(t, "echo", req.ToolName)
		return models.ApprovalDenied, nil
	}, models.TierOwner)

	out, err := exec.Dispatch(context.Background(), models.ToolCall{ID: "1", Name: "echo", Input: []byte(`{"message":"hi"}`)})
	require.NoError(t, err)
	require.True(t, called)
	require.Contains(t, out, "denied")
}

func TestExecutor_DispatchBlacklistIsFatal(t *testing.T) {
	registry := tools.NewRegistry()
	shell := echoTool(models.PermissionModerate)
	shell.Name = "shell"
	shell.IsShellTool = true
	require.NoError(t, registry.Register(shell))

	engine := newTestEngine(t, models.ModeFullAuto)
	exec := NewExecutor(registry, engine, nil, models.TierOwner)
	exec.RegisterInvocationRule("shell", func(params json.RawMessage) policy.Invocation {
		var p struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(params, &p)
		return policy.Invocation{Command: p.Message}
	})

	_, err := exec.Dispatch(context.Background(), models.ToolCall{ID: "1", Name: "shell", Input: []byte(`{"message":"rm -rf /"}`)})
	require.ErrorIs(t, err, ErrBlacklisted)
}

func TestExecutor_DispatchRecordsPaymentSpend(t *testing.T) {
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(paymentTool()))

	spending := policy.NewSpendingGuard(0, 100, 0, 0, 0, 0)
	engine, err := policy.NewEngine(models.ModeFullAuto, nil, nil, nil, nil, nil, spending)
	require.NoError(t, err)

	exec := NewExecutor(registry, engine, nil, models.TierOwner)
	exec.RegisterInvocationRule("pay", func(params json.RawMessage) policy.Invocation {
		var p struct {
			Merchant string  `json:"merchant"`
			Amount   float64 `json:"amount"`
		}
		_ = json.Unmarshal(params, &p)
		return policy.Invocation{Merchant: p.Merchant, AmountUSD: p.Amount}
	})

	_, err = exec.Dispatch(context.Background(), models.ToolCall{ID: "1", Name: "pay", Input: []byte(`{"merchant":"acme","amount":60,"message":"ok"}`)})
	require.NoError(t, err)

	// A second $50 transaction would push the rolling daily total to $110,
	// over the $100 cap, only if the first $60 was actually recorded.
	require.True(t, spending.RequiresApproval("acme", 50))
}

func TestExecutor_DispatchSchedulesCooldownInsteadOfExecuting(t *testing.T) {
	registry := tools.NewRegistry()
	executed := false
	tool := paymentTool()
	tool.Execute = func(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
		executed = true
		return &tools.Result{Content: "paid"}, nil
	}
	require.NoError(t, registry.Register(tool))

	spending := policy.NewSpendingGuard(0, 0, 0, 0, 100, 5)
	engine, err := policy.NewEngine(models.ModeFullAuto, nil, nil, nil, nil, nil, spending)
	require.NoError(t, err)

	exec := NewExecutor(registry, engine, nil, models.TierOwner)
	exec.RegisterInvocationRule("pay", func(params json.RawMessage) policy.Invocation {
		var p struct {
			Merchant string  `json:"merchant"`
			Amount   float64 `json:"amount"`
		}
		_ = json.Unmarshal(params, &p)
		return policy.Invocation{Merchant: p.Merchant, AmountUSD: p.Amount}
	})
	stores := storage.NewMemoryStoreSet()
	exec.SetScheduleStore(stores.Schedules)

	out, err := exec.Dispatch(context.Background(), models.ToolCall{ID: "1", Name: "pay", Input: []byte(`{"merchant":"acme","amount":500,"message":"ok"}`)})
	require.NoError(t, err)
	require.False(t, executed, "payment above the cooldown threshold must not execute immediately")
	require.Contains(t, out, "cooldown_pending")

	tasks, err := stores.Schedules.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Contains(t, tasks[0].Goal, "acme")
}

func TestExecutor_DispatchRejectsFileWriteOnStorageQuotaHardStop(t *testing.T) {
	registry := tools.NewRegistry()
	executed := false
	tool := echoTool(models.PermissionSafe)
	tool.Name = "write_file"
	tool.IsFileWriteTool = true
	tool.Execute = func(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
		executed = true
		return &tools.Result{Content: "written"}, nil
	}
	require.NoError(t, registry.Register(tool))

	engine, err := policy.NewEngine(models.ModeFullAuto, nil, nil, nil, nil, nil, nil)
	require.NoError(t, err)
	engine.StorageQuota = func() security.StorageQuotaLevel { return security.StorageQuotaHardStop }

	exec := NewExecutor(registry, engine, nil, models.TierOwner)

	out, err := exec.Dispatch(context.Background(), models.ToolCall{ID: "1", Name: "write_file", Input: []byte(`{"message":"hi"}`)})
	require.NoError(t, err)
	require.False(t, executed, "quota hard-stop must reject before the tool runs")
	require.Contains(t, out, "storage quota hard-stop")
}

func TestExecutor_VisibleToolsFiltersByAuthorityTier(t *testing.T) {
	registry := tools.NewRegistry()
	safe := echoTool(models.PermissionSafe)
	safe.AuthorityTierRequired = models.TierPublic
	ownerOnly := echoTool(models.PermissionSafe)
	ownerOnly.Name = "owner_only"
	ownerOnly.AuthorityTierRequired = models.TierOwner
	require.NoError(t, registry.Register(safe))
	require.NoError(t, registry.Register(ownerOnly))

	engine := newTestEngine(t, models.ModeFullAuto)
	exec := NewExecutor(registry, engine, nil, models.TierPublic)

	visible := exec.VisibleTools()
	require.Len(t, visible, 1)
	require.Equal(t, "echo", visible[0].Name)
}
