package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscore/agentcore/internal/policy"
	"github.com/nexuscore/agentcore/internal/security"
	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/internal/tools"
	"github.com/nexuscore/agentcore/pkg/models"
)

// Executor dispatches one tool call through the permission decision order
// (spec §4.2), gates on approval when required, executes via the tool
// registry, and sanitizes the result before it re-enters the LLM context.
type Executor struct {
	registry *tools.Registry
	engine   *policy.Engine
	approve  ApprovalCallback
	tier     models.AuthorityTier

	// invocationOf extracts the policy-relevant command/path/amount from a
	// tool's raw params. Built-in tools register one via RegisterInvocationRule;
	// tools with no rule are classified on permission_level alone.
	invocationOf map[string]func(params json.RawMessage) policy.Invocation

	// whitelist, when non-nil, further narrows visibility below authority-tier
	// gating (spec §4.3 "restricted tool whitelist" for autonomous mind wakeups).
	whitelist map[string]bool

	// schedules, when set, lets a cooldown-gated payment tool insert a
	// one-shot reminder row instead of executing immediately (spec §4.2
	// rule 5). Nil disables cooldown scheduling; the tool then runs as soon
	// as it is approved.
	schedules storage.ScheduleStore

	// injectionSuspected is set for the remainder of a turn once the
	// pipeline observes external content matching a prompt-injection
	// pattern (spec §4.6). While set, an auto-approve decision is
	// downgraded to require-approval instead of executing silently.
	injectionSuspected bool
}

// NewExecutor wires a registry, policy engine, and approval callback for one
// turn. tier is the session's authority tier, used for PII sanitization
// (owner sees raw content with a warning marker; others get redaction).
func NewExecutor(registry *tools.Registry, engine *policy.Engine, approve ApprovalCallback, tier models.AuthorityTier) *Executor {
	return &Executor{
		registry:     registry,
		engine:       engine,
		approve:      approve,
		tier:         tier,
		invocationOf: map[string]func(json.RawMessage) policy.Invocation{},
	}
}

// RegisterInvocationRule teaches the executor how to extract a policy
// Invocation (command/path/amount) from one tool's params, so the blacklist
// and protected-file guard can inspect it. Tools with no registered rule
// are still classified by permission_level and authority tier alone.
func (e *Executor) RegisterInvocationRule(toolName string, fn func(params json.RawMessage) policy.Invocation) {
	e.invocationOf[toolName] = fn
}

// InvocationRule pairs a tool name with its invocation-extraction function,
// for bulk registration against a freshly constructed Executor. The gateway
// and the goal runner both build a fresh Executor per turn (spec §4.2
// conversation isolation) and register the same rule set each time.
type InvocationRule struct {
	Tool string
	Fn   func(params json.RawMessage) policy.Invocation
}

// RegisterRules bulk-registers a rule set built once at wiring time.
func (e *Executor) RegisterRules(rules []InvocationRule) {
	for _, r := range rules {
		e.RegisterInvocationRule(r.Tool, r.Fn)
	}
}

// SetScheduleStore wires the schedule store the executor uses to insert a
// one-shot reminder row when SpendingGuard.CooldownFor gates a payment tool
// (spec §4.2 rule 5, spec.md:122).
func (e *Executor) SetScheduleStore(s storage.ScheduleStore) {
	e.schedules = s
}

// SetInjectionSuspected marks (or clears) the turn as having observed
// external content matching an injection pattern. The pipeline sets this
// after any tool result trips security.DetectInjection.
func (e *Executor) SetInjectionSuspected(v bool) {
	e.injectionSuspected = v
}

// RestrictTools narrows the executor's visible and dispatchable tools to the
// given names, on top of (never instead of) authority-tier gating. Used by
// the autonomous mind to enforce its restricted wakeup whitelist.
func (e *Executor) RestrictTools(names []string) {
	e.whitelist = make(map[string]bool, len(names))
	for _, n := range names {
		e.whitelist[n] = true
	}
}

// VisibleTools returns the llm.ToolDef-shaped subset of the registry's tools
// whose authority_tier_required is satisfied by the executor's session tier
// (spec §4.2, §4.6), further narrowed by any whitelist set via RestrictTools.
func (e *Executor) VisibleTools() []tools.Tool {
	var out []tools.Tool
	for _, t := range e.registry.List() {
		if !policy.VisibleToSession(t.AuthorityTierRequired, e.tier) {
			continue
		}
		if e.whitelist != nil && !e.whitelist[t.Name] {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Dispatch runs one tool call end to end and returns the sanitized result
// text to append as a "tool" turn. A non-nil error is only returned for a
// blacklist/protected-file rejection (ErrBlacklisted), which terminates the
// turn per spec §4.2's failure semantics; every other outcome (tool error,
// approval denial) is encoded in the returned string so the LLM can plan
// differently next round.
func (e *Executor) Dispatch(ctx context.Context, call models.ToolCall) (string, error) {
	tool, ok := e.registry.Get(call.Name)
	if !ok {
		return fmt.Sprintf(`{"error":"unknown tool %q"}`, call.Name), nil
	}
	if !policy.VisibleToSession(tool.AuthorityTierRequired, e.tier) {
		return fmt.Sprintf(`{"error":"tool %q requires a higher authority tier"}`, call.Name), nil
	}
	if e.whitelist != nil && !e.whitelist[call.Name] {
		return fmt.Sprintf(`{"error":"tool %q is not in the current restricted whitelist"}`, call.Name), nil
	}

	inv := policy.Invocation{Tool: toToolSpec(tool)}
	if fn, ok := e.invocationOf[call.Name]; ok {
		inv = fn(call.Input)
		inv.Tool = toToolSpec(tool)
	}

	decision := e.engine.Decide(inv)
	if e.injectionSuspected && decision == policy.DecisionAutoApprove {
		decision = policy.DecisionRequireApproval
	}

	switch decision {
	case policy.DecisionRejectFatal:
		return "", ErrBlacklisted
	case policy.DecisionRejectSoft:
		return fmt.Sprintf(`{"error":"tool %q rejected: storage quota hard-stop"}`, call.Name), nil
	case policy.DecisionRequireApproval:
		status, err := e.approve(ctx, &models.ApprovalRequest{
			ToolName:   call.Name,
			ParamsJSON: string(call.Input),
			Context:    fmt.Sprintf("tool %q requires approval", call.Name),
		})
		if err != nil {
			return fmt.Sprintf(`{"error":"approval request failed: %s"}`, err.Error()), nil
		}
		if status != models.ApprovalApproved {
			return fmt.Sprintf(`{"error":"approval %s"}`, status), nil
		}
	}

	if inv.Tool.IsPaymentTool && e.engine.Spending != nil {
		if cooldown := e.engine.Spending.CooldownFor(inv.AmountUSD); cooldown > 0 {
			if err := e.scheduleCooldownReminder(ctx, call, inv, cooldown); err != nil {
				return fmt.Sprintf(`{"error":"cooldown scheduling failed: %s"}`, err.Error()), nil
			}
			return fmt.Sprintf(`{"cooldown_pending":true,"resume_in_seconds":%d}`, int(cooldown.Seconds())), nil
		}
	}

	result, err := e.registry.Execute(ctx, call.Name, call.Input)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error()), nil
	}

	content := result.Content
	if result.IsError {
		return fmt.Sprintf(`{"error":%q}`, content), nil
	}
	if inv.Tool.IsPaymentTool && e.engine.Spending != nil {
		e.engine.Spending.Record(inv.Merchant, inv.AmountUSD)
	}
	return security.SanitizeToolOutput(content, security.SanitizeOptions{Tier: e.tier}), nil
}

// scheduleCooldownReminder inserts a one-shot ScheduledTask that re-proposes
// the gated payment as a goal once the cooldown elapses, rather than
// blocking the turn for the cooldown's duration (spec.md:122). A nil
// schedule store means the tool simply runs uncooled.
func (e *Executor) scheduleCooldownReminder(ctx context.Context, call models.ToolCall, inv policy.Invocation, cooldown time.Duration) error {
	if e.schedules == nil {
		return nil
	}
	next := time.Now().Add(cooldown)
	task := &models.ScheduledTask{
		ID:   uuid.NewString(),
		Name: fmt.Sprintf("payment cooldown: %s", call.Name),
		// ScheduleExpr left empty marks this row one-shot (scheduler.Scheduler
		// disables it after its single fire instead of treating it as a
		// malformed cron expression).
		Goal:    fmt.Sprintf("retry %s for merchant %q ($%.2f) now that its cooldown has elapsed", call.Name, inv.Merchant, inv.AmountUSD),
		Enabled: true,
		NextRun: &next,
	}
	return e.schedules.Create(ctx, task)
}

func toToolSpec(t tools.Tool) policy.ToolSpec {
	sensitive := make(map[string]bool, len(t.SensitiveParams))
	for _, p := range t.SensitiveParams {
		sensitive[p] = true
	}
	return policy.ToolSpec{
		Name:                  t.Name,
		PermissionLevel:       t.PermissionLevel,
		AuthorityTierRequired: t.AuthorityTierRequired,
		SensitiveParams:       sensitive,
		IsProtectedFileWriter: t.IsProtectedFileWriter,
		IsShellTool:           t.IsShellTool,
		IsFileWriteTool:       t.IsFileWriteTool,
		IsPaymentTool:         t.IsPaymentTool,
	}
}
