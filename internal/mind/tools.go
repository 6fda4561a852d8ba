package mind

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nexuscore/agentcore/internal/tools"
	"github.com/nexuscore/agentcore/pkg/models"
)

const (
	toolUpdateScratchpad = "mind_update_scratchpad"
	toolSetNextWakeup    = "mind_set_next_wakeup"
	toolNotifyOwner      = "mind_notify_owner"
)

var scratchpadSchema = json.RawMessage(`{
	"type": "object",
	"properties": {"markdown": {"type": "string"}},
	"required": ["markdown"]
}`)

var wakeupSchema = json.RawMessage(`{
	"type": "object",
	"properties": {"seconds": {"type": "integer", "minimum": 1}},
	"required": ["seconds"]
}`)

var notifySchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"class": {"type": "string", "enum": ["revenue", "approval_needed", "goal_milestone", "hard_failure", "rollup_summary"]},
		"text": {"type": "string"}
	},
	"required": ["class", "text"]
}`)

// registerTools installs the mind's own action tools into the shared
// registry (idempotent — safe to call on every Worker construction). They
// require owner tier and only ever appear in an agent turn's visible set
// when that turn's executor has been narrowed to the mind's restricted
// whitelist (spec §4.3 step 6).
func (w *Worker) registerTools() {
	_ = w.registry.Register(tools.Tool{
		Name:                  toolUpdateScratchpad,
		Description:           "Replace the mind's persistent scratchpad markdown.",
		Schema:                scratchpadSchema,
		PermissionLevel:       models.PermissionSafe,
		AuthorityTierRequired: models.TierOwner,
		Execute:               w.execUpdateScratchpad,
	})
	_ = w.registry.Register(tools.Tool{
		Name:                  toolSetNextWakeup,
		Description:           "Set the delay in seconds until the mind's next wakeup, clamped to the configured [min,max] range.",
		Schema:                wakeupSchema,
		PermissionLevel:       models.PermissionSafe,
		AuthorityTierRequired: models.TierOwner,
		Execute:               w.execSetNextWakeup,
	})
	_ = w.registry.Register(tools.Tool{
		Name:                  toolNotifyOwner,
		Description:           "Send a proactive message to the owner. Only message-worthy classes are delivered; rate-limited.",
		Schema:                notifySchema,
		PermissionLevel:       models.PermissionSafe,
		AuthorityTierRequired: models.TierOwner,
		Execute:               w.execNotifyOwner,
	})
}

// mindToolNames is the mind's default restricted whitelist, narrowed further
// on top of authority-tier gating (spec §4.3 step 6).
func mindToolNames(extra []string) []string {
	return append([]string{toolUpdateScratchpad, toolSetNextWakeup, toolNotifyOwner}, extra...)
}

func (w *Worker) execUpdateScratchpad(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	var req struct {
		Markdown string `json:"markdown"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return &tools.Result{Content: "invalid params: " + err.Error(), IsError: true}, nil
	}
	if err := w.stores.Scratchpad.Set(ctx, req.Markdown); err != nil {
		return &tools.Result{Content: "scratchpad write failed: " + err.Error(), IsError: true}, nil
	}
	return &tools.Result{Content: `{"ok":true}`}, nil
}

func (w *Worker) execSetNextWakeup(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	var req struct {
		Seconds int `json:"seconds"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return &tools.Result{Content: "invalid params: " + err.Error(), IsError: true}, nil
	}
	requested := time.Duration(req.Seconds) * time.Second
	clamped := clamp(requested, time.Duration(w.limits.MinWakeupSeconds)*time.Second, time.Duration(w.limits.MaxWakeupSeconds)*time.Second)
	w.setNextWakeupDelay(clamped)
	return &tools.Result{Content: fmt.Sprintf(`{"ok":true,"seconds":%d}`, int(clamped.Seconds()))}, nil
}

func (w *Worker) execNotifyOwner(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	var req struct {
		Class string `json:"class"`
		Text  string `json:"text"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return &tools.Result{Content: "invalid params: " + err.Error(), IsError: true}, nil
	}
	if !isMessageWorthy(req.Class) {
		return &tools.Result{Content: `{"sent":false,"reason":"not a message-worthy class, suppressed"}`}, nil
	}
	if !w.outbound.Allow(time.Now()) {
		return &tools.Result{Content: `{"sent":false,"reason":"rate limited"}`}, nil
	}
	if !w.recipientCooldown.Allow("owner", time.Now()) {
		return &tools.Result{Content: `{"sent":false,"reason":"recipient cooldown"}`}, nil
	}
	w.broadcast.BroadcastEvent("", models.TierOwner, "mind_action", map[string]any{"class": req.Class, "text": req.Text})
	return &tools.Result{Content: `{"sent":true}`}, nil
}
