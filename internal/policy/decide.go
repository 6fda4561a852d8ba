package policy

import (
	"regexp"

	"github.com/nexuscore/agentcore/internal/security"
	"github.com/nexuscore/agentcore/pkg/models"
)

// Engine applies the permission decision order from spec §4.2: the first
// rule that fires wins.
type Engine struct {
	Mode             models.PermissionMode
	ToolOverrides    map[string]string // tool -> auto|ask|default
	Protected        *ProtectedGuard
	Blacklist        *Blacklist
	ShellAutoApprove []*regexp.Regexp
	FileWriteAllow   []string
	Spending         *SpendingGuard

	// StorageQuota, when set, is polled before every file-writing tool call
	// and rejects it once usage reaches the 95% hard-stop (spec §4.6).
	StorageQuota func() security.StorageQuotaLevel
}

// NewEngine compiles shell auto-approve patterns and wires the protected
// file guard, blacklist, and spending guard into one decision engine.
func NewEngine(mode models.PermissionMode, overrides map[string]string, protected *ProtectedGuard, blacklist *Blacklist, shellAutoApprove []string, fileWriteAllow []string, spending *SpendingGuard) (*Engine, error) {
	e := &Engine{
		Mode:           mode,
		ToolOverrides:  overrides,
		Protected:      protected,
		Blacklist:      blacklist,
		FileWriteAllow: fileWriteAllow,
		Spending:       spending,
	}
	for _, p := range shellAutoApprove {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		e.ShellAutoApprove = append(e.ShellAutoApprove, re)
	}
	return e, nil
}

// Decide runs the layered rule set against one invocation.
func (e *Engine) Decide(inv Invocation) Decision {
	// Rule 1: protected-file writer targeting the protected root.
	if inv.Tool.IsProtectedFileWriter && e.Protected != nil && inv.Path != "" && e.Protected.Blocks(inv.Path) {
		return DecisionRejectFatal
	}

	// Rule 1b: storage quota hard-stop on any file-writing tool, regardless
	// of mode (spec §4.6: "95% hard-stop on filesystem-writing tools").
	if inv.Tool.IsFileWriteTool && e.StorageQuota != nil && e.StorageQuota() == security.StorageQuotaHardStop {
		return DecisionRejectSoft
	}

	// Rule 2: destructive blacklist, on command or path.
	if e.Blacklist != nil {
		if inv.Command != "" && e.Blacklist.Matches(inv.Command) {
			return DecisionRejectFatal
		}
		if inv.Path != "" && e.Blacklist.Matches(inv.Path) {
			return DecisionRejectFatal
		}
	}

	// Rule 3: critical permission or explicit per-tool "ask" override.
	if inv.Tool.PermissionLevel == models.PermissionCritical {
		return DecisionRequireApproval
	}
	if override, ok := e.ToolOverrides[inv.Tool.Name]; ok {
		switch override {
		case "ask":
			return DecisionRequireApproval
		case "auto":
			return DecisionAutoApprove
		}
		// "default" falls through to mode-specific handling below.
	}

	// Rule 4: mode-specific.
	switch e.Mode {
	case models.ModeAskAlways:
		if inv.Tool.PermissionLevel != models.PermissionSafe {
			return DecisionRequireApproval
		}
		return e.spendingOverride(inv, DecisionAutoApprove)

	case models.ModeSmartAuto:
		switch inv.Tool.PermissionLevel {
		case models.PermissionSafe:
			return e.spendingOverride(inv, DecisionAutoApprove)
		case models.PermissionModerate:
			if inv.Tool.IsShellTool && e.matchesShellAutoApprove(inv.Command) {
				return e.spendingOverride(inv, DecisionAutoApprove)
			}
			if inv.Tool.IsFileWriteTool && inPrefixList(inv.Path, e.FileWriteAllow) {
				return e.spendingOverride(inv, DecisionAutoApprove)
			}
			return DecisionRequireApproval
		default: // destructive
			return DecisionRequireApproval
		}

	case models.ModeFullAuto:
		return e.spendingOverride(inv, DecisionAutoApprove)

	default:
		return DecisionRequireApproval
	}
}

// spendingOverride applies rule 5: spending limits override full_auto and
// always require approval beyond thresholds, regardless of what the
// mode-specific rule decided.
func (e *Engine) spendingOverride(inv Invocation, fallback Decision) Decision {
	if !inv.Tool.IsPaymentTool || e.Spending == nil {
		return fallback
	}
	if e.Spending.RequiresApproval(inv.Merchant, inv.AmountUSD) {
		return DecisionRequireApproval
	}
	return fallback
}

func (e *Engine) matchesShellAutoApprove(command string) bool {
	for _, re := range e.ShellAutoApprove {
		if re.MatchString(command) {
			return true
		}
	}
	return false
}

func inPrefixList(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if len(path) >= len(p) && path[:len(p)] == p {
			return true
		}
	}
	return false
}
