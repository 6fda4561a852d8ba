// Package policy implements the layered authority + permission + safety
// decision described in spec §4.2: which tools a session can even see, and
// whether a given tool call auto-executes, requires approval, or is
// rejected outright.
package policy

import "github.com/nexuscore/agentcore/pkg/models"

// VisibleToSession reports whether a tool requiring requiredTier should be
// exposed in the LLM's tool list for a session at sessionTier. Execution
// later enforces the identical check independently (spec §4.6).
func VisibleToSession(requiredTier, sessionTier models.AuthorityTier) bool {
	return sessionTier.Rank() >= requiredTier.Rank()
}
