package policy

import (
	"path/filepath"
	"strings"
)

// ProtectedGuard rejects any filesystem-mutating tool call whose resolved
// absolute target path falls under a protected root. It is constructed once
// from config and never mutated at runtime — config attempts to remove a
// protected path are ignored (spec §6.3 "re-asserts these even if config
// tries to remove them").
type ProtectedGuard struct {
	roots []string
}

// NewProtectedGuard builds a guard from the configured protected path set,
// plus a small set of paths the kernel always protects regardless of config.
func NewProtectedGuard(configured []string) *ProtectedGuard {
	roots := append([]string{}, configured...)
	roots = append(roots, builtinProtectedRoots...)
	clean := make([]string, 0, len(roots))
	for _, r := range roots {
		clean = append(clean, filepath.Clean(r))
	}
	return &ProtectedGuard{roots: clean}
}

// builtinProtectedRoots are re-asserted even if the config file omits or
// tries to remove them: the policy kernel's own source lives here.
var builtinProtectedRoots = []string{
	"internal/policy",
	"internal/vault",
	"internal/security",
}

// Blocks reports whether target (resolved to an absolute path by the
// caller) falls under any protected root.
func (g *ProtectedGuard) Blocks(target string) bool {
	abs := filepath.Clean(target)
	for _, root := range g.roots {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			rootAbs = root
		}
		targetAbs, err := filepath.Abs(abs)
		if err != nil {
			targetAbs = abs
		}
		if targetAbs == rootAbs || strings.HasPrefix(targetAbs, rootAbs+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
