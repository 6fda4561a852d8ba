package security

import (
	"regexp"

	"github.com/nexuscore/agentcore/pkg/models"
)

const maxEmbeddedBlobBytes = 32 * 1024

var (
	scriptTagRe   = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	onEventAttrRe = regexp.MustCompile(`(?i)\son\w+\s*=\s*"[^"]*"`)
	passwordJSON  = regexp.MustCompile(`(?i)"(password|passwd|pwd)"\s*:\s*"[^"]*"`)
)

// SanitizeOptions controls how SanitizeToolOutput treats content for a
// given session's authority tier.
type SanitizeOptions struct {
	Tier models.AuthorityTier
}

// SanitizeToolOutput applies the result-sanitization pipeline from spec
// §4.2 to one string value of a tool's output before it re-enters the LLM
// context: strip script-like content, redact password fields, truncate
// oversized blobs, redact credentials, and (for non-owner tiers) redact
// PII. Owner tier gets raw content with a single warning marker prepended
// when PII would otherwise have been redacted.
func SanitizeToolOutput(content string, opts SanitizeOptions) string {
	out := content
	out = scriptTagRe.ReplaceAllString(out, "[script content stripped]")
	out = onEventAttrRe.ReplaceAllString(out, "")
	out = passwordJSON.ReplaceAllString(out, `"$1":"[redacted]"`)
	if len(out) > maxEmbeddedBlobBytes {
		out = out[:maxEmbeddedBlobBytes] + "...[truncated]"
	}
	out, _ = RedactCredentials(out)

	if opts.Tier == models.TierOwner {
		if _, kinds := ScanAndRedactPII(out); len(kinds) > 0 {
			out = "[warning: unredacted PII present in owner-tier content]\n" + out
		}
		return out
	}
	redacted, _ := ScanAndRedactPII(out)
	return redacted
}

// DropBrowserToolPairs removes tool-call/result pairs belonging to the
// browser tool family from a conversation before it crosses the dataset
// builder's training-data boundary (spec §4.2, out of core at §1/§6).
func DropBrowserToolPairs(turns []models.Turn, isBrowserTool func(name string) bool) []models.Turn {
	out := make([]models.Turn, 0, len(turns))
	skipToolCallIDs := map[string]bool{}
	for _, t := range turns {
		filteredCalls := t.ToolCalls[:0:0]
		for _, tc := range t.ToolCalls {
			if isBrowserTool(tc.Name) {
				skipToolCallIDs[tc.ID] = true
				continue
			}
			filteredCalls = append(filteredCalls, tc)
		}
		if t.ToolCallID != "" && skipToolCallIDs[t.ToolCallID] {
			continue
		}
		if t.Role == "assistant" && len(t.ToolCalls) > 0 && len(filteredCalls) == 0 && t.Content == "" {
			continue
		}
		t.ToolCalls = filteredCalls
		out = append(out, t)
	}
	return out
}
