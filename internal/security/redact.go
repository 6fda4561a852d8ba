// Package security implements the protected policy kernel's code-enforced
// guards: credential/PII redaction, the prompt-injection guard, and the
// resource guards (process registry, storage quota, loop detection,
// inter-agent cooldown) described in spec §4.6.
package security

import "regexp"

// credentialPatterns is the 14-pattern credential regex set (spec §4.2,
// §4.6): applied to every string value before it re-enters the LLM context
// or a log sink, and enforced again before any persisted Memory, LLM Usage,
// or Knowledge Chunk row is written (spec §8 property 4).
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),                                  // OpenAI-shaped secret key
	regexp.MustCompile(`sk-ant-[A-Za-z0-9\-_]{20,}`),                           // Anthropic-shaped secret key
	regexp.MustCompile(`ghp_[A-Za-z0-9]{36}`),                                  // GitHub personal access token
	regexp.MustCompile(`gho_[A-Za-z0-9]{36}`),                                  // GitHub OAuth token
	regexp.MustCompile(`github_pat_[A-Za-z0-9_]{20,}`),                        // GitHub fine-grained PAT
	regexp.MustCompile(`xox[baprs]-[A-Za-z0-9-]{10,}`),                        // Slack token
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-_.~+/]{20,}=*`),               // bearer token header
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`), // JWT
	regexp.MustCompile(`-----BEGIN (EC|RSA|OPENSSH|PGP|DSA) PRIVATE KEY-----[\s\S]+?-----END (EC|RSA|OPENSSH|PGP|DSA) PRIVATE KEY-----`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),                                    // AWS access key id
	regexp.MustCompile(`(?i)aws_secret_access_key\s*[:=]\s*[A-Za-z0-9/+=]{30,}`),
	regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`),                              // Google API key
	regexp.MustCompile(`(?i)postgres(?:ql)?://[^:\s]+:[^@\s]+@`),              // DB connection string with password
	regexp.MustCompile(`(?i)(api[_-]?key|secret|token|password)\s*[:=]\s*['"]?[A-Za-z0-9_\-/+=]{12,}['"]?`),
}

// RedactCredentials replaces every credential-shaped span in s with a marker
// and reports whether any replacement happened.
func RedactCredentials(s string) (string, bool) {
	redacted := false
	out := s
	for _, re := range credentialPatterns {
		if re.MatchString(out) {
			redacted = true
			out = re.ReplaceAllString(out, "[CREDENTIAL redacted]")
		}
	}
	return out, redacted
}

// ContainsCredential reports whether s contains any credential-shaped span,
// without modifying it. Used by property tests (spec §8 property 4) against
// persisted rows.
func ContainsCredential(s string) bool {
	for _, re := range credentialPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
