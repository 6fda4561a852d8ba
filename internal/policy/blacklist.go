package policy

import "regexp"

// Blacklist holds destructive regex patterns matched against a command
// string or a resolved path; a match rejects the call fatally, regardless
// of approval (spec §4.2 rule 2).
type Blacklist struct {
	patterns []*regexp.Regexp
}

// NewBlacklist compiles the configured pattern list plus a small built-in
// set of classically destructive shell/file operations.
func NewBlacklist(configured []string) (*Blacklist, error) {
	all := append([]string{}, configured...)
	all = append(all, builtinBlacklist...)
	b := &Blacklist{}
	for _, p := range all {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		b.patterns = append(b.patterns, re)
	}
	return b, nil
}

var builtinBlacklist = []string{
	`rm\s+-rf\s+/(\s|$)`,
	`:\(\)\s*\{\s*:\s*\|\s*:\s*;\s*\}`, // fork bomb
	`mkfs\.`,
	`dd\s+if=.*of=/dev/(sd|nvme|disk)`,
	`>\s*/dev/sd`,
}

// Matches reports whether s (a command string or resolved path) matches any
// blacklisted pattern.
func (b *Blacklist) Matches(s string) bool {
	for _, re := range b.patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
