package mind

import (
	"sync"
	"time"
)

// messageClass is the closed set of "message-worthy" outbound message
// categories (spec §4.3 "Proactive messaging from mind"). Anything else is
// routine chatter and is suppressed.
type messageClass string

const (
	ClassRevenue        messageClass = "revenue"
	ClassApprovalNeeded messageClass = "approval_needed"
	ClassGoalMilestone  messageClass = "goal_milestone"
	ClassHardFailure    messageClass = "hard_failure"
	ClassRollupSummary  messageClass = "rollup_summary"
)

func isMessageWorthy(class string) bool {
	switch messageClass(class) {
	case ClassRevenue, ClassApprovalNeeded, ClassGoalMilestone, ClassHardFailure, ClassRollupSummary:
		return true
	default:
		return false
	}
}

// outboundLimiter enforces the default-5-per-hour owner-directed proactive
// message cap via a rolling one-hour window, grounded on the same
// rolling-window shape as internal/policy.SpendingGuard.
type outboundLimiter struct {
	mu      sync.Mutex
	sent    []time.Time
	perHour int
}

func newOutboundLimiter(perHour int) *outboundLimiter {
	if perHour <= 0 {
		perHour = DefaultLimits().MaxOwnerMsgPerHour
	}
	return &outboundLimiter{perHour: perHour}
}

// Allow reports whether one more proactive message may be sent now, and if
// so records it against the rolling window.
func (l *outboundLimiter) Allow(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := now.Add(-time.Hour)
	kept := l.sent[:0]
	for _, t := range l.sent {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.sent = kept
	if len(l.sent) >= l.perHour {
		return false
	}
	l.sent = append(l.sent, now)
	return true
}
