package security

import (
	"sync"
	"time"
)

// RecipientCooldown enforces a per-recipient minimum gap between outbound
// messages (spec §4.6, default 60s) to prevent tight inter-agent loops.
type RecipientCooldown struct {
	mu       sync.Mutex
	lastSent map[string]time.Time
	MinGap   time.Duration
}

// NewRecipientCooldown builds a cooldown tracker with the given minimum gap.
func NewRecipientCooldown(minGap time.Duration) *RecipientCooldown {
	if minGap <= 0 {
		minGap = 60 * time.Second
	}
	return &RecipientCooldown{lastSent: map[string]time.Time{}, MinGap: minGap}
}

// Allow reports whether a message to recipient may be sent now, and if so
// records the send time.
func (c *RecipientCooldown) Allow(recipient string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if last, ok := c.lastSent[recipient]; ok && now.Sub(last) < c.MinGap {
		return false
	}
	c.lastSent[recipient] = now
	return true
}
