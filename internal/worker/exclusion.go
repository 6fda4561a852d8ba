// Package worker holds the primitives the goal runner and autonomous mind
// share with the user-facing gateway turn (spec §4.3 "Shared primitives",
// §6 "a single agent-loop exclusion token serializes user turns, goal
// runner turns, and mind turns").
package worker

import (
	"context"
	"sync"
	"sync/atomic"
)

// ExclusionToken is the single lock user turns, goal runner turns, and mind
// turns all contend for, since they share the tool registry, the LLM
// router's accounting, and (transiently) the session's conversation. A
// background worker holds it only for the duration of one checkpoint or
// wakeup's turn, never across a sleep.
type ExclusionToken struct {
	mu sync.Mutex
}

// Acquire blocks until the token is free or ctx is done.
func (t *ExclusionToken) Acquire(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.mu.Lock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// The lock may still be acquired by the goroutine above after ctx
		// is done; release it immediately so we don't leak a held mutex.
		go func() {
			<-done
			t.mu.Unlock()
		}()
		return ctx.Err()
	}
}

// Release frees the token for the next contender.
func (t *ExclusionToken) Release() {
	t.mu.Unlock()
}

// PauseToken is set by the gateway's user-interaction hook on every inbound
// user message and cleared once that turn finishes (spec §4.3's "resume
// hook"). Background workers poll it at checkpoint/wakeup boundaries — never
// mid-LLM-call — and yield without acquiring the ExclusionToken while it is
// set.
type PauseToken struct {
	set atomic.Bool
}

// Pause sets the token (spec's user-interaction hook).
func (p *PauseToken) Pause() { p.set.Store(true) }

// Resume clears the token (spec's resume hook).
func (p *PauseToken) Resume() { p.set.Store(false) }

// IsSet reports whether a background worker should yield before its next
// checkpoint or wakeup.
func (p *PauseToken) IsSet() bool { return p.set.Load() }
