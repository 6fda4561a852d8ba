package security

import (
	"sync"
	"time"
)

// ProcessEntry is one registered spawned child process.
type ProcessEntry struct {
	PID       int
	Purpose   string
	StartedAt time.Time
}

// ProcessRegistry tracks every spawned child process so a reaper can kill
// entries that outlive MaxLifetime (spec §4.6, default 1 hour). Spawn tools
// always register through this type, so the LLM cannot bypass registration.
type ProcessRegistry struct {
	mu          sync.Mutex
	entries     map[int]ProcessEntry
	MaxLifetime time.Duration
	kill        func(pid int) error
}

// NewProcessRegistry builds a registry with the given kill function (e.g.
// os.FindProcess(pid).Kill) and default 1-hour max lifetime.
func NewProcessRegistry(kill func(pid int) error) *ProcessRegistry {
	return &ProcessRegistry{
		entries:     map[int]ProcessEntry{},
		MaxLifetime: time.Hour,
		kill:        kill,
	}
}

// Register records a newly spawned process.
func (r *ProcessRegistry) Register(pid int, purpose string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[pid] = ProcessEntry{PID: pid, Purpose: purpose, StartedAt: time.Now()}
}

// Unregister removes an entry, typically on normal process exit.
func (r *ProcessRegistry) Unregister(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, pid)
}

// Snapshot returns the current registry size and entries, for the runtime
// self-model (spec §4.6 "process registry size").
func (r *ProcessRegistry) Snapshot() []ProcessEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ProcessEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// Reap kills and unregisters every entry older than MaxLifetime. Intended
// to run on a periodic ticker owned by the caller.
func (r *ProcessRegistry) Reap(now time.Time) []ProcessEntry {
	r.mu.Lock()
	var stale []ProcessEntry
	for pid, e := range r.entries {
		if now.Sub(e.StartedAt) > r.MaxLifetime {
			stale = append(stale, e)
			delete(r.entries, pid)
		}
	}
	r.mu.Unlock()

	for _, e := range stale {
		if r.kill != nil {
			_ = r.kill(e.PID)
		}
	}
	return stale
}
