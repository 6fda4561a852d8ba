// Package sessions implements the session half of the Gateway & Session
// Router (spec §4.1): resolving authority tiers for new connections and
// brokering connect/send/broadcast against the persisted Session store.
package sessions

import (
	"context"
	"fmt"
	"sync"

	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/pkg/models"
)

// TierResolver maps (channel, platform-immutable user id) to an authority
// tier per the authority config (spec §4.6). The CLI channel always
// resolves to owner regardless of user id.
type TierResolver interface {
	Resolve(channel, userID string) models.AuthorityTier
}

// Router brokers session lifecycle: idempotent connect, FIFO-ordered
// per-session turn submission, and event broadcast scoping (spec §4.1).
type Router struct {
	store    storage.SessionStore
	tiers    TierResolver
	maxConv  int

	mu    sync.Mutex
	locks map[string]*sync.Mutex // one FIFO lock per session_id
}

// NewRouter builds a Router. maxConv is the conversation trim length
// (spec §3 default 20).
func NewRouter(store storage.SessionStore, tiers TierResolver, maxConv int) *Router {
	if maxConv <= 0 {
		maxConv = 20
	}
	return &Router{store: store, tiers: tiers, maxConv: maxConv, locks: map[string]*sync.Mutex{}}
}

// Connect is idempotent: reuse an existing (channel, user_id) session or
// create one with its tier resolved from config.
func (r *Router) Connect(ctx context.Context, channel, userID string) (*models.Session, error) {
	tier := r.tiers.Resolve(channel, userID)
	return r.store.GetOrCreate(ctx, channel, userID, tier)
}

// AppendTurn appends one turn to a session's conversation under that
// session's FIFO lock, guaranteeing strict ordering within a session while
// leaving independent sessions free to proceed concurrently (spec §4.1
// "Message fan-out ordering").
func (r *Router) AppendTurn(ctx context.Context, sessionID string, turn models.Turn) error {
	lock := r.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	return r.store.AppendTurn(ctx, sessionID, turn, r.maxConv)
}

func (r *Router) sessionLock(sessionID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[sessionID] = l
	}
	return l
}

// BroadcastScope selects which sessions a broadcast event reaches (spec
// §4.1 "scope is either a single session, a channel, or all").
type BroadcastScope struct {
	SessionID string // set for a single-session scope
	Channel   string // set for a channel-wide scope
	All       bool
}

// Matches reports whether a session falls within scope.
func (s BroadcastScope) Matches(sess *models.Session) bool {
	switch {
	case s.All:
		return true
	case s.SessionID != "":
		return sess.SessionID == s.SessionID
	case s.Channel != "":
		return sess.Channel == s.Channel
	default:
		return false
	}
}

// StaticTierResolver implements TierResolver from a fixed config mapping,
// loaded once at startup (spec §4.6 authority config).
type StaticTierResolver struct {
	Owner   map[string]bool // "channel:user_id" set
	Trusted map[string]bool
}

// NewStaticTierResolver builds a resolver from the per-tier (channel,
// user_id) lists in config.
func NewStaticTierResolver(owners, trusted []UserRef) *StaticTierResolver {
	r := &StaticTierResolver{Owner: map[string]bool{}, Trusted: map[string]bool{}}
	for _, u := range owners {
		r.Owner[key(u.Channel, u.UserID)] = true
	}
	for _, u := range trusted {
		r.Trusted[key(u.Channel, u.UserID)] = true
	}
	return r
}

// UserRef identifies one platform-immutable user on one channel.
type UserRef struct {
	Channel string
	UserID  string
}

// Resolve implements TierResolver. The cli channel is always owner
// regardless of configured mappings (spec §4.1).
func (r *StaticTierResolver) Resolve(channel, userID string) models.AuthorityTier {
	if channel == "cli" {
		return models.TierOwner
	}
	k := key(channel, userID)
	if r.Owner[k] {
		return models.TierOwner
	}
	if r.Trusted[k] {
		return models.TierTrusted
	}
	return models.TierPublic
}

func key(channel, userID string) string {
	return fmt.Sprintf("%s:%s", channel, userID)
}
