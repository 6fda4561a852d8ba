package gateway

import (
	"sync"

	"github.com/nexuscore/agentcore/internal/observability"
	"github.com/nexuscore/agentcore/internal/sessions"
	"github.com/nexuscore/agentcore/pkg/models"
)

// Hub tracks every connected client and fans broadcast events out to the
// ones in scope (spec §4.1 "scope is either a single session, a channel, or
// all"). A session may have more than one connected client (multiple
// devices on the same channel/user_id); all of them receive the session's
// frames.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]*models.Session

	// metrics is nil-safe; a Hub built via NewHub has no metrics wired
	// until SetMetrics is called.
	metrics *observability.Metrics
}

// NewHub returns an empty client registry.
func NewHub() *Hub {
	return &Hub{clients: map[*Client]*models.Session{}}
}

// SetMetrics wires the gateway connection/queue-depth gauges (spec §4.6).
func (h *Hub) SetMetrics(m *observability.Metrics) {
	h.metrics = m
}

// Register adds a connected client under its resolved session.
func (h *Hub) Register(c *Client, sess *models.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = sess
	h.metrics.ClientConnected()
}

// Unregister removes a client on disconnect.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	h.metrics.ClientDisconnected(c.sessionID)
}

// Broadcast sends frame to every client whose session matches scope.
func (h *Hub) Broadcast(scope sessions.BroadcastScope, frame Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c, sess := range h.clients {
		if scope.Matches(sess) {
			c.enqueue(frame)
		}
	}
}

// Send delivers frame to every client currently on the given session id,
// without needing that session's full BroadcastScope.
func (h *Hub) Send(sessionID string, frame Frame) {
	h.Broadcast(sessions.BroadcastScope{SessionID: sessionID}, frame)
}

// SessionTier returns the authority tier of a connected session, or
// TierPublic if no client is currently registered under it.
func (h *Hub) SessionTier(sessionID string) models.AuthorityTier {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sess := range h.clients {
		if sess.SessionID == sessionID {
			return sess.AuthorityTier
		}
	}
	return models.TierPublic
}

// SessionsForApproval returns the session ids, at or above minTier, that
// should receive a cross-channel approval prompt (spec §4.1
// "same-or-greater tier"). The originating session is always included
// regardless of tier. Satisfies approvals.Scope.
func (h *Hub) SessionsForApproval(originSessionID string, minTier models.AuthorityTier) []string {
	return h.sessionsAtOrAbove(originSessionID, minTier)
}

func (h *Hub) sessionsAtOrAbove(originSessionID string, minTier models.AuthorityTier) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for _, sess := range h.clients {
		if seen[sess.SessionID] {
			continue
		}
		if sess.SessionID == originSessionID || sess.AuthorityTier.Rank() >= minTier.Rank() {
			seen[sess.SessionID] = true
			out = append(out, sess.SessionID)
		}
	}
	return out
}

// BroadcastEvent delivers an "event" frame (spec §4.3 goal_started,
// goal_checkpoint_complete, goal_completed, goal_failed, goal_paused,
// goal_resumed, mind_wakeup, mind_action, mind_sleep) to the originating
// session plus every other connected session at or above minTier. Satisfies
// the goal runner's and autonomous mind's broadcaster dependency without
// either package importing gateway.
func (h *Hub) BroadcastEvent(originSessionID string, minTier models.AuthorityTier, kind string, data any) {
	frame := Frame{
		Type:      FrameEvent,
		SessionID: originSessionID,
		Payload: encodePayload(EventPayload{
			Kind: kind,
			Data: encodePayload(data),
		}),
	}
	for _, sessionID := range h.sessionsAtOrAbove(originSessionID, minTier) {
		h.Send(sessionID, frame)
	}
}

// NotifyApproval delivers an approval_request frame to every client
// currently on sessionID. Satisfies approvals.Notifier.
func (h *Hub) NotifyApproval(sessionID string, req *models.ApprovalRequest) {
	h.Send(sessionID, Frame{
		Type:      FrameApprovalRequest,
		SessionID: req.SessionID,
		Payload: encodePayload(ApprovalRequestPayload{
			ApprovalID: req.ID,
			ToolName:   req.ToolName,
			ParamsJSON: req.ParamsJSON,
			Context:    req.Context,
		}),
	})
}
