// Package approvals resolves in-flight approval requests against whichever
// connected sessions qualify, shared by the gateway's user turns and the
// goal runner's background turns (spec §4.1, §4.3 step 4: "Override the
// executor's approval callback to broadcast approval requests to all
// connected clients for the goal's originating session tier; any qualifying
// client resolves").
package approvals

import (
	"context"
	"sync"
	"time"

	"github.com/nexuscore/agentcore/internal/observability"
	"github.com/nexuscore/agentcore/pkg/models"
)

// Notifier delivers an approval_request prompt to one connected session, in
// whatever wire format that session's transport uses. The gateway's Hub is
// the concrete implementation.
type Notifier interface {
	NotifyApproval(sessionID string, req *models.ApprovalRequest)
}

// Scope resolves which connected sessions should see a given approval
// prompt.
type Scope interface {
	// SessionTier returns a connected session's authority tier, or
	// models.TierPublic if it isn't currently connected.
	SessionTier(sessionID string) models.AuthorityTier
	// SessionsForApproval returns the session ids that qualify for a
	// prompt originating at originSessionID: that session itself, plus any
	// other connected session at or above minTier.
	SessionsForApproval(originSessionID string, minTier models.AuthorityTier) []string
}

// Broker is the shared in-memory resolver: one pending channel per
// in-flight approval id, first resolver wins.
type Broker struct {
	scope    Scope
	notifier Notifier
	metrics  *observability.Metrics

	mu      sync.Mutex
	pending map[string]chan models.ApprovalStatus
}

// NewBroker binds a broker to the session scope/notifier it prompts
// through.
func NewBroker(scope Scope, notifier Notifier) *Broker {
	return &Broker{scope: scope, notifier: notifier, pending: map[string]chan models.ApprovalStatus{}}
}

// SetMetrics wires the approval-latency histogram (spec §4.6).
func (b *Broker) SetMetrics(m *observability.Metrics) {
	b.metrics = m
}

// Notify is the notify func agent.StoreBackedApproval wraps: it prompts
// every in-scope session and blocks until a resolver answers, ctx is
// cancelled (session disconnect), or the request's timeout elapses.
func (b *Broker) Notify(ctx context.Context, req *models.ApprovalRequest) (status models.ApprovalStatus, err error) {
	start := time.Now()
	defer func() {
		b.metrics.RecordApprovalResolved(string(status), time.Since(start))
	}()

	ch := make(chan models.ApprovalStatus, 1)
	b.mu.Lock()
	b.pending[req.ID] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, req.ID)
		b.mu.Unlock()
	}()

	originTier := b.scope.SessionTier(req.SessionID)
	for _, sessionID := range b.scope.SessionsForApproval(req.SessionID, originTier) {
		b.notifier.NotifyApproval(sessionID, req)
	}

	timer := time.NewTimer(time.Until(req.TimeoutAt))
	defer timer.Stop()

	select {
	case status = <-ch:
		return status, nil
	case <-ctx.Done():
		status = models.ApprovalCancelled
		return status, nil
	case <-timer.C:
		status = models.ApprovalExpired
		return status, nil
	}
}

// Resolve delivers a client's decision to the matching pending request, if
// any is still awaiting one. A response for an unknown or already-resolved
// id is silently ignored (first resolver wins, spec §8 property 9).
func (b *Broker) Resolve(approvalID string, approved bool) {
	b.mu.Lock()
	ch, ok := b.pending[approvalID]
	b.mu.Unlock()
	if !ok {
		return
	}
	status := models.ApprovalDenied
	if approved {
		status = models.ApprovalApproved
	}
	select {
	case ch <- status:
	default:
	}
}
