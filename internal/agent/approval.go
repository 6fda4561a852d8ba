package agent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/pkg/models"
)

// ErrApprovalDenied is returned when a gated tool call's approval resolves
// to denied, expired, or cancelled.
var ErrApprovalDenied = errors.New("agent: approval denied")

// DefaultApprovalTimeout is the spec §4.1 default: one hour.
const DefaultApprovalTimeout = time.Hour

// ApprovalCallback requests approval for one gated tool call and blocks
// until it resolves (approved/denied/expired/cancelled) or ctx is done. The
// gateway supplies the concrete implementation bound to the session that
// originated the current turn (spec §4.1); the goal runner overrides it to
// broadcast to all connected clients at the goal's tier (spec §4.3 step 4).
type ApprovalCallback func(ctx context.Context, req *models.ApprovalRequest) (models.ApprovalStatus, error)

// StoreBackedApproval persists the approval request synchronously (spec
// §4.5) before invoking notify, which is expected to deliver the frame to
// the relevant channel(s) and return once a terminal status is reached —
// by polling the store, by an in-memory resolver, or both. This wrapper
// exists so executor.go only depends on the ApprovalCallback contract.
func StoreBackedApproval(store storage.ApprovalStore, notify func(ctx context.Context, req *models.ApprovalRequest) (models.ApprovalStatus, error)) ApprovalCallback {
	return func(ctx context.Context, req *models.ApprovalRequest) (models.ApprovalStatus, error) {
		req.ID = uuid.NewString()
		req.Status = models.ApprovalPending
		req.CreatedAt = time.Now()
		if req.TimeoutAt.IsZero() {
			req.TimeoutAt = req.CreatedAt.Add(DefaultApprovalTimeout)
		}
		if err := store.Create(ctx, req); err != nil {
			return "", err
		}

		status, err := notify(ctx, req)
		if err != nil {
			return "", err
		}
		if err := store.Resolve(ctx, req.ID, status); err != nil && !errors.Is(err, storage.ErrConflict) {
			return "", err
		}
		return status, nil
	}
}
