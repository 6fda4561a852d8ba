package agent

import (
	"context"

	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/pkg/models"
)

// IsolatedTurn swaps a session's persisted conversation out for seedTurns,
// runs fn against that fresh history, then restores the original
// conversation afterward — regardless of whether fn succeeds. Pipeline.Run
// persists each round via AppendTurn against the same session_id, so the
// swap and restore both round-trip through the store itself, not just the
// in-memory struct; otherwise the background turns fn appends would survive
// in the stored row after the in-memory pointer is restored. This
// guarantees the goal runner and autonomous mind never pollute user-visible
// history with their own background turns (spec §4.2 "Conversation
// isolation for background workers").
//
// fn receives the session with its conversation already replaced; it must
// run its turn against that same *models.Session value.
func IsolatedTurn(ctx context.Context, sessions storage.SessionStore, session *models.Session, seedTurns []models.Turn, fn func(ctx context.Context, isolated *models.Session) (*TurnResult, error)) (*TurnResult, error) {
	original := append([]models.Turn{}, session.Conversation...)

	isolated := *session
	isolated.Conversation = append([]models.Turn{}, seedTurns...)
	if err := sessions.Update(ctx, &isolated); err != nil {
		return nil, err
	}

	defer func() {
		session.Conversation = original
		restore := *session
		_ = sessions.Update(ctx, &restore)
	}()

	return fn(ctx, &isolated)
}
