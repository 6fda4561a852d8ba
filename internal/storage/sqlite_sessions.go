package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscore/agentcore/pkg/models"
)

type sqliteSessionStore struct {
	db *sql.DB
}

func (s *sqliteSessionStore) GetOrCreate(ctx context.Context, channel, userID string, tier models.AuthorityTier) (*models.Session, error) {
	existing, err := s.getByKey(ctx, channel, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	sess := &models.Session{
		SessionID:     uuid.NewString(),
		Channel:       channel,
		UserID:        userID,
		AuthorityTier: tier,
		Conversation:  []models.Turn{},
		Metadata:      map[string]any{},
		CreatedAt:     now,
		LastActive:    now,
	}
	convJSON, _ := json.Marshal(sess.Conversation)
	metaJSON, _ := json.Marshal(sess.Metadata)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions(session_id, channel, user_id, authority_tier, conversation, metadata, active_task_id, created_at, last_active)
		VALUES (?, ?, ?, ?, ?, ?, '', ?, ?)`,
		sess.SessionID, sess.Channel, sess.UserID, sess.AuthorityTier, string(convJSON), string(metaJSON), sess.CreatedAt, sess.LastActive)
	if err != nil {
		// Lost a race with a concurrent GetOrCreate on the same (channel, user_id): reread.
		if existing, reErr := s.getByKey(ctx, channel, userID); reErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return sess, nil
}

func (s *sqliteSessionStore) getByKey(ctx context.Context, channel, userID string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, channel, user_id, authority_tier, conversation, metadata, active_task_id, created_at, last_active
		FROM sessions WHERE channel = ? AND user_id = ?`, channel, userID)
	return scanSession(row)
}

func (s *sqliteSessionStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, channel, user_id, authority_tier, conversation, metadata, active_task_id, created_at, last_active
		FROM sessions WHERE session_id = ?`, sessionID)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*models.Session, error) {
	var sess models.Session
	var conv, meta string
	err := row.Scan(&sess.SessionID, &sess.Channel, &sess.UserID, &sess.AuthorityTier, &conv, &meta, &sess.ActiveTaskID, &sess.CreatedAt, &sess.LastActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(conv), &sess.Conversation)
	_ = json.Unmarshal([]byte(meta), &sess.Metadata)
	return &sess, nil
}

// AppendTurn appends turn to the session's conversation and trims to maxLen,
// keeping system anchors, atomically under one transaction (spec §3
// invariant: strictly ordered append, oldest user/assistant pairs trimmed
// first).
func (s *sqliteSessionStore) AppendTurn(ctx context.Context, sessionID string, turn models.Turn, maxLen int) error {
	return execTx(ctx, s.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT conversation FROM sessions WHERE session_id = ?`, sessionID)
		var conv string
		if err := row.Scan(&conv); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		var turns []models.Turn
		_ = json.Unmarshal([]byte(conv), &turns)
		turn.CreatedAt = time.Now()
		turns = append(turns, turn)
		turns = trimConversation(turns, maxLen)

		newConv, err := json.Marshal(turns)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE sessions SET conversation = ?, last_active = ? WHERE session_id = ?`,
			string(newConv), turn.CreatedAt, sessionID)
		return err
	})
}

// trimConversation keeps system anchors and drops the oldest non-anchor
// user/assistant (and their associated tool turns) once len exceeds maxLen.
func trimConversation(turns []models.Turn, maxLen int) []models.Turn {
	if maxLen <= 0 || len(turns) <= maxLen {
		return turns
	}
	var anchors, rest []models.Turn
	for _, t := range turns {
		if t.Anchor {
			anchors = append(anchors, t)
		} else {
			rest = append(rest, t)
		}
	}
	overflow := len(turns) - maxLen
	if overflow >= len(rest) {
		rest = nil
	} else {
		rest = rest[overflow:]
	}
	return append(anchors, rest...)
}

func (s *sqliteSessionStore) Update(ctx context.Context, sess *models.Session) error {
	convJSON, err := json.Marshal(sess.Conversation)
	if err != nil {
		return err
	}
	metaJSON, err := json.Marshal(sess.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE sessions SET authority_tier = ?, conversation = ?, metadata = ?, active_task_id = ?, last_active = ?
		WHERE session_id = ?`,
		sess.AuthorityTier, string(convJSON), string(metaJSON), sess.ActiveTaskID, sess.LastActive, sess.SessionID)
	return err
}
