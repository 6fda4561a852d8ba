package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nexuscore/agentcore/pkg/models"
)

type sqliteGoalStore struct {
	db *sql.DB
}

// Create persists a Goal and its decomposed Checkpoints atomically (spec
// §4.3 "Persisted atomically").
func (s *sqliteGoalStore) Create(ctx context.Context, g *models.Goal, checkpoints []*models.Checkpoint) error {
	return execTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO goals(goal_id, session_id, goal, status, context_summary, current_checkpoint, total_checkpoints, attempts, max_attempts, llm_calls_used, cost_usd, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			g.GoalID, g.SessionID, g.Goal, g.Status, g.ContextSummary, g.CurrentCheckpoint, g.TotalCheckpoints, g.Attempts, g.MaxAttempts, g.LLMCallsUsed, g.CostUSD, g.CreatedAt, g.UpdatedAt)
		if err != nil {
			return err
		}
		for _, c := range checkpoints {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO checkpoints(goal_id, "order", title, description, success_criteria, status, result_summary, attempts, started_at, completed_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				c.GoalID, c.Order, c.Title, c.Description, c.SuccessCriteria, c.Status, c.ResultSummary, c.Attempts, c.StartedAt, c.CompletedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *sqliteGoalStore) Get(ctx context.Context, goalID string) (*models.Goal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT goal_id, session_id, goal, status, context_summary, current_checkpoint, total_checkpoints, attempts, max_attempts, llm_calls_used, cost_usd, created_at, updated_at
		FROM goals WHERE goal_id = ?`, goalID)
	var g models.Goal
	err := row.Scan(&g.GoalID, &g.SessionID, &g.Goal, &g.Status, &g.ContextSummary, &g.CurrentCheckpoint, &g.TotalCheckpoints, &g.Attempts, &g.MaxAttempts, &g.LLMCallsUsed, &g.CostUSD, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *sqliteGoalStore) Update(ctx context.Context, g *models.Goal) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE goals SET status = ?, context_summary = ?, current_checkpoint = ?, attempts = ?, llm_calls_used = ?, cost_usd = ?, updated_at = ?
		WHERE goal_id = ?`,
		g.Status, g.ContextSummary, g.CurrentCheckpoint, g.Attempts, g.LLMCallsUsed, g.CostUSD, g.UpdatedAt, g.GoalID)
	return err
}

func (s *sqliteGoalStore) ListByStatus(ctx context.Context, status models.GoalStatus) ([]*models.Goal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT goal_id, session_id, goal, status, context_summary, current_checkpoint, total_checkpoints, attempts, max_attempts, llm_calls_used, cost_usd, created_at, updated_at
		FROM goals WHERE status = ?`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Goal
	for rows.Next() {
		var g models.Goal
		if err := rows.Scan(&g.GoalID, &g.SessionID, &g.Goal, &g.Status, &g.ContextSummary, &g.CurrentCheckpoint, &g.TotalCheckpoints, &g.Attempts, &g.MaxAttempts, &g.LLMCallsUsed, &g.CostUSD, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &g)
	}
	return out, rows.Err()
}

func (s *sqliteGoalStore) Checkpoints(ctx context.Context, goalID string) ([]*models.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT goal_id, "order", title, description, success_criteria, status, result_summary, attempts, started_at, completed_at
		FROM checkpoints WHERE goal_id = ? ORDER BY "order" ASC`, goalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Checkpoint
	for rows.Next() {
		var c models.Checkpoint
		if err := rows.Scan(&c.GoalID, &c.Order, &c.Title, &c.Description, &c.SuccessCriteria, &c.Status, &c.ResultSummary, &c.Attempts, &c.StartedAt, &c.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// UpdateCheckpoint persists a checkpoint's transition before the next
// checkpoint begins (spec §5 ordering guarantee).
func (s *sqliteGoalStore) UpdateCheckpoint(ctx context.Context, c *models.Checkpoint) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE checkpoints SET status = ?, result_summary = ?, attempts = ?, started_at = ?, completed_at = ?
		WHERE goal_id = ? AND "order" = ?`,
		c.Status, c.ResultSummary, c.Attempts, c.StartedAt, c.CompletedAt, c.GoalID, c.Order)
	return err
}

// ReplacePendingCheckpoints implements the evaluate_progress revision (spec
// §4.3 step 6): completed/failed checkpoints are untouched, pending ones are
// dropped and replaced atomically.
func (s *sqliteGoalStore) ReplacePendingCheckpoints(ctx context.Context, goalID string, revised []*models.Checkpoint) error {
	return execTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoints WHERE goal_id = ? AND status = 'pending'`, goalID); err != nil {
			return err
		}
		for _, c := range revised {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO checkpoints(goal_id, "order", title, description, success_criteria, status, result_summary, attempts, started_at, completed_at)
				VALUES (?, ?, ?, ?, ?, 'pending', '', 0, NULL, NULL)`,
				goalID, c.Order, c.Title, c.Description, c.SuccessCriteria); err != nil {
				return err
			}
		}
		var total int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM checkpoints WHERE goal_id = ?`, goalID).Scan(&total); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE goals SET total_checkpoints = ? WHERE goal_id = ?`, total, goalID)
		return err
	})
}
