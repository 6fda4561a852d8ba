package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nexuscore/agentcore/pkg/models"
)

type sqliteTaskStore struct {
	db *sql.DB
}

func (s *sqliteTaskStore) Create(ctx context.Context, t *models.TaskRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks(task_id, session_id, goal, status, plan_json, result, tokens, cost_usd, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TaskID, t.SessionID, t.Goal, t.Status, t.PlanJSON, t.Result, t.Tokens, t.CostUSD, t.StartedAt, t.CompletedAt)
	return err
}

func (s *sqliteTaskStore) Get(ctx context.Context, taskID string) (*models.TaskRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT task_id, session_id, goal, status, plan_json, result, tokens, cost_usd, started_at, completed_at
		FROM tasks WHERE task_id = ?`, taskID)
	return scanTask(row)
}

func scanTask(row *sql.Row) (*models.TaskRecord, error) {
	var t models.TaskRecord
	err := row.Scan(&t.TaskID, &t.SessionID, &t.Goal, &t.Status, &t.PlanJSON, &t.Result, &t.Tokens, &t.CostUSD, &t.StartedAt, &t.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *sqliteTaskStore) Update(ctx context.Context, t *models.TaskRecord) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, plan_json = ?, result = ?, tokens = ?, cost_usd = ?, completed_at = ?
		WHERE task_id = ?`, t.Status, t.PlanJSON, t.Result, t.Tokens, t.CostUSD, t.CompletedAt, t.TaskID)
	return err
}

func (s *sqliteTaskStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]*models.TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, session_id, goal, status, plan_json, result, tokens, cost_usd, started_at, completed_at
		FROM tasks WHERE session_id = ? ORDER BY started_at DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.TaskRecord
	for rows.Next() {
		var t models.TaskRecord
		if err := rows.Scan(&t.TaskID, &t.SessionID, &t.Goal, &t.Status, &t.PlanJSON, &t.Result, &t.Tokens, &t.CostUSD, &t.StartedAt, &t.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
