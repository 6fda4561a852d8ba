package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nexuscore/agentcore/pkg/models"
)

type sqliteScheduleStore struct {
	db *sql.DB
}

func (s *sqliteScheduleStore) Create(ctx context.Context, t *models.ScheduledTask) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks(id, name, schedule_expr, goal, enabled, last_run, next_run)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.ScheduleExpr, t.Goal, t.Enabled, t.LastRun, t.NextRun)
	return err
}

func (s *sqliteScheduleStore) List(ctx context.Context) ([]*models.ScheduledTask, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, schedule_expr, goal, enabled, last_run, next_run FROM scheduled_tasks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.ScheduledTask
	for rows.Next() {
		var t models.ScheduledTask
		if err := rows.Scan(&t.ID, &t.Name, &t.ScheduleExpr, &t.Goal, &t.Enabled, &t.LastRun, &t.NextRun); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *sqliteScheduleStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteScheduleStore) Update(ctx context.Context, t *models.ScheduledTask) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET name = ?, schedule_expr = ?, goal = ?, enabled = ?, last_run = ?, next_run = ?
		WHERE id = ?`, t.Name, t.ScheduleExpr, t.Goal, t.Enabled, t.LastRun, t.NextRun, t.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("storage: no such scheduled task")
	}
	return nil
}
