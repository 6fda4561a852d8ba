package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nexuscore/agentcore/pkg/models"
)

type sqliteApprovalStore struct {
	db *sql.DB
}

func (s *sqliteApprovalStore) Create(ctx context.Context, a *models.ApprovalRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approvals(id, tool_name, params_json, context, status, session_id, created_at, resolved_at, timeout_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ToolName, a.ParamsJSON, a.Context, a.Status, a.SessionID, a.CreatedAt, a.ResolvedAt, a.TimeoutAt)
	return err
}

func (s *sqliteApprovalStore) Get(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tool_name, params_json, context, status, session_id, created_at, resolved_at, timeout_at
		FROM approvals WHERE id = ?`, id)
	return scanApproval(row)
}

func scanApproval(row *sql.Row) (*models.ApprovalRequest, error) {
	var a models.ApprovalRequest
	err := row.Scan(&a.ID, &a.ToolName, &a.ParamsJSON, &a.Context, &a.Status, &a.SessionID, &a.CreatedAt, &a.ResolvedAt, &a.TimeoutAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Resolve is the only write path that transitions an approval out of
// pending; the UPDATE's WHERE clause makes "first resolver wins" atomic at
// the database level (spec §8 property 9, §5 "concurrent resolvers
// rejected").
func (s *sqliteApprovalStore) Resolve(ctx context.Context, id string, status models.ApprovalStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE approvals SET status = ?, resolved_at = ? WHERE id = ? AND status = 'pending'`,
		status, time.Now(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *sqliteApprovalStore) ListPendingBySession(ctx context.Context, sessionID string) ([]*models.ApprovalRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tool_name, params_json, context, status, session_id, created_at, resolved_at, timeout_at
		FROM approvals WHERE session_id = ? AND status = 'pending'`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.ApprovalRequest
	for rows.Next() {
		var a models.ApprovalRequest
		if err := rows.Scan(&a.ID, &a.ToolName, &a.ParamsJSON, &a.Context, &a.Status, &a.SessionID, &a.CreatedAt, &a.ResolvedAt, &a.TimeoutAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// ExpireOverdue transitions every pending approval whose timeout has
// elapsed to expired, and returns the rows that were expired (spec §4.1
// "on timeout the row is set to expired").
func (s *sqliteApprovalStore) ExpireOverdue(ctx context.Context) ([]*models.ApprovalRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tool_name, params_json, context, status, session_id, created_at, resolved_at, timeout_at
		FROM approvals WHERE status = 'pending' AND timeout_at <= ?`, time.Now())
	if err != nil {
		return nil, err
	}
	var overdue []*models.ApprovalRequest
	for rows.Next() {
		var a models.ApprovalRequest
		if err := rows.Scan(&a.ID, &a.ToolName, &a.ParamsJSON, &a.Context, &a.Status, &a.SessionID, &a.CreatedAt, &a.ResolvedAt, &a.TimeoutAt); err != nil {
			rows.Close()
			return nil, err
		}
		overdue = append(overdue, &a)
	}
	rows.Close()

	for _, a := range overdue {
		if err := s.Resolve(ctx, a.ID, models.ApprovalExpired); err != nil && !errors.Is(err, ErrConflict) {
			return nil, err
		}
	}
	return overdue, nil
}
