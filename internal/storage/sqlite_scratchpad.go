package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nexuscore/agentcore/pkg/models"
)

type sqliteScratchpadStore struct {
	db *sql.DB
}

func (s *sqliteScratchpadStore) Get(ctx context.Context) (*models.MindScratchpad, error) {
	row := s.db.QueryRowContext(ctx, `SELECT version, markdown, updated_at FROM mind_scratchpad WHERE id = 1`)
	var m models.MindScratchpad
	err := row.Scan(&m.Version, &m.Markdown, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.MindScratchpad{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Set is the scratchpad's single writer: it either inserts the first row or
// replaces the markdown and bumps version (spec §5 "scratchpad is
// single-writer").
func (s *sqliteScratchpadStore) Set(ctx context.Context, markdown string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mind_scratchpad(id, version, markdown, updated_at) VALUES (1, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET version = version + 1, markdown = excluded.markdown, updated_at = excluded.updated_at`,
		markdown, time.Now())
	return err
}
