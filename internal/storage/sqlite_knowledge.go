package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/nexuscore/agentcore/pkg/models"
)

type sqliteKnowledgeStore struct {
	db *sql.DB
}

func (s *sqliteKnowledgeStore) Upsert(ctx context.Context, c *models.KnowledgeChunk) error {
	tagsJSON, err := json.Marshal(c.Tags)
	if err != nil {
		return err
	}
	return execTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO knowledge_chunks(id, file_path, heading_path, content, tags, embedding, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET file_path=excluded.file_path, heading_path=excluded.heading_path,
				content=excluded.content, tags=excluded.tags, embedding=excluded.embedding, updated_at=excluded.updated_at`,
			c.ID, c.FilePath, c.HeadingPath, c.Content, string(tagsJSON), encodeEmbedding(c.Embedding), c.UpdatedAt)
		if err != nil {
			return err
		}
		// Keep the FTS mirror table in sync for the hybrid retriever's keyword leg.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO knowledge_chunks_fts(rowid, content)
			SELECT rowid, content FROM knowledge_chunks WHERE id = ?
			ON CONFLICT(rowid) DO UPDATE SET content=excluded.content`, c.ID)
		return err
	})
}

func (s *sqliteKnowledgeStore) SearchKeyword(ctx context.Context, query string, limit int) ([]*models.KnowledgeChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT k.id, k.file_path, k.heading_path, k.content, k.tags, k.embedding, k.updated_at
		FROM knowledge_chunks k JOIN knowledge_chunks_fts f ON f.rowid = k.rowid
		WHERE knowledge_chunks_fts MATCH ? ORDER BY rank LIMIT ?`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKnowledgeRows(rows)
}

func (s *sqliteKnowledgeStore) All(ctx context.Context) ([]*models.KnowledgeChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_path, heading_path, content, tags, embedding, updated_at FROM knowledge_chunks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKnowledgeRows(rows)
}

func scanKnowledgeRows(rows *sql.Rows) ([]*models.KnowledgeChunk, error) {
	var out []*models.KnowledgeChunk
	for rows.Next() {
		var c models.KnowledgeChunk
		var tags string
		var emb []byte
		if err := rows.Scan(&c.ID, &c.FilePath, &c.HeadingPath, &c.Content, &tags, &emb, &c.UpdatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tags), &c.Tags)
		c.Embedding = decodeEmbedding(emb)
		out = append(out, &c)
	}
	return out, rows.Err()
}
