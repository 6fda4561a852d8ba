package storage

import (
	"context"
	"database/sql"
	"math"

	"github.com/nexuscore/agentcore/pkg/models"
)

type sqliteMemoryStore struct {
	db *sql.DB
}

func (s *sqliteMemoryStore) Create(ctx context.Context, m *models.Memory) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories(id, task_id, summary, outcome, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.TaskID, m.Summary, m.Outcome, encodeEmbedding(m.Embedding), m.CreatedAt)
	return err
}

func (s *sqliteMemoryStore) RecentBySession(ctx context.Context, sessionID string, limit int) ([]*models.Memory, error) {
	// Memories are scoped to a session via the owning task's session_id.
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.task_id, m.summary, m.outcome, m.embedding, m.created_at
		FROM memories m JOIN tasks t ON t.task_id = m.task_id
		WHERE t.session_id = ? ORDER BY m.created_at DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Memory
	for rows.Next() {
		var m models.Memory
		var emb []byte
		if err := rows.Scan(&m.ID, &m.TaskID, &m.Summary, &m.Outcome, &emb, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Embedding = decodeEmbedding(emb)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		bits := math.Float32bits(f)
		buf[i*4+0] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	if len(buf)%4 != 0 {
		return nil
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		bits := uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}
