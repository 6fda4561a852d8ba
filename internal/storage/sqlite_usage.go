package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/nexuscore/agentcore/pkg/models"
)

type sqliteUsageStore struct {
	db *sql.DB
}

// Record writes one LLM Usage row synchronously at call end (spec §4.5
// "Intra-turn LLM accounting is batched but flushed at turn end"; here each
// call commits its own row immediately, which satisfies that bound trivially).
func (s *sqliteUsageStore) Record(ctx context.Context, u *models.LLMUsage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO llm_usage(task_id, model, provider, in_tokens, out_tokens, cost_usd, finish_reason, latency_ms, fallback_from, suspected_truncated, task_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.TaskID, u.Model, u.Provider, u.InTokens, u.OutTokens, u.CostUSD, u.FinishReason, u.LatencyMS, u.FallbackFrom, boolToInt(u.SuspectedTruncated), u.TaskType, u.CreatedAt)
	return err
}

// SumCostSince sums cost_usd for provider since the given Unix-seconds
// timestamp, used by budget enforcement (spec §4.4 accounting).
func (s *sqliteUsageStore) SumCostSince(ctx context.Context, provider string, sinceUnixSeconds int64) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(cost_usd) FROM llm_usage WHERE provider = ? AND created_at >= ?`,
		provider, time.Unix(sinceUnixSeconds, 0)).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Float64, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
