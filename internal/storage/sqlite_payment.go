package storage

import (
	"context"
	"database/sql"

	"github.com/nexuscore/agentcore/pkg/models"
)

type sqlitePaymentStore struct {
	db *sql.DB
}

// Append writes a payment audit row; this ledger is append-only, there is
// no update or delete path (spec §3 Payment Audit).
func (s *sqlitePaymentStore) Append(ctx context.Context, p *models.PaymentAudit) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_audit(ts, tool, amount, currency, recipient, provider, chain, status, approval_id, session_id, channel, task_context, tx_ref, fee, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.TS, p.Tool, p.Amount, p.Currency, p.Recipient, p.Provider, p.Chain, p.Status, p.ApprovalID, p.SessionID, p.Channel, p.TaskContext, p.TxRef, p.Fee, p.Error)
	return err
}
