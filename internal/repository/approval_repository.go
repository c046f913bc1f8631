package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"

	"github.com/noah-isme/datashare-api/internal/models"
)

const approvalColumns = `id, transaction_id, seq, actor_org_id, actor_user_id, actor_role, action, from_status, to_status, notes, created_at`

// ApprovalRepository reads the append-only approval ledger. Events are only
// written by TransactionRepository.CommitTransition, in the same database
// transaction as the guarded status update.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// ListFor returns a transaction's events oldest first.
func (r *ApprovalRepository) ListFor(ctx context.Context, transactionID string) ([]models.ApprovalEvent, error) {
	query := r.db.Rebind(`SELECT ` + approvalColumns + ` FROM approval_events
	WHERE transaction_id = ? ORDER BY created_at ASC, seq ASC`)
	events := make([]models.ApprovalEvent, 0)
	if err := r.db.SelectContext(ctx, &events, query, transactionID); err != nil {
		return nil, fmt.Errorf("list approval events: %w", err)
	}
	return events, nil
}

type ledgerHead struct {
	Seq       int                      `db:"seq"`
	ToStatus  models.TransactionStatus `db:"to_status"`
	CreatedAt time.Time                `db:"created_at"`
}

// appendEvent assigns the next seq and inserts event using q. Callers run it
// inside the transaction that moved the row's status.
func appendEvent(ctx context.Context, q sqlx.ExtContext, event *models.ApprovalEvent) error {
	if event == nil || event.TransactionID == "" {
		return fmt.Errorf("append approval event: missing transaction id")
	}

	var head ledgerHead
	err := sqlx.GetContext(ctx, q, &head, q.Rebind(`SELECT seq, to_status, created_at FROM approval_events
	WHERE transaction_id = ? ORDER BY seq DESC LIMIT 1`), event.TransactionID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if !event.FromStatus.AwaitingSubject() {
			return fmt.Errorf("%w: empty ledger cannot continue from %s", ErrLedgerOutOfOrder, event.FromStatus)
		}
	case err != nil:
		return fmt.Errorf("read ledger head: %w", err)
	case head.ToStatus != event.FromStatus:
		return fmt.Errorf("%w: last status %s, event from %s", ErrLedgerOutOfOrder, head.ToStatus, event.FromStatus)
	}

	if event.ID == "" {
		event.ID = ulid.Make().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	// Keep created_at ordering identical to seq ordering.
	if event.CreatedAt.Before(head.CreatedAt) {
		event.CreatedAt = head.CreatedAt
	}
	event.Seq = head.Seq + 1

	const insert = `INSERT INTO approval_events (` + approvalColumns + `)
	VALUES (:id, :transaction_id, :seq, :actor_org_id, :actor_user_id, :actor_role, :action, :from_status, :to_status, :notes, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, q, insert, event); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrLedgerOutOfOrder, err)
		}
		return fmt.Errorf("insert approval event: %w", err)
	}
	return nil
}
