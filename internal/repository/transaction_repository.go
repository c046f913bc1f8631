package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/datashare-api/internal/models"
)

const transactionColumns = `id, status, consumer_org_id, subject_org_id, holder_org_id, asset_id, purpose, justification,
       access_duration_days, payment_status, metadata, version, created_by, created_at, updated_at, completed_at`

// TransactionRepository persists transactions and commits workflow transitions.
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository constructs the repository.
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a new transaction row.
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Status == "" {
		tx.Status = models.TransactionStatusInitiated
	}
	if tx.PaymentStatus == "" {
		tx.PaymentStatus = models.PaymentStatusNotApplicable
	}
	if tx.Metadata == nil {
		tx.Metadata = models.Metadata{}
	}
	now := time.Now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	if tx.UpdatedAt.IsZero() {
		tx.UpdatedAt = tx.CreatedAt
	}

	const query = `INSERT INTO transactions
	(id, status, consumer_org_id, subject_org_id, holder_org_id, asset_id, purpose, justification,
	 access_duration_days, payment_status, metadata, version, created_by, created_at, updated_at, completed_at)
	VALUES (:id, :status, :consumer_org_id, :subject_org_id, :holder_org_id, :asset_id, :purpose, :justification,
	 :access_duration_days, :payment_status, :metadata, :version, :created_by, :created_at, :updated_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tx); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// GetByID fetches a transaction by identifier.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	query := r.db.Rebind(`SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`)
	var tx models.Transaction
	if err := r.db.GetContext(ctx, &tx, query, id); err != nil {
		return nil, err
	}
	return &tx, nil
}

// List returns transactions the filter's organization is a party to, newest first.
func (r *TransactionRepository) List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	where, args := transactionConditions(filter)

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := r.db.Rebind(fmt.Sprintf(`SELECT %s FROM transactions%s ORDER BY created_at DESC, id LIMIT %d OFFSET %d`,
		transactionColumns, where, limit, offset))
	transactions := make([]models.Transaction, 0)
	if err := r.db.SelectContext(ctx, &transactions, query, args...); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, nil
}

// Count returns the number of rows List would page over.
func (r *TransactionRepository) Count(ctx context.Context, filter models.TransactionFilter) (int, error) {
	where, args := transactionConditions(filter)
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM transactions`+where), args...); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return total, nil
}

// IDs returns every transaction id in creation order.
func (r *TransactionRepository) IDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM transactions ORDER BY created_at ASC, id`); err != nil {
		return nil, fmt.Errorf("list transaction ids: %w", err)
	}
	return ids, nil
}

func transactionConditions(filter models.TransactionFilter) (string, []interface{}) {
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)

	if filter.OrgID != "" {
		switch filter.Role {
		case models.RoleConsumer:
			conditions = append(conditions, "consumer_org_id = ?")
			args = append(args, filter.OrgID)
		case models.RoleSubject:
			conditions = append(conditions, "subject_org_id = ?")
			args = append(args, filter.OrgID)
		case models.RoleHolder:
			conditions = append(conditions, "holder_org_id = ?")
			args = append(args, filter.OrgID)
		default:
			conditions = append(conditions, "(consumer_org_id = ? OR subject_org_id = ? OR holder_org_id = ?)")
			args = append(args, filter.OrgID, filter.OrgID, filter.OrgID)
		}
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			placeholders[i] = "?"
			args = append(args, status)
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// TransitionCommit describes one guarded status change and its ledger entry.
type TransitionCommit struct {
	TransactionID string
	From          models.TransactionStatus
	To            models.TransactionStatus
	At            time.Time
	Event         *models.ApprovalEvent
}

// CommitTransition updates the cached status only if it still equals From and
// appends the ledger event in the same database transaction. It returns
// ErrStaleStatus or ErrLedgerOutOfOrder when a concurrent writer won.
func (r *TransactionRepository) CommitTransition(ctx context.Context, c TransitionCommit) error {
	if c.Event == nil {
		return fmt.Errorf("commit transition: missing ledger event")
	}
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	var completedAt *time.Time
	if c.To == models.TransactionStatusCompleted {
		completedAt = &c.At
	}

	dbTx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = dbTx.Rollback() }()

	update := dbTx.Rebind(`UPDATE transactions
	SET status = ?, version = version + 1, updated_at = ?, completed_at = COALESCE(?, completed_at)
	WHERE id = ? AND status = ?`)
	result, err := dbTx.ExecContext(ctx, update, c.To, c.At, completedAt, c.TransactionID, c.From)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transition rows: %w", err)
	}
	if rows == 0 {
		return ErrStaleStatus
	}

	if c.Event.CreatedAt.IsZero() {
		c.Event.CreatedAt = c.At
	}
	if err := appendEvent(ctx, dbTx, c.Event); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrLedgerOutOfOrder, err)
		}
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

// UpdatePaymentStatus changes the payment status without touching the workflow status.
func (r *TransactionRepository) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus, at time.Time) error {
	query := r.db.Rebind(`UPDATE transactions SET payment_status = ?, updated_at = ? WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query, status, at, id)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check payment update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
