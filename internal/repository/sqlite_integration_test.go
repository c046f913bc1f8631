package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/datashare-api/internal/models"
	"github.com/noah-isme/datashare-api/pkg/database"
)

func newSQLiteDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func seedTransaction(t *testing.T, repo *TransactionRepository) *models.Transaction {
	t.Helper()
	tx := &models.Transaction{
		ConsumerOrgID:      "org-c",
		SubjectOrgID:       "org-s",
		HolderOrgID:        "org-h",
		AssetID:            "asset-1",
		Purpose:            "research",
		Justification:      "approved protocol",
		AccessDurationDays: 14,
		Metadata:           models.Metadata{"ticket": "DS-7"},
	}
	require.NoError(t, repo.Create(context.Background(), tx))
	return tx
}

func transition(tx *models.Transaction, from, to models.TransactionStatus, org string, role models.Role, action models.ApprovalAction) TransitionCommit {
	return TransitionCommit{
		TransactionID: tx.ID,
		From:          from,
		To:            to,
		At:            time.Now().UTC(),
		Event: &models.ApprovalEvent{
			TransactionID: tx.ID,
			ActorOrgID:    org,
			ActorUserID:   "user-" + org,
			ActorRole:     role,
			Action:        action,
			FromStatus:    from,
			ToStatus:      to,
		},
	}
}

func TestSQLiteCommitTransitionRoundTrip(t *testing.T) {
	db := newSQLiteDB(t)
	txRepo := NewTransactionRepository(db)
	ledger := NewApprovalRepository(db)
	ctx := context.Background()

	tx := seedTransaction(t, txRepo)

	require.NoError(t, txRepo.CommitTransition(ctx, transition(tx, models.TransactionStatusInitiated, models.TransactionStatusPendingHolder, "org-s", models.RoleSubject, models.ApprovalActionPreApprove)))
	require.NoError(t, txRepo.CommitTransition(ctx, transition(tx, models.TransactionStatusPendingHolder, models.TransactionStatusCompleted, "org-h", models.RoleHolder, models.ApprovalActionApprove)))

	stored, err := txRepo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
	require.NotNil(t, stored.CompletedAt)
	assert.Equal(t, "DS-7", stored.Metadata["ticket"])

	events, err := ledger.ListFor(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Seq)
	assert.Equal(t, 2, events[1].Seq)
	assert.Equal(t, models.TransactionStatusPendingHolder, events[1].FromStatus)

	err = txRepo.CommitTransition(ctx, transition(tx, models.TransactionStatusPendingHolder, models.TransactionStatusDeniedHolder, "org-h", models.RoleHolder, models.ApprovalActionDeny))
	assert.True(t, errors.Is(err, ErrStaleStatus))

	events, err = ledger.ListFor(ctx, tx.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2, "failed commit leaves the ledger untouched")
}

func TestSQLiteConcurrentCommitsOneWins(t *testing.T) {
	db := newSQLiteDB(t)
	txRepo := NewTransactionRepository(db)
	ledger := NewApprovalRepository(db)
	ctx := context.Background()

	tx := seedTransaction(t, txRepo)
	attempts := []TransitionCommit{
		transition(tx, models.TransactionStatusInitiated, models.TransactionStatusPendingHolder, "org-s", models.RoleSubject, models.ApprovalActionPreApprove),
		transition(tx, models.TransactionStatusInitiated, models.TransactionStatusCancelled, "org-c", models.RoleConsumer, models.ApprovalActionCancel),
	}

	var wg sync.WaitGroup
	errs := make([]error, len(attempts))
	start := make(chan struct{})
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = txRepo.CommitTransition(ctx, attempts[i])
		}(i)
	}
	close(start)
	wg.Wait()

	var wins, stale int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrStaleStatus):
			stale++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, stale)

	events, err := ledger.ListFor(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.TransactionStatusInitiated, events[0].FromStatus)
}

func TestSQLiteLedgerRejectsDuplicatePredecessor(t *testing.T) {
	db := newSQLiteDB(t)
	txRepo := NewTransactionRepository(db)
	ledger := NewApprovalRepository(db)
	ctx := context.Background()

	tx := seedTransaction(t, txRepo)
	require.NoError(t, txRepo.CommitTransition(ctx, transition(tx, models.TransactionStatusInitiated, models.TransactionStatusPendingHolder, "org-s", models.RoleSubject, models.ApprovalActionPreApprove)))

	second := transition(tx, models.TransactionStatusInitiated, models.TransactionStatusDeniedSubject, "org-s", models.RoleSubject, models.ApprovalActionDeny)
	err := appendEvent(ctx, db, second.Event)
	assert.True(t, errors.Is(err, ErrLedgerOutOfOrder))

	events, err := ledger.ListFor(ctx, tx.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSQLiteRejectedWritesLeaveTransactionCommittable(t *testing.T) {
	db := newSQLiteDB(t)
	txRepo := NewTransactionRepository(db)
	ledger := NewApprovalRepository(db)
	ctx := context.Background()

	tx := seedTransaction(t, txRepo)

	// Row guard fails: nothing is written.
	err := txRepo.CommitTransition(ctx, transition(tx, models.TransactionStatusPendingHolder, models.TransactionStatusCompleted, "org-h", models.RoleHolder, models.ApprovalActionApprove))
	assert.True(t, errors.Is(err, ErrStaleStatus))

	// Row guard passes but the event does not continue the ledger: the status
	// update is rolled back with it.
	mismatched := transition(tx, models.TransactionStatusInitiated, models.TransactionStatusPendingHolder, "org-c", models.RoleConsumer, models.ApprovalActionPreApprove)
	mismatched.Event.FromStatus = models.TransactionStatusPendingHolder
	err = txRepo.CommitTransition(ctx, mismatched)
	assert.True(t, errors.Is(err, ErrLedgerOutOfOrder))

	stored, err := txRepo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusInitiated, stored.Status)
	assert.Equal(t, int64(0), stored.Version)
	events, err := ledger.ListFor(ctx, tx.ID)
	require.NoError(t, err)
	assert.Empty(t, events)

	require.NoError(t, txRepo.CommitTransition(ctx, transition(tx, models.TransactionStatusInitiated, models.TransactionStatusPendingHolder, "org-s", models.RoleSubject, models.ApprovalActionPreApprove)))
	require.NoError(t, txRepo.CommitTransition(ctx, transition(tx, models.TransactionStatusPendingHolder, models.TransactionStatusCompleted, "org-h", models.RoleHolder, models.ApprovalActionApprove)))

	events, err = ledger.ListFor(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.TransactionStatusCompleted, events[1].ToStatus)
}

func TestSQLiteListAndOrganizations(t *testing.T) {
	db := newSQLiteDB(t)
	txRepo := NewTransactionRepository(db)
	orgRepo := NewOrganizationRepository(db)
	ctx := context.Background()

	seedTransaction(t, txRepo)
	seedTransaction(t, txRepo)

	list, err := txRepo.List(ctx, models.TransactionFilter{OrgID: "org-s", Role: models.RoleSubject})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = txRepo.List(ctx, models.TransactionFilter{OrgID: "org-s", Role: models.RoleConsumer})
	require.NoError(t, err)
	assert.Empty(t, list)

	total, err := txRepo.Count(ctx, models.TransactionFilter{OrgID: "org-h"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	ids, err := txRepo.IDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	require.NoError(t, orgRepo.Upsert(ctx, &models.Organization{ID: "org-s", Name: "Regional Health Trust"}))
	require.NoError(t, orgRepo.Upsert(ctx, &models.Organization{ID: "org-s", Name: "Regional Health Trust NHS"}))
	require.NoError(t, orgRepo.Upsert(ctx, &models.Organization{ID: "org-h", Name: "Data Custody Ltd"}))

	org, err := orgRepo.GetByID(ctx, "org-s")
	require.NoError(t, err)
	assert.Equal(t, "Regional Health Trust NHS", org.Name)

	orgs, err := orgRepo.FindByIDs(ctx, []string{"org-s", "org-h", "org-x"})
	require.NoError(t, err)
	assert.Len(t, orgs, 2)
}
