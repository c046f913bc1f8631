package service

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/datashare-api/internal/dto"
	"github.com/noah-isme/datashare-api/internal/models"
	"github.com/noah-isme/datashare-api/internal/workflow"
	appErrors "github.com/noah-isme/datashare-api/pkg/errors"
)

// historyCacheKey scopes cached ledgers to the transaction version they were
// read at. A reader racing a commit can only fill the slot of the version it
// loaded, which no later reader asks for.
func historyCacheKey(transactionID string, version int64) string {
	return "history:" + transactionID + ":" + strconv.FormatInt(version, 10)
}

// GetHistory returns the ordered ledger to a party of the transaction.
func (s *WorkflowService) GetHistory(ctx context.Context, transactionID, orgID string) ([]models.ApprovalEvent, error) {
	tx, err := s.load(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !tx.IsParty(orgID) {
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "organization is not a party to this transaction")
	}
	return s.history(ctx, tx)
}

// History returns the ordered ledger without a party check. It backs
// operator tooling only.
func (s *WorkflowService) History(ctx context.Context, transactionID string) ([]models.ApprovalEvent, error) {
	tx, err := s.load(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return s.history(ctx, tx)
}

// Timeline returns the ledger with actor organization names attached.
func (s *WorkflowService) Timeline(ctx context.Context, transactionID, orgID string) ([]dto.TimelineEntry, error) {
	events, err := s.GetHistory(ctx, transactionID, orgID)
	if err != nil {
		return nil, err
	}

	names := map[string]string{}
	if s.directory != nil && len(events) > 0 {
		ids := make([]string, 0, len(events))
		for _, ev := range events {
			ids = append(ids, ev.ActorOrgID)
		}
		resolved, err := s.directory.Names(ctx, ids)
		if err != nil {
			s.logger.Warn("organization names unavailable", zap.String("transaction_id", transactionID), zap.Error(err))
		} else {
			names = resolved
		}
	}

	entries := make([]dto.TimelineEntry, 0, len(events))
	for _, ev := range events {
		entries = append(entries, dto.TimelineEntry{ApprovalEvent: ev, ActorOrgName: names[ev.ActorOrgID]})
	}
	return entries, nil
}

// VerifyProjection replays the ledger and compares the result with the
// stored status.
func (s *WorkflowService) VerifyProjection(ctx context.Context, transactionID string) (*dto.ProjectionReport, error) {
	tx, err := s.load(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	events, err := s.ledger.ListFor(ctx, tx.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read approval ledger")
	}

	report := &dto.ProjectionReport{
		TransactionID: tx.ID,
		StoredStatus:  tx.Status,
		EventCount:    len(events),
	}
	replayed, err := workflow.Replay(tx, events)
	switch {
	case err != nil:
		report.Problem = err.Error()
	case !workflow.Equivalent(replayed, tx.Status):
		report.ReplayStatus = replayed
		report.Problem = "stored status " + string(tx.Status) + " differs from replayed " + string(replayed)
	default:
		report.ReplayStatus = replayed
		report.Consistent = true
	}

	s.metrics.RecordVerification(report.Consistent)
	if !report.Consistent {
		s.logger.Error("ledger projection mismatch",
			zap.String("transaction_id", tx.ID),
			zap.String("stored_status", string(tx.Status)),
			zap.String("problem", report.Problem),
		)
	}
	return report, nil
}

// VerifyAll checks every stored transaction.
func (s *WorkflowService) VerifyAll(ctx context.Context) ([]dto.ProjectionReport, error) {
	ids, err := s.repo.IDs(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
	}
	reports := make([]dto.ProjectionReport, 0, len(ids))
	for _, id := range ids {
		report, err := s.VerifyProjection(ctx, id)
		if err != nil {
			return reports, err
		}
		reports = append(reports, *report)
	}
	return reports, nil
}

func (s *WorkflowService) history(ctx context.Context, tx *models.Transaction) ([]models.ApprovalEvent, error) {
	key := historyCacheKey(tx.ID, tx.Version)
	if s.cache.Enabled() {
		var cached []models.ApprovalEvent
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return cached, nil
		}
	}

	events, err := s.ledger.ListFor(ctx, tx.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read approval ledger")
	}
	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, key, events, s.historyTTL)
	}
	return events, nil
}

// invalidateHistory drops the entry of the version tx was committed from.
// Failures are logged and swallowed; the entry is unreachable either way.
func (s *WorkflowService) invalidateHistory(ctx context.Context, tx *models.Transaction) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, historyCacheKey(tx.ID, tx.Version-1)); err != nil {
		s.logger.Warn("history cache invalidation failed", zap.String("transaction_id", tx.ID), zap.Error(err))
	}
}
