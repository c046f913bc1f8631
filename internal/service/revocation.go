package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/datashare-api/internal/models"
)

// Revoke terminates access to a completed transaction. Only the subject or
// the holder may revoke and a reason is mandatory. Revocation goes through
// the same transition table and guarded commit as every other action.
func (s *WorkflowService) Revoke(ctx context.Context, transactionID, orgID, userID, reason string) (*models.Transaction, error) {
	tx, err := s.ApplyAction(ctx, transactionID, orgID, userID, models.ApprovalActionRevoke, reason)
	if err != nil {
		return nil, err
	}
	s.logger.Warn("data access revoked",
		zap.String("transaction_id", tx.ID),
		zap.String("org_id", orgID),
		zap.String("consumer_org_id", tx.ConsumerOrgID),
		zap.String("reason", strings.TrimSpace(reason)),
	)
	return tx, nil
}
