package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/datashare-api/internal/dto"
	"github.com/noah-isme/datashare-api/internal/models"
	appErrors "github.com/noah-isme/datashare-api/pkg/errors"
	"github.com/noah-isme/datashare-api/pkg/storage"
)

type linkSigner interface {
	Generate(transactionID, assetID string, notAfter time.Time) (string, time.Time, error)
	Parse(token string, allowExpired bool) (storage.Grant, error)
}

// DeliveryService hands completed transactions' consumers a signed,
// expiring link to the requested asset.
type DeliveryService struct {
	workflow *WorkflowService
	signer   linkSigner
	baseURL  string
	logger   *zap.Logger
	now      func() time.Time
}

// NewDeliveryService constructs the service. baseURL is the public API root.
func NewDeliveryService(workflow *WorkflowService, signer linkSigner, baseURL string, logger *zap.Logger) *DeliveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryService{
		workflow: workflow,
		signer:   signer,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// IssueLink signs a link for the consumer of a completed transaction. The
// link never outlives the access window.
func (s *DeliveryService) IssueLink(ctx context.Context, transactionID, orgID string) (*dto.DeliveryLink, error) {
	tx, err := s.workflow.load(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.ConsumerOrgID != orgID {
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "only the consumer organization may receive data")
	}
	if tx.Status != models.TransactionStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "data is only available for completed transactions")
	}
	expiresAt, err := s.openWindow(tx)
	if err != nil {
		return nil, err
	}

	token, linkExpiry, err := s.signer.Generate(tx.ID, tx.AssetID, expiresAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign delivery link")
	}

	s.logger.Info("delivery link issued",
		zap.String("transaction_id", tx.ID),
		zap.String("asset_id", tx.AssetID),
		zap.Time("expires_at", linkExpiry),
	)
	return &dto.DeliveryLink{
		TransactionID: tx.ID,
		AssetID:       tx.AssetID,
		Token:         token,
		URL:           s.baseURL + "/deliveries/" + token,
		ExpiresAt:     linkExpiry,
	}, nil
}

// Resolve redeems a token. Revocation after issue invalidates the token
// because the transaction status is re-read.
func (s *DeliveryService) Resolve(ctx context.Context, token string) (*dto.DeliveryGrant, error) {
	grant, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "delivery link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "invalid delivery link")
	}

	tx, err := s.workflow.load(ctx, grant.TransactionID)
	if err != nil {
		return nil, err
	}
	if tx.AssetID != grant.AssetID {
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "invalid delivery link")
	}
	if tx.Status != models.TransactionStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "data access is no longer granted")
	}
	expiresAt, err := s.openWindow(tx)
	if err != nil {
		return nil, err
	}

	return &dto.DeliveryGrant{
		TransactionID:   tx.ID,
		AssetID:         tx.AssetID,
		ConsumerOrgID:   tx.ConsumerOrgID,
		AccessExpiresAt: expiresAt,
	}, nil
}

func (s *DeliveryService) openWindow(tx *models.Transaction) (time.Time, error) {
	expiresAt := tx.AccessExpiresAt()
	if expiresAt == nil || !s.now().Before(*expiresAt) {
		return time.Time{}, appErrors.Clone(appErrors.ErrNotAuthorized, "access window has closed")
	}
	return *expiresAt, nil
}
