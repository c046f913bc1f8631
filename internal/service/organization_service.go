package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/datashare-api/internal/models"
	appErrors "github.com/noah-isme/datashare-api/pkg/errors"
)

type organizationStore interface {
	GetByID(ctx context.Context, id string) (*models.Organization, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Organization, error)
	Upsert(ctx context.Context, org *models.Organization) error
}

// OrganizationService exposes the organization directory.
type OrganizationService struct {
	repo   organizationStore
	logger *zap.Logger
}

// NewOrganizationService constructs the service.
func NewOrganizationService(repo organizationStore, logger *zap.Logger) *OrganizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrganizationService{repo: repo, logger: logger}
}

// Get returns one organization.
func (s *OrganizationService) Get(ctx context.Context, id string) (*models.Organization, error) {
	org, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "organization not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load organization")
	}
	return org, nil
}

// Names maps ids to display names. Unknown ids are omitted.
func (s *OrganizationService) Names(ctx context.Context, ids []string) (map[string]string, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	orgs, err := s.repo.FindByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(orgs))
	for _, org := range orgs {
		names[org.ID] = org.Name
	}
	return names, nil
}

// Register creates or renames a directory entry.
func (s *OrganizationService) Register(ctx context.Context, id, name string) (*models.Organization, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" || name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "organization id and name are required")
	}
	org := &models.Organization{ID: id, Name: name}
	if err := s.repo.Upsert(ctx, org); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register organization")
	}
	s.logger.Info("organization registered", zap.String("org_id", id))
	return org, nil
}
