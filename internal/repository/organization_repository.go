package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/datashare-api/internal/models"
)

// OrganizationRepository reads and seeds the organization directory.
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository constructs the repository.
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// GetByID fetches one organization.
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.GetContext(ctx, &org, r.db.Rebind(`SELECT id, name, created_at FROM organizations WHERE id = ?`), id); err != nil {
		return nil, err
	}
	return &org, nil
}

// FindByIDs returns the organizations that exist among ids.
func (r *OrganizationRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Organization, error) {
	orgs := make([]models.Organization, 0, len(ids))
	if len(ids) == 0 {
		return orgs, nil
	}
	query, args, err := sqlx.In(`SELECT id, name, created_at FROM organizations WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build organization lookup: %w", err)
	}
	if err := r.db.SelectContext(ctx, &orgs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find organizations: %w", err)
	}
	return orgs, nil
}

// Upsert creates or renames an organization.
func (r *OrganizationRepository) Upsert(ctx context.Context, org *models.Organization) error {
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO organizations (id, name, created_at) VALUES (:id, :name, :created_at)
	ON CONFLICT (id) DO UPDATE SET name = excluded.name`
	if _, err := r.db.NamedExecContext(ctx, query, org); err != nil {
		return fmt.Errorf("upsert organization: %w", err)
	}
	return nil
}
