package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/datashare-api/internal/models"
	appErrors "github.com/noah-isme/datashare-api/pkg/errors"
)

type memoryOrgRepo struct {
	orgs    map[string]models.Organization
	queried []string
}

func (m *memoryOrgRepo) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	org, ok := m.orgs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &org, nil
}

func (m *memoryOrgRepo) FindByIDs(ctx context.Context, ids []string) ([]models.Organization, error) {
	m.queried = ids
	var out []models.Organization
	for _, id := range ids {
		if org, ok := m.orgs[id]; ok {
			out = append(out, org)
		}
	}
	return out, nil
}

func (m *memoryOrgRepo) Upsert(ctx context.Context, org *models.Organization) error {
	if m.orgs == nil {
		m.orgs = map[string]models.Organization{}
	}
	m.orgs[org.ID] = *org
	return nil
}

func TestOrganizationService(t *testing.T) {
	repo := &memoryOrgRepo{}
	svc := NewOrganizationService(repo, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Register(ctx, " ", "Nameless")
	requireCode(t, err, appErrors.ErrValidation)

	org, err := svc.Register(ctx, subjectOrg, "  Subject Clinic ")
	require.NoError(t, err)
	assert.Equal(t, "Subject Clinic", org.Name)

	got, err := svc.Get(ctx, subjectOrg)
	require.NoError(t, err)
	assert.Equal(t, "Subject Clinic", got.Name)

	_, err = svc.Get(ctx, "org-unknown")
	requireCode(t, err, appErrors.ErrNotFound)

	names, err := svc.Names(ctx, []string{subjectOrg, subjectOrg, "", "org-unknown"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{subjectOrg: "Subject Clinic"}, names)
	assert.Equal(t, []string{subjectOrg, "org-unknown"}, repo.queried)
}
