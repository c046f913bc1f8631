package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/datashare-api/internal/dto"
	"github.com/noah-isme/datashare-api/internal/models"
	appErrors "github.com/noah-isme/datashare-api/pkg/errors"
)

type deliveryServiceMock struct{}

func (deliveryServiceMock) IssueLink(ctx context.Context, transactionID, orgID string) (*dto.DeliveryLink, error) {
	if orgID != "org-consumer" {
		return nil, appErrors.ErrNotAuthorized
	}
	return &dto.DeliveryLink{TransactionID: transactionID, Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (deliveryServiceMock) Resolve(ctx context.Context, token string) (*dto.DeliveryGrant, error) {
	if token != "tok" {
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "invalid delivery link")
	}
	return &dto.DeliveryGrant{TransactionID: "tx-1"}, nil
}

func TestDeliveryHandler(t *testing.T) {
	h := NewDeliveryHandler(deliveryServiceMock{})

	c, w := newTestContext(http.MethodPost, "/transactions/tx-1/delivery-link", nil, "org-consumer")
	c.Params = gin.Params{{Key: "id", Value: "tx-1"}}
	h.Issue(c)
	assert.Equal(t, http.StatusCreated, w.Code)

	c, w = newTestContext(http.MethodPost, "/transactions/tx-1/delivery-link", nil, "org-holder")
	h.Issue(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	c, w = newTestContext(http.MethodGet, "/deliveries/nope", nil, "")
	c.Params = gin.Params{{Key: "token", Value: "nope"}}
	h.Resolve(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

type organizationServiceMock struct {
	registered string
}

func (m *organizationServiceMock) Get(ctx context.Context, id string) (*models.Organization, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "organization not found")
}

func (m *organizationServiceMock) Register(ctx context.Context, id, name string) (*models.Organization, error) {
	m.registered = name
	return &models.Organization{ID: id, Name: name}, nil
}

func TestOrganizationHandlerRegisterOnlySelf(t *testing.T) {
	svc := &organizationServiceMock{}
	h := NewOrganizationHandler(svc)

	c, w := newTestContext(http.MethodPut, "/organizations/org-other", map[string]string{"name": "Other"}, "org-holder")
	c.Params = gin.Params{{Key: "id", Value: "org-other"}}
	h.Register(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	c, w = newTestContext(http.MethodPut, "/organizations/org-holder", map[string]string{"name": "Holder Bank"}, "org-holder")
	c.Params = gin.Params{{Key: "id", Value: "org-holder"}}
	h.Register(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Holder Bank", svc.registered)

	c, w = newTestContext(http.MethodGet, "/organizations/org-x", nil, "org-holder")
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"database": func(ctx context.Context) error { return nil },
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	h = NewMetricsHandler(nil, map[string]ReadinessCheck{
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	})
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	h.Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
