package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/datashare-api/internal/models"
	appErrors "github.com/noah-isme/datashare-api/pkg/errors"
	"github.com/noah-isme/datashare-api/pkg/response"
)

type organizationService interface {
	Get(ctx context.Context, id string) (*models.Organization, error)
	Register(ctx context.Context, id, name string) (*models.Organization, error)
}

type registerOrganizationRequest struct {
	Name string `json:"name"`
}

// OrganizationHandler exposes the organization directory.
type OrganizationHandler struct {
	service organizationService
}

// NewOrganizationHandler builds a new handler.
func NewOrganizationHandler(service organizationService) *OrganizationHandler {
	return &OrganizationHandler{service: service}
}

// Get godoc
// @Summary Get an organization
// @Tags Organizations
// @Produce json
// @Param id path string true "Organization ID"
// @Success 200 {object} response.Envelope
// @Router /organizations/{id} [get]
func (h *OrganizationHandler) Get(c *gin.Context) {
	org, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, org, nil)
}

// Register godoc
// @Summary Register or rename the caller's organization
// @Tags Organizations
// @Accept json
// @Produce json
// @Param id path string true "Organization ID"
// @Success 200 {object} response.Envelope
// @Router /organizations/{id} [put]
func (h *OrganizationHandler) Register(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id := c.Param("id")
	if id != actor.OrgID {
		response.Error(c, appErrors.Clone(appErrors.ErrNotAuthorized, "organizations may only register themselves"))
		return
	}
	var req registerOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid organization payload"))
		return
	}
	org, err := h.service.Register(c.Request.Context(), id, req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, org, nil)
}
