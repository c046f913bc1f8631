package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/datashare-api/internal/dto"
	"github.com/noah-isme/datashare-api/pkg/response"
)

type deliveryService interface {
	IssueLink(ctx context.Context, transactionID, orgID string) (*dto.DeliveryLink, error)
	Resolve(ctx context.Context, token string) (*dto.DeliveryGrant, error)
}

// DeliveryHandler exposes signed data delivery links.
type DeliveryHandler struct {
	service deliveryService
}

// NewDeliveryHandler builds a new handler.
func NewDeliveryHandler(service deliveryService) *DeliveryHandler {
	return &DeliveryHandler{service: service}
}

// Issue godoc
// @Summary Issue a signed delivery link for a completed transaction
// @Tags Delivery
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 201 {object} response.Envelope
// @Router /transactions/{id}/delivery-link [post]
func (h *DeliveryHandler) Issue(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	link, err := h.service.IssueLink(c.Request.Context(), c.Param("id"), actor.OrgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// Resolve godoc
// @Summary Redeem a delivery token
// @Tags Delivery
// @Produce json
// @Param token path string true "Delivery token"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /deliveries/{token} [get]
func (h *DeliveryHandler) Resolve(c *gin.Context) {
	grant, err := h.service.Resolve(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grant, nil)
}
