package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/datashare-api/internal/dto"
	"github.com/noah-isme/datashare-api/internal/models"
	appErrors "github.com/noah-isme/datashare-api/pkg/errors"
	"github.com/noah-isme/datashare-api/pkg/response"
)

type workflowService interface {
	CreateTransaction(ctx context.Context, req dto.CreateTransactionRequest, actor models.Actor) (*models.Transaction, error)
	ApplyAction(ctx context.Context, transactionID, orgID, userID string, action models.ApprovalAction, notes string) (*models.Transaction, error)
	Revoke(ctx context.Context, transactionID, orgID, userID, reason string) (*models.Transaction, error)
	Get(ctx context.Context, transactionID, orgID string) (*models.Transaction, error)
	GetRole(ctx context.Context, transactionID, orgID string) (models.Role, error)
	AvailableActions(ctx context.Context, transactionID, orgID string) ([]models.ApprovalAction, error)
	List(ctx context.Context, query dto.TransactionQuery, orgID string) ([]models.Transaction, *models.Pagination, error)
	GetHistory(ctx context.Context, transactionID, orgID string) ([]models.ApprovalEvent, error)
	Timeline(ctx context.Context, transactionID, orgID string) ([]dto.TimelineEntry, error)
	VerifyProjection(ctx context.Context, transactionID string) (*dto.ProjectionReport, error)
	UpdatePaymentStatus(ctx context.Context, transactionID, orgID string, status models.PaymentStatus) (*models.Transaction, error)
}

// TransactionHandler exposes the data-access workflow endpoints.
type TransactionHandler struct {
	service workflowService
}

// NewTransactionHandler builds a new handler.
func NewTransactionHandler(service workflowService) *TransactionHandler {
	return &TransactionHandler{service: service}
}

// Create godoc
// @Summary Create a data-access transaction
// @Description The caller's organization must be the consumer.
// @Tags Transactions
// @Accept json
// @Produce json
// @Param payload body dto.CreateTransactionRequest true "Transaction payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /transactions [post]
func (h *TransactionHandler) Create(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transaction payload"))
		return
	}
	tx, err := h.service.CreateTransaction(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tx)
}

// List godoc
// @Summary List transactions the caller's organization is party to
// @Tags Transactions
// @Produce json
// @Param role query string false "consumer, subject or holder"
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /transactions [get]
func (h *TransactionHandler) List(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	query := dto.TransactionQuery{Role: models.Role(strings.TrimSpace(c.Query("role")))}
	for _, raw := range c.QueryArray("status") {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				query.Status = append(query.Status, models.TransactionStatus(part))
			}
		}
	}
	if query.Page, err = intQuery(c, "page"); err != nil {
		response.Error(c, err)
		return
	}
	if query.PageSize, err = intQuery(c, "page_size"); err != nil {
		response.Error(c, err)
		return
	}

	items, pagination, err := h.service.List(c.Request.Context(), query, actor.OrgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a transaction
// @Tags Transactions
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /transactions/{id} [get]
func (h *TransactionHandler) Get(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	tx, err := h.service.Get(c.Request.Context(), c.Param("id"), actor.OrgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tx, nil)
}

// Role godoc
// @Summary Get the caller's role and available actions
// @Tags Transactions
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Envelope
// @Router /transactions/{id}/role [get]
func (h *TransactionHandler) Role(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id := c.Param("id")
	role, err := h.service.GetRole(c.Request.Context(), id, actor.OrgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	actions, err := h.service.AvailableActions(c.Request.Context(), id, actor.OrgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if actions == nil {
		actions = []models.ApprovalAction{}
	}
	response.JSON(c, http.StatusOK, dto.RoleResponse{TransactionID: id, OrgID: actor.OrgID, Role: role, Actions: actions}, nil)
}

// Apply godoc
// @Summary Apply a workflow action
// @Description Conflict responses are retryable after re-reading the transaction.
// @Tags Transactions
// @Accept json
// @Produce json
// @Param id path string true "Transaction ID"
// @Param payload body dto.ApplyActionRequest true "Action payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /transactions/{id}/actions [post]
func (h *TransactionHandler) Apply(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ApplyActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid action payload"))
		return
	}
	tx, err := h.service.ApplyAction(c.Request.Context(), c.Param("id"), actor.OrgID, actor.UserID, models.ApprovalAction(strings.TrimSpace(req.Action)), req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tx, nil)
}

// Revoke godoc
// @Summary Revoke access to a completed transaction
// @Tags Transactions
// @Accept json
// @Produce json
// @Param id path string true "Transaction ID"
// @Param payload body dto.RevokeRequest true "Revocation payload"
// @Success 200 {object} response.Envelope
// @Router /transactions/{id}/revoke [post]
func (h *TransactionHandler) Revoke(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.RevokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid revocation payload"))
		return
	}
	tx, err := h.service.Revoke(c.Request.Context(), c.Param("id"), actor.OrgID, actor.UserID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tx, nil)
}

// UpdatePayment godoc
// @Summary Update payment status
// @Tags Transactions
// @Accept json
// @Produce json
// @Param id path string true "Transaction ID"
// @Param payload body dto.PaymentStatusRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Router /transactions/{id}/payment [patch]
func (h *TransactionHandler) UpdatePayment(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.PaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}
	tx, err := h.service.UpdatePaymentStatus(c.Request.Context(), c.Param("id"), actor.OrgID, models.PaymentStatus(req.PaymentStatus))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tx, nil)
}

// History godoc
// @Summary Get the approval ledger of a transaction
// @Tags Transactions
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Envelope
// @Router /transactions/{id}/history [get]
func (h *TransactionHandler) History(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	events, err := h.service.GetHistory(c.Request.Context(), c.Param("id"), actor.OrgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Timeline godoc
// @Summary Get the approval ledger with organization names
// @Tags Transactions
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Envelope
// @Router /transactions/{id}/timeline [get]
func (h *TransactionHandler) Timeline(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, err := h.service.Timeline(c.Request.Context(), c.Param("id"), actor.OrgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Verify godoc
// @Summary Replay the ledger and compare it with the stored status
// @Tags Transactions
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Envelope
// @Router /transactions/{id}/verify [get]
func (h *TransactionHandler) Verify(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id := c.Param("id")
	if _, err := h.service.Get(c.Request.Context(), id, actor.OrgID); err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.service.VerifyProjection(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be a non-negative integer")
	}
	return v, nil
}
