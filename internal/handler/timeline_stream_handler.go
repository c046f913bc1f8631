package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/datashare-api/internal/models"
	"github.com/noah-isme/datashare-api/pkg/response"
)

type transactionReader interface {
	Get(ctx context.Context, transactionID, orgID string) (*models.Transaction, error)
}

type streamHub interface {
	Serve(topic string, conn *websocket.Conn)
}

// TimelineStreamHandler upgrades parties of a transaction to a websocket
// receiving its transition notices.
type TimelineStreamHandler struct {
	transactions transactionReader
	hub          streamHub
	upgrader     websocket.Upgrader
	logger       *zap.Logger
}

// NewTimelineStreamHandler builds a new handler. An empty allowedOrigins
// accepts any origin.
func NewTimelineStreamHandler(transactions transactionReader, hub streamHub, allowedOrigins []string, logger *zap.Logger) *TimelineStreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins[origin] = struct{}{}
	}
	return &TimelineStreamHandler{
		transactions: transactions,
		hub:          hub,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				_, ok := origins[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// Stream godoc
// @Summary Stream transition notices over a websocket
// @Tags Transactions
// @Param id path string true "Transaction ID"
// @Param access_token query string false "Bearer token for clients that cannot set headers"
// @Success 101
// @Router /transactions/{id}/stream [get]
func (h *TimelineStreamHandler) Stream(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	tx, err := h.transactions.Get(c.Request.Context(), c.Param("id"), actor.OrgID)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("transaction_id", tx.ID), zap.Error(err))
		return
	}
	h.logger.Debug("timeline subscriber connected", zap.String("transaction_id", tx.ID), zap.String("org_id", actor.OrgID))
	h.hub.Serve(tx.ID, conn)
}
