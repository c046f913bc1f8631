package dto

import (
	"time"

	"github.com/noah-isme/datashare-api/internal/models"
)

// CreateTransactionRequest opens a new data-access request on behalf of the consumer.
type CreateTransactionRequest struct {
	ConsumerOrgID      string          `json:"consumerOrgId" validate:"required,max=64"`
	SubjectOrgID       string          `json:"subjectOrgId" validate:"required,max=64,nefield=ConsumerOrgID"`
	HolderOrgID        string          `json:"holderOrgId" validate:"required,max=64,nefield=ConsumerOrgID"`
	AssetID            string          `json:"assetId" validate:"required,max=128"`
	Purpose            string          `json:"purpose" validate:"required,max=2000"`
	Justification      string          `json:"justification" validate:"required,max=4000"`
	AccessDurationDays int             `json:"accessDurationDays" validate:"min=1,max=3650"`
	PaymentStatus      string          `json:"paymentStatus,omitempty" validate:"omitempty,oneof=paid pending n/a"`
	Metadata           models.Metadata `json:"metadata,omitempty"`
}

// ApplyActionRequest submits a workflow action.
type ApplyActionRequest struct {
	Action string `json:"action" validate:"required"`
	Notes  string `json:"notes,omitempty" validate:"max=2000"`
}

// RevokeRequest terminates access to a completed transaction.
type RevokeRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// PaymentStatusRequest updates the payment status tracked alongside the workflow.
type PaymentStatusRequest struct {
	PaymentStatus string `json:"paymentStatus" validate:"required,oneof=paid pending n/a"`
}

// TransactionQuery mirrors supported listing filters.
type TransactionQuery struct {
	Role     models.Role
	Status   []models.TransactionStatus
	Page     int
	PageSize int
}

// RoleResponse reports the caller's role on a transaction.
type RoleResponse struct {
	TransactionID string                  `json:"transactionId"`
	OrgID         string                  `json:"orgId"`
	Role          models.Role             `json:"role"`
	Actions       []models.ApprovalAction `json:"actions"`
}

// ProjectionReport compares the stored status against a ledger replay.
type ProjectionReport struct {
	TransactionID string                   `json:"transactionId"`
	StoredStatus  models.TransactionStatus `json:"storedStatus"`
	ReplayStatus  models.TransactionStatus `json:"replayStatus,omitempty"`
	EventCount    int                      `json:"eventCount"`
	Consistent    bool                     `json:"consistent"`
	Problem       string                   `json:"problem,omitempty"`
}

// TimelineEntry is a ledger event decorated with the actor's organization name.
type TimelineEntry struct {
	models.ApprovalEvent
	ActorOrgName string `json:"actorOrgName,omitempty"`
}

// DeliveryLink is a signed, expiring pointer to the requested asset.
type DeliveryLink struct {
	TransactionID string    `json:"transactionId"`
	AssetID       string    `json:"assetId"`
	Token         string    `json:"token"`
	URL           string    `json:"url"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// DeliveryGrant is returned when a delivery token is redeemed.
type DeliveryGrant struct {
	TransactionID   string    `json:"transactionId"`
	AssetID         string    `json:"assetId"`
	ConsumerOrgID   string    `json:"consumerOrgId"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}
