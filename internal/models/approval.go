package models

import "time"

// ApprovalAction enumerates state-changing actions recorded in the ledger.
type ApprovalAction string

const (
	ApprovalActionPreApprove ApprovalAction = "pre_approve"
	ApprovalActionApprove    ApprovalAction = "approve"
	ApprovalActionDeny       ApprovalAction = "deny"
	ApprovalActionCancel     ApprovalAction = "cancel"
	ApprovalActionRevoke     ApprovalAction = "revoke"
)

// ApprovalActions lists every supported action.
var ApprovalActions = []ApprovalAction{
	ApprovalActionPreApprove,
	ApprovalActionApprove,
	ApprovalActionDeny,
	ApprovalActionCancel,
	ApprovalActionRevoke,
}

// Valid reports whether a is a known action.
func (a ApprovalAction) Valid() bool {
	for _, known := range ApprovalActions {
		if a == known {
			return true
		}
	}
	return false
}

// EventTag is sent to the notification dispatcher after a committed transition.
type EventTag string

const (
	EventTagPreApproved EventTag = "pre_approved"
	EventTagApproved    EventTag = "approved"
	EventTagDenied      EventTag = "denied"
	EventTagCompleted   EventTag = "completed"
	EventTagCancelled   EventTag = "cancelled"
	EventTagRevoked     EventTag = "revoked"
)

// ApprovalEvent is an immutable ledger entry.
type ApprovalEvent struct {
	ID            string            `db:"id" json:"id"`
	TransactionID string            `db:"transaction_id" json:"transactionId"`
	Seq           int               `db:"seq" json:"seq"`
	ActorOrgID    string            `db:"actor_org_id" json:"actorOrgId"`
	ActorUserID   string            `db:"actor_user_id" json:"actorUserId"`
	ActorRole     Role              `db:"actor_role" json:"actorRole"`
	Action        ApprovalAction    `db:"action" json:"action"`
	FromStatus    TransactionStatus `db:"from_status" json:"fromStatus"`
	ToStatus      TransactionStatus `db:"to_status" json:"toStatus"`
	Notes         *string           `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"createdAt"`
}
