package models

import "time"

// TransitionNotice is handed to notification sinks after a commit.
type TransitionNotice struct {
	TransactionID string            `json:"transactionId"`
	Tag           EventTag          `json:"tag"`
	EventID       string            `json:"eventId"`
	Action        ApprovalAction    `json:"action"`
	FromStatus    TransactionStatus `json:"fromStatus"`
	ToStatus      TransactionStatus `json:"toStatus"`
	ActorOrgID    string            `json:"actorOrgId"`
	OccurredAt    time.Time         `json:"occurredAt"`
}
