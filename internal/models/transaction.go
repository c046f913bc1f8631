package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TransactionStatus enumerates the workflow states of a data-access request.
type TransactionStatus string

const (
	TransactionStatusInitiated      TransactionStatus = "initiated"
	TransactionStatusPendingSubject TransactionStatus = "pending_subject"
	TransactionStatusPendingHolder  TransactionStatus = "pending_holder"
	TransactionStatusCompleted      TransactionStatus = "completed"
	TransactionStatusDeniedSubject  TransactionStatus = "denied_subject"
	TransactionStatusDeniedHolder   TransactionStatus = "denied_holder"
	TransactionStatusCancelled      TransactionStatus = "cancelled"
	TransactionStatusRevoked        TransactionStatus = "revoked"
)

// TransactionStatuses lists every known status in lifecycle order.
var TransactionStatuses = []TransactionStatus{
	TransactionStatusInitiated,
	TransactionStatusPendingSubject,
	TransactionStatusPendingHolder,
	TransactionStatusCompleted,
	TransactionStatusDeniedSubject,
	TransactionStatusDeniedHolder,
	TransactionStatusCancelled,
	TransactionStatusRevoked,
}

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	for _, known := range TransactionStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// AwaitingSubject reports whether the Subject organization is the next reviewer.
func (s TransactionStatus) AwaitingSubject() bool {
	return s == TransactionStatusInitiated || s == TransactionStatusPendingSubject
}

// PaymentStatus is orthogonal to the workflow status.
type PaymentStatus string

const (
	PaymentStatusPaid          PaymentStatus = "paid"
	PaymentStatusPending       PaymentStatus = "pending"
	PaymentStatusNotApplicable PaymentStatus = "n/a"
)

// Valid reports whether p is a known payment status.
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentStatusPaid, PaymentStatusPending, PaymentStatusNotApplicable:
		return true
	}
	return false
}

// Metadata is an open attribute bag persisted as JSON.
type Metadata map[string]interface{}

// Value encodes the bag as JSON text so it binds to both JSONB and TEXT columns.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes JSON stored by Value.
func (m *Metadata) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("metadata: unsupported scan type %T", src)
	}
	if len(raw) == 0 {
		*m = Metadata{}
		return nil
	}
	decoded := Metadata{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	*m = decoded
	return nil
}

// Transaction is a data-access request between a consumer, subject and holder organization.
// Status is a cached projection of the approval ledger.
type Transaction struct {
	ID                 string            `db:"id" json:"id"`
	Status             TransactionStatus `db:"status" json:"status"`
	ConsumerOrgID      string            `db:"consumer_org_id" json:"consumerOrgId"`
	SubjectOrgID       string            `db:"subject_org_id" json:"subjectOrgId"`
	HolderOrgID        string            `db:"holder_org_id" json:"holderOrgId"`
	AssetID            string            `db:"asset_id" json:"assetId"`
	Purpose            string            `db:"purpose" json:"purpose"`
	Justification      string            `db:"justification" json:"justification"`
	AccessDurationDays int               `db:"access_duration_days" json:"accessDurationDays"`
	PaymentStatus      PaymentStatus     `db:"payment_status" json:"paymentStatus"`
	Metadata           Metadata          `db:"metadata" json:"metadata"`
	Version            int64             `db:"version" json:"version"`
	CreatedBy          string            `db:"created_by" json:"createdBy"`
	CreatedAt          time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time         `db:"updated_at" json:"updatedAt"`
	CompletedAt        *time.Time        `db:"completed_at" json:"completedAt,omitempty"`
}

// AccessExpiresAt returns the end of the access window once the transaction completed.
func (t *Transaction) AccessExpiresAt() *time.Time {
	if t == nil || t.CompletedAt == nil {
		return nil
	}
	expires := t.CompletedAt.AddDate(0, 0, t.AccessDurationDays)
	return &expires
}

// IsParty reports whether orgID occupies any role slot.
func (t *Transaction) IsParty(orgID string) bool {
	if t == nil || orgID == "" {
		return false
	}
	return orgID == t.ConsumerOrgID || orgID == t.SubjectOrgID || orgID == t.HolderOrgID
}

// TransactionFilter constrains listing queries.
type TransactionFilter struct {
	OrgID  string
	Role   Role
	Status []TransactionStatus
	Limit  int
	Offset int
}
