package workflow

import (
	"fmt"
	"strings"

	"github.com/noah-isme/datashare-api/internal/models"
	appErrors "github.com/noah-isme/datashare-api/pkg/errors"
)

// Decision is the outcome of a permitted action.
type Decision struct {
	From  models.TransactionStatus
	To    models.TransactionStatus
	Role  models.Role
	Tags  []models.EventTag
	Notes *string
}

// Decide checks whether orgID may take action on tx in its current status.
// It never mutates tx.
func Decide(tx *models.Transaction, orgID string, action models.ApprovalAction, notes string) (Decision, error) {
	if tx == nil {
		return Decision{}, appErrors.Clone(appErrors.ErrTransactionNotFound, "")
	}
	if !action.Valid() {
		return Decision{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown action %q", action))
	}

	held := Roles(tx, orgID)
	if len(held) == 0 {
		return Decision{}, appErrors.Clone(appErrors.ErrNotAuthorized, "organization is not a party to this transaction")
	}

	rule, ok := Lookup(tx.Status, action)
	if !ok {
		return Decision{}, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("%s is not allowed from %s", action, tx.Status))
	}

	role := ResolveRole(tx, orgID, action)
	if !rule.Permits(role) {
		return Decision{}, appErrors.Clone(appErrors.ErrNotAuthorized, fmt.Sprintf("%s may not %s this transaction", role, action))
	}

	trimmed := strings.TrimSpace(notes)
	if rule.RequiresNotes && trimmed == "" {
		return Decision{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s requires a reason", action))
	}

	d := Decision{
		From: tx.Status,
		To:   rule.To,
		Role: role,
		Tags: append([]models.EventTag(nil), rule.Tags...),
	}
	if trimmed != "" {
		d.Notes = &trimmed
	}
	return d, nil
}

// Replay folds events through the transition table starting at initiated and
// returns the derived status. Events must be in ledger order.
func Replay(tx *models.Transaction, events []models.ApprovalEvent) (models.TransactionStatus, error) {
	status := models.TransactionStatusInitiated
	for i, ev := range events {
		if ev.Seq != 0 && ev.Seq != i+1 {
			return status, inconsistent("event %s has seq %d, expected %d", ev.ID, ev.Seq, i+1)
		}
		if tx != nil && ev.TransactionID != "" && ev.TransactionID != tx.ID {
			return status, inconsistent("event %s belongs to transaction %s", ev.ID, ev.TransactionID)
		}
		if ev.FromStatus != "" && !Equivalent(ev.FromStatus, status) {
			return status, inconsistent("event %s claims predecessor %s but replay is at %s", ev.ID, ev.FromStatus, status)
		}

		rule, ok := Lookup(status, ev.Action)
		if !ok {
			return status, inconsistent("event %s: %s is not allowed from %s", ev.ID, ev.Action, status)
		}

		if tx != nil {
			role := ev.ActorRole
			if role == "" {
				role = ResolveRole(&models.Transaction{
					Status:        status,
					ConsumerOrgID: tx.ConsumerOrgID,
					SubjectOrgID:  tx.SubjectOrgID,
					HolderOrgID:   tx.HolderOrgID,
				}, ev.ActorOrgID, ev.Action)
			} else if !holds(tx, ev.ActorOrgID, role) {
				return status, inconsistent("event %s: org %s does not hold role %s", ev.ID, ev.ActorOrgID, role)
			}
			if !rule.Permits(role) {
				return status, inconsistent("event %s: %s may not %s", ev.ID, role, ev.Action)
			}
		}

		if ev.ToStatus != "" && ev.ToStatus != rule.To {
			return status, inconsistent("event %s records %s but the table yields %s", ev.ID, ev.ToStatus, rule.To)
		}
		status = rule.To
	}
	return status, nil
}

// Equivalent reports whether two statuses are the same workflow position.
// initiated and pending_subject both mean the subject has not yet reviewed.
func Equivalent(a, b models.TransactionStatus) bool {
	if a == b {
		return true
	}
	return a.AwaitingSubject() && b.AwaitingSubject()
}

func holds(tx *models.Transaction, orgID string, role models.Role) bool {
	for _, r := range Roles(tx, orgID) {
		if r == role {
			return true
		}
	}
	return false
}

func inconsistent(format string, args ...interface{}) error {
	return appErrors.Clone(appErrors.ErrLedgerInconsistent, fmt.Sprintf(format, args...))
}
