package workflow

import "github.com/noah-isme/datashare-api/internal/models"

// Rule is one row of the transition table.
type Rule struct {
	From          models.TransactionStatus
	Action        models.ApprovalAction
	Actors        []models.Role
	To            models.TransactionStatus
	Tags          []models.EventTag
	RequiresNotes bool
}

// Permits reports whether role may take the rule's action.
func (r Rule) Permits(role models.Role) bool {
	for _, actor := range r.Actors {
		if actor == role {
			return true
		}
	}
	return false
}

type ruleKey struct {
	from   models.TransactionStatus
	action models.ApprovalAction
}

var rules = buildRules()

func buildRules() []Rule {
	subject := []models.Role{models.RoleSubject}
	table := make([]Rule, 0, 8)

	// initiated and pending_subject both wait on the subject.
	for _, from := range []models.TransactionStatus{models.TransactionStatusInitiated, models.TransactionStatusPendingSubject} {
		table = append(table,
			Rule{From: from, Action: models.ApprovalActionPreApprove, Actors: subject, To: models.TransactionStatusPendingHolder, Tags: []models.EventTag{models.EventTagPreApproved}},
			Rule{From: from, Action: models.ApprovalActionDeny, Actors: subject, To: models.TransactionStatusDeniedSubject, Tags: []models.EventTag{models.EventTagDenied}},
			Rule{From: from, Action: models.ApprovalActionCancel, Actors: []models.Role{models.RoleConsumer}, To: models.TransactionStatusCancelled, Tags: []models.EventTag{models.EventTagCancelled}},
		)
	}

	return append(table,
		Rule{From: models.TransactionStatusPendingHolder, Action: models.ApprovalActionApprove, Actors: []models.Role{models.RoleHolder}, To: models.TransactionStatusCompleted, Tags: []models.EventTag{models.EventTagApproved, models.EventTagCompleted}},
		Rule{From: models.TransactionStatusPendingHolder, Action: models.ApprovalActionDeny, Actors: []models.Role{models.RoleHolder}, To: models.TransactionStatusDeniedHolder, Tags: []models.EventTag{models.EventTagDenied}},
		Rule{From: models.TransactionStatusCompleted, Action: models.ApprovalActionRevoke, Actors: []models.Role{models.RoleSubject, models.RoleHolder}, To: models.TransactionStatusRevoked, Tags: []models.EventTag{models.EventTagRevoked}, RequiresNotes: true},
	)
}

var index = func() map[ruleKey]Rule {
	m := make(map[ruleKey]Rule, len(rules))
	for _, r := range rules {
		k := ruleKey{from: r.From, action: r.Action}
		if _, dup := m[k]; dup {
			panic("workflow: duplicate rule for " + string(r.From) + "/" + string(r.Action))
		}
		m[k] = r
	}
	return m
}()

// Rules returns a copy of the transition table in declaration order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Lookup returns the rule for (from, action).
func Lookup(from models.TransactionStatus, action models.ApprovalAction) (Rule, bool) {
	r, ok := index[ruleKey{from: from, action: action}]
	return r, ok
}

// Terminal reports whether no action is possible from status. Completed still
// accepts revoke and is therefore not terminal here.
func Terminal(status models.TransactionStatus) bool {
	for _, r := range rules {
		if r.From == status {
			return false
		}
	}
	return true
}

// Available lists the actions role may take from status.
func Available(status models.TransactionStatus, roles ...models.Role) []models.ApprovalAction {
	var actions []models.ApprovalAction
	for _, r := range rules {
		if r.From != status {
			continue
		}
		for _, role := range roles {
			if r.Permits(role) {
				actions = append(actions, r.Action)
				break
			}
		}
	}
	return actions
}
