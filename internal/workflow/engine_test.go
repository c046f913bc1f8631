package workflow

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/datashare-api/internal/models"
	appErrors "github.com/noah-isme/datashare-api/pkg/errors"
)

const (
	consumerOrg = "org-consumer"
	subjectOrg  = "org-subject"
	holderOrg   = "org-holder"
	strangerOrg = "org-stranger"
)

func newTx(status models.TransactionStatus) *models.Transaction {
	return &models.Transaction{
		ID:            "tx-1",
		Status:        status,
		ConsumerOrgID: consumerOrg,
		SubjectOrgID:  subjectOrg,
		HolderOrgID:   holderOrg,
	}
}

func orgFor(role models.Role) string {
	switch role {
	case models.RoleConsumer:
		return consumerOrg
	case models.RoleSubject:
		return subjectOrg
	case models.RoleHolder:
		return holderOrg
	}
	return strangerOrg
}

func TestDecidePreApproveMatrix(t *testing.T) {
	roles := []models.Role{models.RoleConsumer, models.RoleSubject, models.RoleHolder}
	for _, status := range models.TransactionStatuses {
		for _, role := range roles {
			t.Run(fmt.Sprintf("%s/%s", status, role), func(t *testing.T) {
				d, err := Decide(newTx(status), orgFor(role), models.ApprovalActionPreApprove, "")
				awaiting := status.AwaitingSubject()
				switch {
				case awaiting && role == models.RoleSubject:
					require.NoError(t, err)
					assert.Equal(t, models.TransactionStatusPendingHolder, d.To)
					assert.Equal(t, []models.EventTag{models.EventTagPreApproved}, d.Tags)
				case awaiting:
					assert.True(t, errors.Is(err, appErrors.ErrNotAuthorized))
				default:
					assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
				}
			})
		}
	}
}

func TestApproveRequiresPendingHolder(t *testing.T) {
	for _, status := range models.TransactionStatuses {
		_, err := Decide(newTx(status), holderOrg, models.ApprovalActionApprove, "")
		if status == models.TransactionStatusPendingHolder {
			assert.NoError(t, err, status)
			continue
		}
		assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition), status)
	}
}

func TestApproveEmitsApprovedThenCompleted(t *testing.T) {
	d, err := Decide(newTx(models.TransactionStatusPendingHolder), holderOrg, models.ApprovalActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, d.To)
	assert.Equal(t, models.RoleHolder, d.Role)
	assert.Equal(t, []models.EventTag{models.EventTagApproved, models.EventTagCompleted}, d.Tags)
}

func TestRevokeRules(t *testing.T) {
	for _, status := range []models.TransactionStatus{
		models.TransactionStatusDeniedSubject,
		models.TransactionStatusCancelled,
		models.TransactionStatusRevoked,
		models.TransactionStatusPendingHolder,
	} {
		_, err := Decide(newTx(status), holderOrg, models.ApprovalActionRevoke, "contract breach")
		assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition), status)
	}

	completed := newTx(models.TransactionStatusCompleted)
	for _, org := range []string{subjectOrg, holderOrg} {
		d, err := Decide(completed, org, models.ApprovalActionRevoke, "  contract breach ")
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusRevoked, d.To)
		require.NotNil(t, d.Notes)
		assert.Equal(t, "contract breach", *d.Notes)
	}

	_, err := Decide(completed, consumerOrg, models.ApprovalActionRevoke, "want out")
	assert.True(t, errors.Is(err, appErrors.ErrNotAuthorized))

	_, err = Decide(completed, holderOrg, models.ApprovalActionRevoke, "   ")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestDecideInputErrors(t *testing.T) {
	tx := newTx(models.TransactionStatusInitiated)

	_, err := Decide(tx, subjectOrg, models.ApprovalAction("escalate"), "")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = Decide(tx, strangerOrg, models.ApprovalActionPreApprove, "")
	assert.True(t, errors.Is(err, appErrors.ErrNotAuthorized))

	_, err = Decide(tx, "", models.ApprovalActionCancel, "")
	assert.True(t, errors.Is(err, appErrors.ErrNotAuthorized))

	_, err = Decide(nil, subjectOrg, models.ApprovalActionPreApprove, "")
	assert.True(t, errors.Is(err, appErrors.ErrTransactionNotFound))
}

func TestDecideDoesNotMutate(t *testing.T) {
	tx := newTx(models.TransactionStatusInitiated)
	_, err := Decide(tx, subjectOrg, models.ApprovalActionPreApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusInitiated, tx.Status)
}

func TestSubjectIsHolder(t *testing.T) {
	tx := &models.Transaction{ID: "tx-2", Status: models.TransactionStatusInitiated, ConsumerOrgID: consumerOrg, SubjectOrgID: holderOrg, HolderOrgID: holderOrg}

	assert.Equal(t, []models.Role{models.RoleSubject, models.RoleHolder}, Roles(tx, holderOrg))
	assert.Equal(t, models.RoleSubject, ResolveRole(tx, holderOrg, ""))

	d, err := Decide(tx, holderOrg, models.ApprovalActionPreApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleSubject, d.Role)

	_, err = Decide(tx, holderOrg, models.ApprovalActionApprove, "")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition), "holder step cannot be reached before pre_approve")

	tx.Status = d.To
	assert.Equal(t, models.RoleHolder, ResolveRole(tx, holderOrg, ""))
	d, err = Decide(tx, holderOrg, models.ApprovalActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleHolder, d.Role)
	assert.Equal(t, models.TransactionStatusCompleted, d.To)
}

func TestResolveRole(t *testing.T) {
	tx := newTx(models.TransactionStatusPendingHolder)
	assert.Equal(t, models.RoleConsumer, ResolveRole(tx, consumerOrg, ""))
	assert.Equal(t, models.RoleSubject, ResolveRole(tx, subjectOrg, models.ApprovalActionApprove))
	assert.Equal(t, models.RoleHolder, ResolveRole(tx, holderOrg, models.ApprovalActionApprove))
	assert.Equal(t, models.RoleNone, ResolveRole(tx, strangerOrg, ""))
	assert.Empty(t, Roles(nil, subjectOrg))
}

func TestTableShape(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range Rules() {
		key := string(r.From) + "/" + string(r.Action)
		assert.False(t, seen[key], "duplicate rule %s", key)
		seen[key] = true
		assert.NotEmpty(t, r.Tags)
	}

	for _, status := range []models.TransactionStatus{
		models.TransactionStatusDeniedSubject,
		models.TransactionStatusDeniedHolder,
		models.TransactionStatusCancelled,
		models.TransactionStatusRevoked,
	} {
		assert.True(t, Terminal(status), status)
	}
	assert.False(t, Terminal(models.TransactionStatusCompleted))
	assert.ElementsMatch(t,
		[]models.ApprovalAction{models.ApprovalActionPreApprove, models.ApprovalActionDeny},
		Available(models.TransactionStatusInitiated, models.RoleSubject))
}

func event(seq int, org string, role models.Role, action models.ApprovalAction, from, to models.TransactionStatus) models.ApprovalEvent {
	return models.ApprovalEvent{
		ID:            fmt.Sprintf("ev-%d", seq),
		TransactionID: "tx-1",
		Seq:           seq,
		ActorOrgID:    org,
		ActorRole:     role,
		Action:        action,
		FromStatus:    from,
		ToStatus:      to,
	}
}

func TestReplay(t *testing.T) {
	tx := newTx(models.TransactionStatusCompleted)
	events := []models.ApprovalEvent{
		event(1, subjectOrg, models.RoleSubject, models.ApprovalActionPreApprove, models.TransactionStatusInitiated, models.TransactionStatusPendingHolder),
		event(2, holderOrg, models.RoleHolder, models.ApprovalActionApprove, models.TransactionStatusPendingHolder, models.TransactionStatusCompleted),
	}

	status, err := Replay(tx, events)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, status)

	status, err = Replay(tx, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusInitiated, status)
}

func TestReplayDetectsInconsistency(t *testing.T) {
	tx := newTx(models.TransactionStatusCompleted)
	cases := map[string][]models.ApprovalEvent{
		"skips subject": {
			event(1, holderOrg, models.RoleHolder, models.ApprovalActionApprove, models.TransactionStatusPendingHolder, models.TransactionStatusCompleted),
		},
		"wrong actor": {
			event(1, consumerOrg, models.RoleConsumer, models.ApprovalActionPreApprove, models.TransactionStatusInitiated, models.TransactionStatusPendingHolder),
		},
		"role not held": {
			event(1, consumerOrg, models.RoleSubject, models.ApprovalActionPreApprove, models.TransactionStatusInitiated, models.TransactionStatusPendingHolder),
		},
		"duplicate predecessor": {
			event(1, subjectOrg, models.RoleSubject, models.ApprovalActionPreApprove, models.TransactionStatusInitiated, models.TransactionStatusPendingHolder),
			event(2, subjectOrg, models.RoleSubject, models.ApprovalActionDeny, models.TransactionStatusInitiated, models.TransactionStatusDeniedSubject),
		},
		"seq gap": {
			event(2, subjectOrg, models.RoleSubject, models.ApprovalActionPreApprove, models.TransactionStatusInitiated, models.TransactionStatusPendingHolder),
		},
		"wrong result": {
			event(1, subjectOrg, models.RoleSubject, models.ApprovalActionPreApprove, models.TransactionStatusInitiated, models.TransactionStatusCompleted),
		},
	}

	for name, events := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Replay(tx, events)
			assert.True(t, errors.Is(err, appErrors.ErrLedgerInconsistent), "got %v", err)
		})
	}
}

// Random walks over the table: whatever sequence of attempts is made, the
// status reached by applying accepted decisions equals the ledger replay.
func TestReplayMatchesAppliedDecisions(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	orgs := []string{consumerOrg, subjectOrg, holderOrg, strangerOrg}

	for walk := 0; walk < 500; walk++ {
		tx := newTx(models.TransactionStatusInitiated)
		if walk%5 == 0 {
			tx.HolderOrgID = subjectOrg
		}
		var ledger []models.ApprovalEvent

		for step := 0; step < 8; step++ {
			org := orgs[rng.Intn(len(orgs))]
			action := models.ApprovalActions[rng.Intn(len(models.ApprovalActions))]
			d, err := Decide(tx, org, action, "because")
			if err != nil {
				continue
			}
			ledger = append(ledger, models.ApprovalEvent{
				ID:            fmt.Sprintf("w%d-%d", walk, len(ledger)+1),
				TransactionID: tx.ID,
				Seq:           len(ledger) + 1,
				ActorOrgID:    org,
				ActorRole:     d.Role,
				Action:        action,
				FromStatus:    d.From,
				ToStatus:      d.To,
			})
			tx.Status = d.To
		}

		replayed, err := Replay(tx, ledger)
		require.NoError(t, err)
		require.Equal(t, tx.Status, replayed)
	}
}
