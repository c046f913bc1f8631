package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataValueAndScan(t *testing.T) {
	m := Metadata{"priority": "high", "ticket": "DS-12"}
	v, err := m.Value()
	require.NoError(t, err)
	raw, ok := v.(string)
	require.True(t, ok)

	var decoded Metadata
	require.NoError(t, decoded.Scan([]byte(raw)))
	assert.Equal(t, "high", decoded["priority"])

	var fromString Metadata
	require.NoError(t, fromString.Scan(raw))
	assert.Equal(t, "DS-12", fromString["ticket"])

	var empty Metadata
	require.NoError(t, empty.Scan(nil))
	assert.NotNil(t, empty)

	var nilBag Metadata
	v, err = nilBag.Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)

	assert.Error(t, empty.Scan(42))
}

func TestAccessExpiresAt(t *testing.T) {
	tx := &Transaction{AccessDurationDays: 30}
	assert.Nil(t, tx.AccessExpiresAt())

	done := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	tx.CompletedAt = &done
	expires := tx.AccessExpiresAt()
	require.NotNil(t, expires)
	assert.Equal(t, time.Date(2024, 2, 9, 12, 0, 0, 0, time.UTC), *expires)
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, TransactionStatusInitiated.AwaitingSubject())
	assert.True(t, TransactionStatusPendingSubject.AwaitingSubject())
	assert.False(t, TransactionStatusPendingHolder.AwaitingSubject())
	assert.False(t, TransactionStatus("archived").Valid())
	assert.True(t, PaymentStatusNotApplicable.Valid())
	assert.False(t, ApprovalAction("escalate").Valid())
}
