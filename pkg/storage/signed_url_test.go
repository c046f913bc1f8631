package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("tx-1", "datasets/claims-2023", time.Time{})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 2*time.Second)

	grant, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "tx-1", grant.TransactionID)
	require.Equal(t, "datasets/claims-2023", grant.AssetID)
	require.True(t, expiresAt.Equal(grant.ExpiresAt))
}

func TestSignedURLSignerCapsAtNotAfter(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	signer := NewSignedURLSigner("secret", 24*time.Hour).WithClock(func() time.Time { return now })

	notAfter := now.Add(90 * time.Minute)
	_, expiresAt, err := signer.Generate("tx-1", "asset-1", notAfter)
	require.NoError(t, err)
	require.Equal(t, notAfter, expiresAt)

	_, expiresAt, err = signer.Generate("tx-1", "asset-1", now.Add(72*time.Hour))
	require.NoError(t, err)
	require.Equal(t, now.Add(24*time.Hour), expiresAt)
}

func TestSignedURLSignerExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := now
	signer := NewSignedURLSigner("secret", time.Minute).WithClock(func() time.Time { return clock })
	token, _, err := signer.Generate("tx-1", "asset-1", time.Time{})
	require.NoError(t, err)

	clock = now.Add(2 * time.Minute)
	_, err = signer.Parse(token, false)
	require.True(t, errors.Is(err, ErrTokenExpired))

	grant, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "tx-1", grant.TransactionID)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("tx-1", "asset-1", time.Time{})
	require.NoError(t, err)

	other := NewSignedURLSigner("other-secret", time.Hour)
	_, err = other.Parse(token, false)
	require.True(t, errors.Is(err, ErrInvalidToken))

	_, err = signer.Parse("not-a-token", false)
	require.True(t, errors.Is(err, ErrInvalidToken))

	_, _, err = NewSignedURLSigner("", time.Hour).Generate("tx-1", "asset-1", time.Time{})
	require.Error(t, err)
}
