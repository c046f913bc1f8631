package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken covers malformed tokens and signature mismatches.
	ErrInvalidToken = errors.New("invalid delivery token")
	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("delivery token expired")
)

// Grant is the payload carried by a signed delivery token.
type Grant struct {
	TransactionID string
	AssetID       string
	ExpiresAt     time.Time
}

// SignedURLSigner creates and validates signed delivery tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and maximum TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock overrides the time source.
func (s *SignedURLSigner) WithClock(now func() time.Time) *SignedURLSigner {
	if now != nil {
		s.now = now
	}
	return s
}

// Generate returns a token for the asset that expires at notAfter or after the
// signer's TTL, whichever comes first.
func (s *SignedURLSigner) Generate(transactionID, assetID string, notAfter time.Time) (string, time.Time, error) {
	if transactionID == "" || assetID == "" {
		return "", time.Time{}, fmt.Errorf("transactionID and assetID required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}

	expiresAt := s.now().Add(s.ttl)
	if !notAfter.IsZero() && notAfter.Before(expiresAt) {
		expiresAt = notAfter
	}
	expiresAt = expiresAt.Truncate(time.Second)

	encodedTx := base64.RawURLEncoding.EncodeToString([]byte(transactionID))
	encodedAsset := base64.RawURLEncoding.EncodeToString([]byte(assetID))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	signature := s.sign(encodedTx, ts, encodedAsset)
	token := strings.Join([]string{encodedTx, ts, encodedAsset, signature}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the embedded grant. When allowExpired is
// true, the timestamp check is skipped.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (Grant, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return Grant{}, fmt.Errorf("%w: format", ErrInvalidToken)
	}
	encodedTx, ts, encodedAsset, signature := parts[0], parts[1], parts[2], parts[3]

	expected := s.sign(encodedTx, ts, encodedAsset)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return Grant{}, fmt.Errorf("%w: signature", ErrInvalidToken)
	}

	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: timestamp", ErrInvalidToken)
	}
	txID, err := base64.RawURLEncoding.DecodeString(encodedTx)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: transaction", ErrInvalidToken)
	}
	assetID, err := base64.RawURLEncoding.DecodeString(encodedAsset)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: asset", ErrInvalidToken)
	}

	grant := Grant{TransactionID: string(txID), AssetID: string(assetID), ExpiresAt: time.Unix(expUnix, 0).UTC()}
	if !allowExpired && !s.now().Before(grant.ExpiresAt) {
		return Grant{}, ErrTokenExpired
	}
	return grant, nil
}

func (s *SignedURLSigner) sign(parts ...string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}
