package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsIdentityForErrorsIs(t *testing.T) {
	err := Clone(ErrConflict, "transaction was modified concurrently")
	require.True(t, stdErrors.Is(err, ErrConflict))
	require.False(t, stdErrors.Is(err, ErrInvalidTransition))
	assert.Equal(t, "transaction was modified concurrently", err.Message)
	assert.Equal(t, "conflict", ErrConflict.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)

	wrapped := fmt.Errorf("load: %w", Clone(ErrTransactionNotFound, ""))
	assert.Equal(t, ErrTransactionNotFound.Code, FromError(wrapped).Code)
	assert.Nil(t, FromError(nil))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(Clone(ErrConflict, "stale")))
	assert.False(t, Retryable(ErrNotAuthorized))
	assert.False(t, Retryable(ErrValidation))
	assert.False(t, Retryable(fmt.Errorf("plain")))
}
