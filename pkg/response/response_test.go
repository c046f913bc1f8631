package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/datashare-api/pkg/errors"
)

func TestErrorMarksConflictRetryable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	c.Set("request_id", "req-9")

	Error(c, appErrors.Clone(appErrors.ErrConflict, "transaction was modified concurrently"))

	require.Equal(t, http.StatusConflict, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "CONFLICT", errBody["code"])
	meta := body["meta"].(map[string]interface{})
	assert.Equal(t, true, meta["retryable"])
	assert.Equal(t, "req-9", meta["request_id"])
}

func TestErrorHidesUnknownErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Error(c, assert.AnError)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
	assert.NotContains(t, w.Body.String(), "retryable")
}
