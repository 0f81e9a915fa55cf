package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/errs"
)

func performRespondError(err error) (*httptest.ResponseRecorder, map[string]interface{}) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/payments", nil)

	RespondError(c, err)

	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestRespondError_RoleDeniedMapsTo403WithStableCode(t *testing.T) {
	w, body := performRespondError(errs.New(errs.KindRoleDenied, "caller lacks ADMIN on team"))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ROLE_REQUIRED", body["code"])
	assert.Equal(t, "caller lacks ADMIN on team", body["error"])
}

func TestRespondError_RateLimitedMapsTo429(t *testing.T) {
	w, body := performRespondError(errs.New(errs.KindRateLimited, "rate limit exceeded"))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", body["code"])
}

func TestRespondError_InternalKindNeverLeaksUnderlyingCause(t *testing.T) {
	w, body := performRespondError(errs.Wrap(errs.KindInternal, "scan row", assert.AnError))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, body, "error")
	assert.Equal(t, "an internal error occurred", body["error"])
	assert.NotContains(t, body["error"], "assert.AnError")
}

func TestRespondError_QueryTimeoutReturns503NotGatewayTimeout(t *testing.T) {
	w, body := performRespondError(errs.New(errs.KindQueryTimeout, "statement exceeded deadline"))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "service temporarily unavailable", body["error"])
}

func TestRespondError_NonTaggedErrorFallsBackToInternal(t *testing.T) {
	w, body := performRespondError(assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
}
