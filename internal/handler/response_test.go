package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbac-admin/internal/model"
	"rbac-admin/pkg/apierror"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) model.APIResponse {
	t.Helper()

	var resp model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"expired", model.ErrTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"wrapped revoked", fmt.Errorf("refresh: %w", model.ErrTokenRevoked), http.StatusUnauthorized, "TOKEN_REVOKED"},
		{"captcha", model.ErrCaptchaInvalid, http.StatusBadRequest, "CAPTCHA_INVALID"},
		{"disabled", model.ErrUserDisabled, http.StatusForbidden, "USER_DISABLED"},
		{"code taken", model.ErrPermissionCodeExists, http.StatusConflict, "ALREADY_EXISTS"},
		{"cycle", model.ErrPermissionCycle, http.StatusBadRequest, "PERMISSION_CYCLE"},
		{"api error", apierror.New("RATE_LIMITED", "slow down", "", http.StatusTooManyRequests), http.StatusTooManyRequests, "RATE_LIMITED"},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeEnvelope(t, rec)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestWriteErrorInvalidInputDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, fmt.Errorf("%w: code is required", model.ErrInvalidInput))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
	assert.Equal(t, "code is required", resp.Error.Details)
}

func TestWriteSuccessIncludesMeta(t *testing.T) {
	rec := httptest.NewRecorder()
	writeSuccess(rec, http.StatusOK, []int{1, 2}, &model.Meta{Page: 1, Limit: 2, Total: 5, TotalPages: 3})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"totalPages":3`)
	assert.True(t, decodeEnvelope(t, rec).Success)
}

func TestDecodeJSON(t *testing.T) {
	var req model.LogoutRequest

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.NoError(t, decodeJSON(httptest.NewRecorder(), r, &req, true))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	var apiErr *apierror.APIError
	require.ErrorAs(t, decodeJSON(httptest.NewRecorder(), r, &req, false), &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"refreshToken":"abc"}`))
	require.NoError(t, decodeJSON(httptest.NewRecorder(), r, &req, false))
	assert.Equal(t, "abc", req.RefreshToken)
}

func TestParseIDParam(t *testing.T) {
	id, err := parseIDParam(" 42 ", "user id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-3", "abc"} {
		_, err := parseIDParam(raw, "user id")
		assert.Error(t, err, raw)
	}
}
