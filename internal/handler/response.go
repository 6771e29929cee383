package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"rbac-admin/internal/model"
	"rbac-admin/pkg/apierror"
)

const maxBodyBytes = 1 << 20

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{model.ErrTokenMalformed, http.StatusUnauthorized, "TOKEN_INVALID", "Invalid token"},
	{model.ErrTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token expired"},
	{model.ErrTokenKindMismatch, http.StatusUnauthorized, "TOKEN_KIND_MISMATCH", "Wrong token type"},
	{model.ErrTokenRevoked, http.StatusUnauthorized, "TOKEN_REVOKED", "Token revoked"},
	{model.ErrCaptchaInvalid, http.StatusBadRequest, "CAPTCHA_INVALID", "Captcha is incorrect"},
	{model.ErrCaptchaMissing, http.StatusBadRequest, "CAPTCHA_MISSING", "Captcha is missing or expired"},
	{model.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password"},
	{model.ErrUserDisabled, http.StatusForbidden, "USER_DISABLED", "User is disabled"},
	{model.ErrUserNotFound, http.StatusNotFound, "NOT_FOUND", "User not found"},
	{model.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required"},
	{model.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "Access denied"},
	{model.ErrPermissionNotFound, http.StatusNotFound, "NOT_FOUND", "Permission not found"},
	{model.ErrPermissionCodeExists, http.StatusConflict, "ALREADY_EXISTS", "Permission code already exists"},
	{model.ErrParentNotFound, http.StatusBadRequest, "PARENT_NOT_FOUND", "Parent permission not found"},
	{model.ErrPermissionCycle, http.StatusBadRequest, "PERMISSION_CYCLE", "Parent would create a cycle"},
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	matched := false
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
		matched = true
	} else if errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
		body.Details = strings.TrimPrefix(err.Error(), model.ErrInvalidInput.Error()+": ")
		matched = true
	} else {
		for _, m := range errorMappings {
			if errors.Is(err, m.target) {
				status, body.Code, body.Message = m.status, m.code, m.message
				matched = true
				break
			}
		}
	}

	if !matched {
		// Log unclassified errors so they are visible in container logs.
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

// decodeJSON reads a JSON body into dst. An empty body is allowed when
// optional is true.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return apierror.BadRequest("invalid JSON body", "")
	}
	return nil
}

func parseIntOrDefault(raw string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}

func parseIDParam(raw string, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.BadRequest("invalid "+name, raw)
	}
	return id, nil
}
