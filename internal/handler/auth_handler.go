package handler

import (
	"net/http"
	"strings"

	"rbac-admin/internal/model"
	"rbac-admin/internal/reqctx"
	"rbac-admin/internal/service"
	"rbac-admin/pkg/apierror"
)

type tokenSource interface {
	TokenFromRequest(r *http.Request) string
}

type AuthHandler struct {
	service     *service.AuthService
	permissions *service.PermissionService
	tokens      tokenSource
}

func NewAuthHandler(service *service.AuthService, permissions *service.PermissionService, tokens tokenSource) *AuthHandler {
	return &AuthHandler{service: service, permissions: permissions, tokens: tokens}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.service.Login(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp, nil)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload model.RefreshRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, err)
		return
	}

	payload.RefreshToken = strings.TrimSpace(payload.RefreshToken)
	if payload.RefreshToken == "" {
		writeError(w, apierror.BadRequest("refreshToken is required", "refreshToken"))
		return
	}

	tokens, err := h.service.Refresh(r.Context(), payload.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens, nil)
}

// Logout accepts the access token from the auth header and an optional
// refresh token in the body. It succeeds even without a valid session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var payload model.LogoutRequest
	if err := decodeJSON(w, r, &payload, true); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.Logout(r.Context(), h.tokens.TokenFromRequest(r), payload.RefreshToken); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"loggedOut": true}, nil)
}

func (h *AuthHandler) Captcha(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.service.GenerateCaptcha(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeSuccess(w, http.StatusOK, challenge, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.CurrentUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, info, nil)
}

func (h *AuthHandler) Menus(w http.ResponseWriter, r *http.Request) {
	identity, ok := reqctx.IdentityFrom(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	tree, err := h.permissions.UserTree(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, tree, nil)
}
