package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"rbac-admin/internal/model"
	"rbac-admin/internal/reqctx"
	"rbac-admin/internal/service"
)

type PermissionHandler struct {
	service *service.PermissionService
}

func NewPermissionHandler(service *service.PermissionService) *PermissionHandler {
	return &PermissionHandler{service: service}
}

func (h *PermissionHandler) Tree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.Tree(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, tree, nil)
}

func (h *PermissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.PermissionRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, err)
		return
	}

	created, err := h.service.CreatePermission(r.Context(), payload, actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, created, nil)
}

func (h *PermissionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(chi.URLParam(r, "id"), "permission id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.PermissionRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.service.UpdatePermission(r.Context(), id, payload, actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, updated, nil)
}

func actorID(r *http.Request) int64 {
	identity, ok := reqctx.IdentityFrom(r.Context())
	if !ok {
		return 0
	}
	return identity.UserID
}
