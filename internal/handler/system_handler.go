package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"rbac-admin/internal/model"
	"rbac-admin/internal/service"
	"rbac-admin/pkg/apierror"
)

type loginLogReader interface {
	Query(ctx context.Context, query model.LoginLogQuery) ([]model.LoginLog, model.Meta, error)
}

type SystemHandler struct {
	sessions  *service.SessionService
	loginLogs loginLogReader
}

func NewSystemHandler(sessions *service.SessionService, loginLogs loginLogReader) *SystemHandler {
	return &SystemHandler{sessions: sessions, loginLogs: loginLogs}
}

func (h *SystemHandler) Online(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.OnlineSessions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, sessions, nil)
}

func (h *SystemHandler) ForceOffline(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(chi.URLParam(r, "userId"), "user id")
	if err != nil {
		writeError(w, err)
		return
	}

	closed, err := h.sessions.ForceOffline(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"userId": userID, "sessionsClosed": closed}, nil)
}

func (h *SystemHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.sessions.ClearCache(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"keysDeleted": deleted}, nil)
}

func (h *SystemHandler) RefreshUserCache(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(chi.URLParam(r, "userId"), "user id")
	if err != nil {
		writeError(w, err)
		return
	}

	h.sessions.RefreshUserCache(r.Context(), userID)

	writeSuccess(w, http.StatusOK, map[string]any{"userId": userID}, nil)
}

func (h *SystemHandler) LoginLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	q := model.LoginLogQuery{
		Username: strings.TrimSpace(query.Get("username")),
		Page:     parseIntOrDefault(query.Get("page"), 1),
		Limit:    parseIntOrDefault(query.Get("limit"), 50),
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status := parseIntOrDefault(raw, -1)
		if status != model.LoginFailed && status != model.LoginSuccess {
			writeError(w, apierror.BadRequest("status must be 0 or 1", raw))
			return
		}
		q.Status = &status
	}
	for name, target := range map[string]**time.Time{"from": &q.From, "to": &q.To} {
		raw := strings.TrimSpace(query.Get(name))
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, apierror.BadRequest(name+" must be an RFC3339 timestamp", raw))
			return
		}
		*target = &parsed
	}

	entries, meta, err := h.loginLogs.Query(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, entries, &meta)
}
