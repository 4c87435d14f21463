// Package api exposes the REST surface over chi. Handlers stay thin:
// decode, call a service, encode; every policy decision lives in the
// services layer.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apperrors "chathub/errors"
	"chathub/services"
)

// Handler holds the shared dependencies of all HTTP handlers.
type Handler struct {
	log   *slog.Logger
	auth  services.IAuthService
	users services.IUserService
	chats services.IChatService
}

func NewHandler(log *slog.Logger, auth services.IAuthService, users services.IUserService,
	chats services.IChatService) *Handler {
	return &Handler{log: log, auth: auth, users: users, chats: chats}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("encoding response", slog.Any("error", err))
	}
}

// writeError maps a domain error onto a status code and the uniform
// {"error": "..."} body.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.MapToStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", slog.Any("error", err))
		// Internal detail stays in the logs.
		h.writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handler) badRequest(w http.ResponseWriter, detail string) {
	h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": detail})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
