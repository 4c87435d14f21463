package api

import (
	"net/http"
	"time"

	"chathub/auth"
	"chathub/domain"

	"github.com/samber/lo"
)

// UserResponse is a public view of an account; the password hash never
// leaves the backend.
type UserResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
}

func toUserResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:        int64(u.ID),
		Username:  u.Username,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Me returns the authenticated account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserFromContext(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	user, err := h.users.Current(userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

// ListUsers returns every account, for picking chat members.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.UserFromContext(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}

	users, err := h.users.GetAll()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, lo.Map(users, func(u domain.User, _ int) UserResponse {
		return toUserResponse(u)
	}))
}
