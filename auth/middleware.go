package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	apperrors "chathub/errors"
	"chathub/domain"
)

type contextKey string

const userIDKey contextKey = "user_id"

// ExtractCredential pulls the bearer credential from the Authorization
// header, the access_token cookie, or the token query parameter, in
// that order. WebSocket clients can only use the query parameter.
func ExtractCredential(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie("access_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

// RequireAuth validates the request credential and injects the user id
// into the request context for downstream handlers.
func RequireAuth(manager *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := ExtractCredential(r)
			if credential == "" {
				unauthorized(w, "not authenticated")
				return
			}

			userID, err := manager.Verify(credential)
			if err != nil {
				unauthorized(w, "could not validate credentials")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated user id injected by
// RequireAuth.
func UserFromContext(ctx context.Context) (domain.UserID, error) {
	userID, ok := ctx.Value(userIDKey).(domain.UserID)
	if !ok {
		return 0, apperrors.ErrUnauthenticated
	}
	return userID, nil
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": detail})
}
