package api

import (
	"log/slog"
	"net/http"
	"time"

	"chathub/auth"
	"chathub/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires the full HTTP surface: public auth endpoints, the
// authenticated REST API, and the WebSocket entry point.
func NewRouter(log *slog.Logger, handler *Handler, manager *auth.TokenManager,
	session *ws.SessionHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(log))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", handler.Health)
	r.Post("/auth/sign-up", handler.SignUp)
	r.Post("/auth/sign-in", handler.SignIn)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(manager))

		r.Get("/users/me", handler.Me)
		r.Get("/users", handler.ListUsers)

		r.Post("/chats", handler.CreateChat)
		r.Get("/chats", handler.ListChats)
		r.Get("/chats/{chatID}/messages", handler.History)
		r.Post("/chats/{chatID}/messages", handler.PostMessage)
		r.Get("/chats/{chatID}/messages/search", handler.SearchMessages)
	})

	// The session handler does its own auth so it can answer with a
	// WebSocket close code instead of an HTTP 401.
	r.Get("/ws/message/{chatID}", session.ServeHTTP)

	return r
}

// requestLogger emits one structured line per request.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r)
			log.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", chimw.GetReqID(r.Context())))
		})
	}
}
