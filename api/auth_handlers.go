package api

import (
	"encoding/json"
	"net/http"

	"chathub/auth"
)

// TokenResponse is the body of both sign-up and sign-in.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// SignUp creates an account and returns its first access token.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req auth.CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	token, err := h.auth.Register(req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, TokenResponse{AccessToken: string(token), TokenType: "bearer"})
}

// SignIn exchanges credentials for an access token.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req auth.CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, TokenResponse{AccessToken: string(token), TokenType: "bearer"})
}
