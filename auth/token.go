package auth

import (
	"strconv"
	"time"

	apperrors "chathub/errors"
	"chathub/domain"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "chathub"

// Token types carried in the "type" claim. Only access tokens grant
// entry; refresh tokens are persisted server-side.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// CustomClaims is the payload stored inside a signed JWT.
type CustomClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 tokens. The secret comes from
// configuration, never from source.
type TokenManager struct {
	secret          []byte
	accessDuration  time.Duration
	refreshDuration time.Duration
}

func NewTokenManager(secret string, accessDuration, refreshDuration time.Duration) *TokenManager {
	return &TokenManager{
		secret:          []byte(secret),
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
	}
}

// Generate creates a signed JWT of the given type for a user.
func (m *TokenManager) Generate(userID domain.UserID, tokenType string) (string, error) {
	now := time.Now().UTC()
	duration := m.accessDuration
	if tokenType == TypeRefresh {
		duration = m.refreshDuration
	}

	claims := &CustomClaims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(int64(userID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify resolves an opaque bearer credential to a user id. Any parse,
// signature, expiry, or token-type failure comes back as
// ErrUnauthenticated; callers never learn which check failed.
func (m *TokenManager) Verify(credential string) (domain.UserID, error) {
	token, err := jwt.ParseWithClaims(credential, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return 0, apperrors.ErrUnauthenticated
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.TokenType != TypeAccess {
		return 0, apperrors.ErrUnauthenticated
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, apperrors.ErrUnauthenticated
	}
	return domain.UserID(userID), nil
}
