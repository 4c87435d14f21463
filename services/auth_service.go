//go:generate go run go.uber.org/mock/mockgen -destination=../mocks/mock_services.go -package=mocks chathub/services IAuthService,IUserService,IChatService
package services

import (
	"fmt"

	"chathub/auth"
	apperrors "chathub/errors"
	"chathub/repositories"
)

type Token string

type IAuthService interface {
	Register(username, password string) (Token, error)
	Login(username, password string) (Token, error)
}

type AuthService struct {
	users   repositories.IUserRepository
	tokens  repositories.ITokenRepository
	manager *auth.TokenManager
}

func NewAuthService(users repositories.IUserRepository, tokens repositories.ITokenRepository,
	manager *auth.TokenManager) IAuthService {
	return &AuthService{users: users, tokens: tokens, manager: manager}
}

func (s *AuthService) Register(username, password string) (Token, error) {
	// Validate bounds before any expensive cryptographic operation.
	request := auth.CredentialsRequest{Username: username, Password: password}
	if err := auth.ValidateCredentials(request); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrInvalidPassword, err)
	}

	// Hashing happens here so the repository never sees plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	// Propagates ErrUsernameTaken if the name is already claimed.
	user, err := s.users.Create(username, hashedPassword)
	if err != nil {
		return "", err
	}

	// A refresh token is issued once at registration and persisted
	// server-side; only the access token leaves the backend.
	refresh, err := s.manager.Generate(user.ID, auth.TypeRefresh)
	if err != nil {
		return "", apperrors.ErrTokenGeneration
	}
	if err := s.tokens.Save(user.ID, refresh); err != nil {
		return "", err
	}

	access, err := s.manager.Generate(user.ID, auth.TypeAccess)
	if err != nil {
		return "", apperrors.ErrTokenGeneration
	}
	return Token(access), nil
}

func (s *AuthService) Login(username, password string) (Token, error) {
	user, err := s.users.GetByUsername(username)
	if err != nil {
		// Generic error to prevent user enumeration.
		return "", apperrors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", apperrors.ErrInvalidCredentials
	}

	access, err := s.manager.Generate(user.ID, auth.TypeAccess)
	if err != nil {
		return "", apperrors.ErrTokenGeneration
	}

	// Accounts created before refresh tokens existed get one on first
	// sign-in.
	hasToken, err := s.tokens.Has(user.ID)
	if err != nil {
		return "", err
	}
	if !hasToken {
		refresh, err := s.manager.Generate(user.ID, auth.TypeRefresh)
		if err != nil {
			return "", apperrors.ErrTokenGeneration
		}
		if err := s.tokens.Save(user.ID, refresh); err != nil {
			return "", err
		}
	}

	return Token(access), nil
}
