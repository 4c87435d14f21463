package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthenticated    = fmt.Errorf("unauthenticated")
	ErrForbidden          = fmt.Errorf("not a member of this chat")
	ErrEmptyContent       = fmt.Errorf("empty content")
	ErrContentTooLong     = fmt.Errorf("content too long")
	ErrUnknownFrameType   = fmt.Errorf("unknown frame type")
	ErrChatNotFound       = fmt.Errorf("chat not found")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrUsernameTaken      = fmt.Errorf("username already taken")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("invalid password")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)

// WebSocket close codes used at connect time, before the read loop.
const (
	CloseUnauthenticated = 4401
	CloseForbidden       = 4403
)

// MapToStatus translates a domain error into an HTTP status code for
// the API layer.
func MapToStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrChatNotFound), errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUsernameTaken),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidPassword),
		errors.Is(err, ErrEmptyContent),
		errors.Is(err, ErrContentTooLong):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// FrameTag returns the wire tag sent back in an error frame for local,
// non-fatal failures inside the read loop.
func FrameTag(err error) string {
	switch {
	case errors.Is(err, ErrEmptyContent):
		return "empty_content"
	case errors.Is(err, ErrUnknownFrameType):
		return "unknown_type"
	case errors.Is(err, ErrChatNotFound):
		return "chat_not_found"
	case errors.Is(err, ErrContentTooLong):
		return "content_too_long"
	default:
		return "internal_error"
	}
}
