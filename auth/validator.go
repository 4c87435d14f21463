package auth

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CredentialsRequest is the sign-up and sign-in payload. The bounds
// mirror the account schema: username 3..64, password 3..128.
type CredentialsRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=3,max=128"`
}

func ValidateCredentials(req CredentialsRequest) error {
	return validate.Struct(req)
}

// ChatCreateRequest creates a chat; the backend adds the creator to the
// member list if absent.
type ChatCreateRequest struct {
	MemberIDs []int64 `json:"member_ids" validate:"required,min=1,dive,gt=0"`
	IsGroup   bool    `json:"is_group"`
}

func ValidateChatCreate(req ChatCreateRequest) error {
	return validate.Struct(req)
}

// MessageCreateRequest is the REST message payload.
type MessageCreateRequest struct {
	Content string `json:"content" validate:"required,min=1,max=4096"`
}

func ValidateMessageCreate(req MessageCreateRequest) error {
	return validate.Struct(req)
}
