package handler

import (
	"time"

	"github.com/neighborly/directory-api/services/auth-service/internal/model"
)

type RegisterRequest struct {
	Username         string `json:"username"          validate:"required,min=3,max=32"`
	Email            string `json:"email"             validate:"required,email"`
	Password         string `json:"password"          validate:"required,min=8"`
	Type             string `json:"type"              validate:"required,oneof=individual organization"`
	OrganizationName string `json:"organization_name" validate:"omitempty,max=128"`
	Description      string `json:"description"       validate:"omitempty,max=1024"`
	Website          string `json:"website"           validate:"omitempty,url"`
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"        validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// UserResponse is the public projection of a user; the credential hash and
// the provider subject id never leave the service.
type UserResponse struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	Type             string    `json:"type"`
	OrganizationName string    `json:"organization_name,omitempty"`
	Description      string    `json:"description,omitempty"`
	Website          string    `json:"website,omitempty"`
	Verified         bool      `json:"verified"`
	Enabled          bool      `json:"enabled"`
	CreatedAt        time.Time `json:"created_at"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func newUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:               user.ID.Hex(),
		Username:         user.Username,
		Email:            user.Email,
		Role:             string(user.Role),
		Type:             string(user.Type),
		OrganizationName: user.OrganizationName,
		Description:      user.Description,
		Website:          user.Website,
		Verified:         user.Verified,
		Enabled:          user.Enabled,
		CreatedAt:        user.CreatedAt,
	}
}
