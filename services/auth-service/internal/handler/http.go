// Package handler exposes the auth service over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/neighborly/directory-api/services/auth-service/internal/config"
	"github.com/neighborly/directory-api/services/auth-service/internal/model"
	"github.com/neighborly/directory-api/services/auth-service/internal/repository"
	"github.com/neighborly/directory-api/services/auth-service/internal/usecase"
	"github.com/neighborly/directory-api/shared/auth"
	"github.com/neighborly/directory-api/shared/validation"
)

// AuthHTTPHandler wires the auth use cases to their HTTP routes.
type AuthHTTPHandler struct {
	authUsecase          usecase.AuthUsecase
	verificationUsecase  usecase.VerificationUsecase
	passwordResetUsecase usecase.PasswordResetUsecase
	userUsecase          usecase.UserUsecase
	validator            *validation.Validator
	jwtAuth              auth.JWTAuthenticator
	logger               *zerolog.Logger
	authServiceCfg       *config.AuthServiceConfig
}

// NewAuthHTTPHandler creates a new AuthHTTPHandler instance.
func NewAuthHTTPHandler(
	authUsecase usecase.AuthUsecase,
	verificationUsecase usecase.VerificationUsecase,
	passwordResetUsecase usecase.PasswordResetUsecase,
	userUsecase usecase.UserUsecase,
	validator *validation.Validator,
	jwtAuth auth.JWTAuthenticator,
	logger *zerolog.Logger,
	authServiceCfg *config.AuthServiceConfig,
) *AuthHTTPHandler {
	return &AuthHTTPHandler{
		authUsecase:          authUsecase,
		verificationUsecase:  verificationUsecase,
		passwordResetUsecase: passwordResetUsecase,
		userUsecase:          userUsecase,
		validator:            validator,
		jwtAuth:              jwtAuth,
		logger:               logger,
		authServiceCfg:       authServiceCfg,
	}
}

// Routes mounts every route of the service on the router.
func (h *AuthHTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(requestLogger(h.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, MessageResponse{Message: "ok"})
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
		r.Post("/refresh", h.handleRefresh)
		r.Post("/logout", h.handleLogout)
		r.Get("/verify", h.handleVerifyEmail)
		r.Post("/resend-verification", h.handleResendVerification)
		r.Post("/forgot-password", h.handleForgotPassword)
		r.Post("/reset-password", h.handleResetPassword)
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Use(h.authenticate)
		r.Use(requireRole(model.RoleAdmin))
		r.Get("/", h.handleListUsers)
		r.Get("/{id}", h.handleGetUser)
	})

	return r
}

func (h *AuthHTTPHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.authUsecase.Register(r.Context(), usecase.RegisterParams{
		Username:         req.Username,
		Email:            req.Email,
		Password:         req.Password,
		Type:             model.AccountType(req.Type),
		OrganizationName: req.OrganizationName,
		Description:      req.Description,
		Website:          req.Website,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to register user")

		switch {
		case errors.Is(err, usecase.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, usecase.ErrEmailAlreadyExists):
			writeError(w, http.StatusConflict, "email is already registered")
		case errors.Is(err, usecase.ErrUsernameAlreadyExists):
			writeError(w, http.StatusConflict, "username is already taken")
		case errors.Is(err, usecase.ErrProviderUnavailable):
			writeError(w, http.StatusBadGateway, "identity provider is unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

func (h *AuthHTTPHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	tokens, err := h.authUsecase.Login(r.Context(), usecase.LoginParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid email or password")
		case errors.Is(err, usecase.ErrAccountNotEnabled):
			writeError(w, http.StatusForbidden, "account is not verified; a new verification link has been sent")
		case errors.Is(err, usecase.ErrProviderUnavailable):
			writeError(w, http.StatusBadGateway, "identity provider is unavailable")
		default:
			h.logger.Error().Err(err).Msg("failed to log in user")
			writeError(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *AuthHTTPHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	tokens, err := h.authUsecase.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, "refresh token has expired")
		case errors.Is(err, usecase.ErrTokenInvalid):
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
		default:
			h.logger.Error().Err(err).Msg("failed to refresh tokens")
			writeError(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *AuthHTTPHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.authUsecase.Logout(r.Context(), req.RefreshToken); err != nil {
		h.logger.Error().Err(err).Msg("failed to log out user")
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHTTPHandler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token query parameter is required")
		return
	}

	user, err := h.verificationUsecase.VerifyEmail(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrTokenExpired):
			writeError(w, http.StatusGone, "verification token has expired")
		case errors.Is(err, usecase.ErrTokenInvalid):
			writeError(w, http.StatusBadRequest, "invalid verification token")
		default:
			h.logger.Error().Err(err).Msg("failed to verify email")
			writeError(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(user))
}

func (h *AuthHTTPHandler) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.verificationUsecase.ResendVerification(r.Context(), req.Email)
	if err != nil && !errors.Is(err, usecase.ErrUserNotFound) {
		// An unknown address gets the same response as a known one.
		h.logger.Error().Err(err).Msg("failed to resend verification link")
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	writeJSON(w, http.StatusAccepted, MessageResponse{
		Message: "if the account exists, a verification link has been sent",
	})
}

func (h *AuthHTTPHandler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.passwordResetUsecase.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.logger.Error().Err(err).Msg("failed to request password reset")
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	writeJSON(w, http.StatusAccepted, MessageResponse{
		Message: "if the account exists, a password reset link has been sent",
	})
}

func (h *AuthHTTPHandler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.passwordResetUsecase.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, usecase.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, usecase.ErrTokenExpired):
			writeError(w, http.StatusGone, "password reset token has expired")
		case errors.Is(err, usecase.ErrTokenInvalid):
			writeError(w, http.StatusBadRequest, "invalid password reset token")
		default:
			h.logger.Error().Err(err).Msg("failed to reset password")
			writeError(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHTTPHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	params := repository.FilterUsersParams{}

	if v := r.URL.Query().Get("verified"); v != "" {
		verified, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "verified must be a boolean")
			return
		}
		params.Verified = &verified
	}

	if v := r.URL.Query().Get("enabled"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "enabled must be a boolean")
			return
		}
		params.Enabled = &enabled
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		params.Limit = limit
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "offset must be a positive integer")
			return
		}
		params.Offset = offset
	}

	users, err := h.userUsecase.ListUsers(r.Context(), params)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list users")
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	responses := make([]UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, newUserResponse(user))
	}

	writeJSON(w, http.StatusOK, responses)
}

func (h *AuthHTTPHandler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userUsecase.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, usecase.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to get user")
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(user))
}

// decode parses and validates the JSON request body, writing the error
// response itself when the payload is unusable.
func (h *AuthHTTPHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	if details := h.validator.ValidateStruct(v); details != nil {
		writeError(w, http.StatusBadRequest, "validation failed", details...)
		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, details ...string) {
	writeJSON(w, status, ErrorResponse{
		Error:   message,
		Details: details,
	})
}
