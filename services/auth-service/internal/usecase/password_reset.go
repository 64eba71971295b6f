package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/neighborly/directory-api/services/auth-service/internal/config"
	"github.com/neighborly/directory-api/services/auth-service/internal/model"
	"github.com/neighborly/directory-api/services/auth-service/internal/repository"
	"github.com/neighborly/directory-api/shared/security"
)

const minPasswordLength = 8

// PasswordResetUsecase defines the business logic for the password reset
// flow. It operates on the local credential; federated accounts have no
// local password and are rejected with a validation error.
type PasswordResetUsecase interface {
	// RequestPasswordReset initiates the reset process for a given email.
	// An unknown address is not an error: the response never reveals
	// whether an account exists.
	RequestPasswordReset(ctx context.Context, email string) error

	// ResetPassword consumes a reset token, stores the new credential and
	// revokes every refresh token of the user.
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type passwordResetUsecase struct {
	userRepo       repository.UserRepository
	tokenRepo      repository.OneTimeTokenRepository
	refreshRepo    repository.RefreshTokenRepository
	notifier       Notifier
	logger         *zerolog.Logger
	authServiceCfg *config.AuthServiceConfig
}

// NewPasswordResetUsecase creates a new instance of PasswordResetUsecase.
func NewPasswordResetUsecase(
	userRepo repository.UserRepository,
	tokenRepo repository.OneTimeTokenRepository,
	refreshRepo repository.RefreshTokenRepository,
	notifier Notifier,
	logger *zerolog.Logger,
	authServiceCfg *config.AuthServiceConfig,
) PasswordResetUsecase {
	return &passwordResetUsecase{
		userRepo:       userRepo,
		tokenRepo:      tokenRepo,
		refreshRepo:    refreshRepo,
		notifier:       notifier,
		logger:         logger,
		authServiceCfg: authServiceCfg,
	}
}

func (u *passwordResetUsecase) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := u.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// To prevent email enumeration, do not reveal that the email
			// does not exist.
			u.logger.Debug().Str("email", email).Msg("password reset requested for unknown email")
			return nil
		}
		return err
	}

	if user.PasswordHash == "" {
		// Federated account: the provider owns the credential.
		u.logger.Debug().Str("user_id", user.ID.Hex()).Msg("password reset requested for federated account")
		return nil
	}

	// Invalidate any outstanding reset token for this user before issuing
	// the new one.
	if _, err := u.tokenRepo.DeleteByUserAndKind(ctx, user.ID.Hex(), model.TokenKindPasswordReset); err != nil {
		return err
	}

	opaque, err := newOpaqueToken()
	if err != nil {
		return err
	}

	if _, err := u.tokenRepo.CreateToken(ctx, &model.OneTimeToken{
		Token:     opaque,
		UserID:    user.ID,
		Kind:      model.TokenKindPasswordReset,
		ExpiresAt: time.Now().Add(u.authServiceCfg.Token.PasswordResetTokenExpiresIn),
	}); err != nil {
		return err
	}

	resetLink := fmt.Sprintf("%s?token=%s", u.authServiceCfg.AppPasswordResetURL, opaque)

	return u.notifier.SendPasswordResetEmail(user.Email, resetLink)
}

func (u *passwordResetUsecase) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}

	consumed, err := u.tokenRepo.ConsumeToken(ctx, token, model.TokenKindPasswordReset)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, repository.ErrWrongTokenKind) {
			return ErrTokenInvalid
		}
		return err
	}

	if consumed.Expired() {
		return ErrTokenExpired
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if _, err := u.userRepo.UpdateUser(ctx, consumed.UserID.Hex(), repository.UpdateUserParams{
		PasswordHash: &passwordHash,
	}); err != nil {
		return err
	}

	// The credential changed: every session everywhere must re-login.
	// This is part of the reset, not cleanup, so its failure fails the
	// operation.
	revoked, err := u.refreshRepo.DeleteByUserID(ctx, consumed.UserID.Hex())
	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens after password reset: %w", err)
	}

	u.logger.Info().
		Str("user_id", consumed.UserID.Hex()).
		Int64("revoked_refresh_tokens", revoked).
		Msg("password reset completed")

	return nil
}
