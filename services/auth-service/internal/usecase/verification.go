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
)

// VerificationUsecase defines the business logic for email verification.
type VerificationUsecase interface {
	// VerifyEmail consumes a verification token and enables the account.
	VerifyEmail(ctx context.Context, token string) (*model.User, error)

	// ResendVerification issues a fresh verification link for the user,
	// invalidating any outstanding one.
	ResendVerification(ctx context.Context, email string) error
}

type verificationUsecase struct {
	userRepo       repository.UserRepository
	tokenRepo      repository.OneTimeTokenRepository
	provider       IdentityProvider
	notifier       Notifier
	logger         *zerolog.Logger
	authServiceCfg *config.AuthServiceConfig
}

// NewVerificationUsecase creates a new instance of VerificationUsecase.
// The provider may be nil when the service runs in local mode.
func NewVerificationUsecase(
	userRepo repository.UserRepository,
	tokenRepo repository.OneTimeTokenRepository,
	provider IdentityProvider,
	notifier Notifier,
	logger *zerolog.Logger,
	authServiceCfg *config.AuthServiceConfig,
) VerificationUsecase {
	return &verificationUsecase{
		userRepo:       userRepo,
		tokenRepo:      tokenRepo,
		provider:       provider,
		notifier:       notifier,
		logger:         logger,
		authServiceCfg: authServiceCfg,
	}
}

func (u *verificationUsecase) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	consumed, err := u.tokenRepo.ConsumeToken(ctx, token, model.TokenKindEmailVerification)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, repository.ErrWrongTokenKind) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	if consumed.Expired() {
		return nil, ErrTokenExpired
	}

	verified, enabled := true, true
	user, err := u.userRepo.UpdateUser(ctx, consumed.UserID.Hex(), repository.UpdateUserParams{
		Verified: &verified,
		Enabled:  &enabled,
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	// Mirror to the provider when the account is federated. The local
	// transition is already committed and stays authoritative for access
	// control, so a mirror failure is reported, never rolled back.
	if user.ExternalID != nil && u.provider != nil {
		if err := u.provider.MarkEmailVerified(ctx, *user.ExternalID); err != nil {
			u.logger.Error().
				Err(err).
				Str("user_id", user.ID.Hex()).
				Msg("failed to mirror email verification to identity provider")
		}
	}

	return user, nil
}

func (u *verificationUsecase) ResendVerification(ctx context.Context, email string) error {
	user, err := u.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrUserNotFound
		}
		return err
	}

	if user.Verified {
		return nil
	}

	link, err := u.verificationLink(ctx, user)
	if err != nil {
		return err
	}

	return u.notifier.SendVerificationEmail(user.Email, link)
}

// verificationLink produces the link to deliver. Federated accounts get the
// provider's own verification link so the click lands on the provider's
// flag; local accounts get a one-time token bound to the verify endpoint.
func (u *verificationUsecase) verificationLink(ctx context.Context, user *model.User) (string, error) {
	if u.authServiceCfg.Mode == config.AuthModeFederated && user.ExternalID != nil {
		link, err := u.provider.IssueVerificationLink(ctx, user.Email)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		return link, nil
	}

	// A new token invalidates every outstanding one of the same kind, so
	// at most one link per user is live at a time.
	if _, err := u.tokenRepo.DeleteByUserAndKind(ctx, user.ID.Hex(), model.TokenKindEmailVerification); err != nil {
		return "", err
	}

	opaque, err := newOpaqueToken()
	if err != nil {
		return "", err
	}

	if _, err := u.tokenRepo.CreateToken(ctx, &model.OneTimeToken{
		Token:     opaque,
		UserID:    user.ID,
		Kind:      model.TokenKindEmailVerification,
		ExpiresAt: time.Now().Add(u.authServiceCfg.Token.VerificationTokenExpiresIn),
	}); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s?token=%s", u.authServiceCfg.AppVerificationURL, opaque), nil
}
