package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/neighborly/directory-api/services/auth-service/internal/config"
	"github.com/neighborly/directory-api/services/auth-service/internal/model"
	"github.com/neighborly/directory-api/services/auth-service/internal/repository"
	authtypes "github.com/neighborly/directory-api/services/auth-service/pkg/types"
	"github.com/neighborly/directory-api/shared/auth"
	"github.com/neighborly/directory-api/shared/security"
)

// AuthUsecase defines the interface for authentication-related use cases.
type AuthUsecase interface {
	Register(ctx context.Context, params RegisterParams) (*model.User, error)
	Login(ctx context.Context, params LoginParams) (*authtypes.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*authtypes.Tokens, error)
	Logout(ctx context.Context, refreshToken string) error
}

// RegisterParams defines the parameters for user registration.
type RegisterParams struct {
	Username         string
	Email            string
	Password         string
	Role             model.Role
	Type             model.AccountType
	OrganizationName string
	Description      string
	Website          string
}

// LoginParams defines the parameters for user login.
type LoginParams struct {
	Email    string
	Password string
}

type authUsecase struct {
	userRepo       repository.UserRepository
	refreshRepo    repository.RefreshTokenRepository
	provider       IdentityProvider
	verification   VerificationUsecase
	jwtAuth        auth.JWTAuthenticator
	logger         *zerolog.Logger
	authServiceCfg *config.AuthServiceConfig
}

// NewAuthUsecase creates a new instance of AuthUsecase. The provider may be
// nil when the service runs in local mode.
func NewAuthUsecase(
	userRepo repository.UserRepository,
	refreshRepo repository.RefreshTokenRepository,
	provider IdentityProvider,
	verification VerificationUsecase,
	jwtAuth auth.JWTAuthenticator,
	logger *zerolog.Logger,
	authServiceCfg *config.AuthServiceConfig,
) AuthUsecase {
	return &authUsecase{
		userRepo:       userRepo,
		refreshRepo:    refreshRepo,
		provider:       provider,
		verification:   verification,
		jwtAuth:        jwtAuth,
		logger:         logger,
		authServiceCfg: authServiceCfg,
	}
}

func (u *authUsecase) Register(ctx context.Context, params RegisterParams) (*model.User, error) {
	if params.Role == "" {
		params.Role = model.RoleUser
	}

	if params.Type == model.AccountOrganization && strings.TrimSpace(params.OrganizationName) == "" {
		return nil, fmt.Errorf("%w: organizations must have an organization name", ErrValidation)
	}
	if params.Type != model.AccountIndividual && params.Type != model.AccountOrganization {
		return nil, fmt.Errorf("%w: unknown account type %q", ErrValidation, params.Type)
	}

	if _, err := u.userRepo.GetUserByEmail(ctx, params.Email); err == nil {
		return nil, ErrEmailAlreadyExists
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	if _, err := u.userRepo.GetUserByUsername(ctx, params.Username); err == nil {
		return nil, ErrUsernameAlreadyExists
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	user := &model.User{
		Username:         params.Username,
		Email:            params.Email,
		Role:             params.Role,
		Type:             params.Type,
		OrganizationName: params.OrganizationName,
		Description:      params.Description,
		Website:          params.Website,
		Verified:         false,
		Enabled:          false,
	}

	switch u.authServiceCfg.Mode {
	case config.AuthModeFederated:
		// The provider must confirm identity creation before anything is
		// written locally; an unconfirmed create is a retryable failure,
		// not a partial registration.
		providerID, err := u.provider.CreateIdentity(ctx, params.Email, params.Password)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		user.ExternalID = &providerID
	default:
		passwordHash, err := security.HashPassword(params.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = passwordHash
	}

	user, err := u.userRepo.CreateUser(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}

	// The account is committed; link delivery is best effort and can be
	// retried through the resend operation.
	if err := u.verification.ResendVerification(ctx, user.Email); err != nil {
		u.logger.Error().Err(err).Str("email", user.Email).Msg("failed to send verification link")
	}

	return user, nil
}

func (u *authUsecase) Login(ctx context.Context, params LoginParams) (*authtypes.Tokens, error) {
	user, err := u.userRepo.GetUserByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	switch u.authServiceCfg.Mode {
	case config.AuthModeFederated:
		user, err = u.reconcileFederated(ctx, user)
		if err != nil {
			return nil, err
		}
	default:
		if ok, err := security.VerifyPassword(params.Password, user.PasswordHash); err != nil {
			return nil, err
		} else if !ok {
			return nil, ErrInvalidCredentials
		}
	}

	if !user.Enabled {
		// Re-issue the verification link so the caller can complete the
		// flow; the login itself still fails.
		if err := u.verification.ResendVerification(ctx, user.Email); err != nil {
			u.logger.Error().Err(err).Str("email", user.Email).Msg("failed to re-send verification link")
		}
		return nil, ErrAccountNotEnabled
	}

	return u.createTokenPair(ctx, user)
}

// reconcileFederated resolves verification-state drift between the local
// row and the provider. The provider is authoritative for "was the email
// link clicked"; the local row stays authoritative for access control.
func (u *authUsecase) reconcileFederated(ctx context.Context, user *model.User) (*model.User, error) {
	identity, err := u.provider.LookupByEmail(ctx, user.Email)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if user.ExternalID == nil {
		updated, err := u.userRepo.UpdateUser(ctx, user.ID.Hex(), repository.UpdateUserParams{
			ExternalID: &identity.ProviderID,
		})
		if err != nil {
			return nil, err
		}
		user = updated
	}

	if identity.EmailVerified && !user.Verified {
		verified, enabled := true, true
		updated, err := u.userRepo.UpdateUser(ctx, user.ID.Hex(), repository.UpdateUserParams{
			Verified: &verified,
			Enabled:  &enabled,
		})
		if err != nil {
			return nil, err
		}
		u.logger.Info().Str("user_id", user.ID.Hex()).Msg("reconciled verification state from provider")
		user = updated
	}

	return user, nil
}

func (u *authUsecase) Refresh(ctx context.Context, refreshToken string) (*authtypes.Tokens, error) {
	var (
		stored *model.RefreshToken
		err    error
	)

	if u.authServiceCfg.RefreshRotation {
		// Consuming is the atomic decision point: of any concurrent
		// redeemers of the same token exactly one gets the row.
		stored, err = u.refreshRepo.ConsumeToken(ctx, refreshToken)
	} else {
		stored, err = u.refreshRepo.GetToken(ctx, refreshToken)
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	if stored.Expired() {
		if !u.authServiceCfg.RefreshRotation {
			if err := u.refreshRepo.DeleteToken(ctx, refreshToken); err != nil {
				u.logger.Error().Err(err).Msg("failed to delete expired refresh token")
			}
		}
		return nil, ErrTokenExpired
	}

	// Always re-read the user so the new access token carries the current
	// role, never stale claims.
	user, err := u.userRepo.GetUser(ctx, stored.UserID.Hex())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	if u.authServiceCfg.RefreshRotation {
		return u.createTokenPair(ctx, user)
	}

	accessToken, err := u.issueAccessToken(user)
	if err != nil {
		return nil, err
	}

	return &authtypes.Tokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(u.authServiceCfg.Token.AccessTokenExpiresIn.Seconds()),
	}, nil
}

func (u *authUsecase) Logout(ctx context.Context, refreshToken string) error {
	// Only the refresh token dies here. Outstanding access tokens stay
	// valid until natural expiry; that statelessness is deliberate.
	err := u.refreshRepo.DeleteToken(ctx, refreshToken)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Already gone; logout is idempotent.
		return nil
	}

	return err
}

func (u *authUsecase) createTokenPair(ctx context.Context, user *model.User) (*authtypes.Tokens, error) {
	accessToken, err := u.issueAccessToken(user)
	if err != nil {
		return nil, err
	}

	opaque, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}

	refreshToken := &model.RefreshToken{
		Token:     opaque,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(u.authServiceCfg.Token.RefreshTokenExpiresIn),
	}

	if _, err := u.refreshRepo.CreateToken(ctx, refreshToken); err != nil {
		return nil, err
	}

	return &authtypes.Tokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken.Token,
		TokenType:    "Bearer",
		ExpiresIn:    int64(u.authServiceCfg.Token.AccessTokenExpiresIn.Seconds()),
	}, nil
}

func (u *authUsecase) issueAccessToken(user *model.User) (string, error) {
	now := time.Now()
	claims := authtypes.AccessTokenClaims{
		UserID: user.ID.Hex(),
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			Issuer:    u.authServiceCfg.Token.Issuer,
			Audience:  jwt.ClaimStrings{u.authServiceCfg.Token.Issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(u.authServiceCfg.Token.AccessTokenExpiresIn)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	return u.jwtAuth.GenerateToken(claims, u.authServiceCfg.Token.AccessTokenSecret)
}
