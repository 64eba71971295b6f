package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neighborly/directory-api/services/auth-service/internal/config"
	"github.com/neighborly/directory-api/services/auth-service/internal/model"
	"github.com/neighborly/directory-api/shared/security"
)

type passwordResetFixture struct {
	userRepo    *fakeUserRepo
	oneTimeRepo *fakeOneTimeRepo
	refreshRepo *fakeRefreshRepo
	notifier    *fakeNotifier
	reset       PasswordResetUsecase
}

func newPasswordResetFixture(t *testing.T) *passwordResetFixture {
	t.Helper()

	cfg := newTestConfig(config.AuthModeLocal)
	userRepo := newFakeUserRepo()
	oneTimeRepo := newFakeOneTimeRepo()
	refreshRepo := newFakeRefreshRepo()
	notifier := newFakeNotifier()

	return &passwordResetFixture{
		userRepo:    userRepo,
		oneTimeRepo: oneTimeRepo,
		refreshRepo: refreshRepo,
		notifier:    notifier,
		reset:       NewPasswordResetUsecase(userRepo, oneTimeRepo, refreshRepo, notifier, newTestLogger(), cfg),
	}
}

func (f *passwordResetFixture) createUser(t *testing.T, ctx context.Context, passwordHash string) *model.User {
	t.Helper()

	user, err := f.userRepo.CreateUser(ctx, &model.User{
		Username:     "alice",
		Email:        "alice@example.test",
		PasswordHash: passwordHash,
		Role:         model.RoleUser,
		Type:         model.AccountIndividual,
		Verified:     true,
		Enabled:      true,
	})
	require.NoError(t, err)

	return user
}

func TestRequestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	ctx := context.Background()
	f := newPasswordResetFixture(t)

	err := f.reset.RequestPasswordReset(ctx, "ghost@example.test")

	require.NoError(t, err)
	assert.Equal(t, 0, f.notifier.sentCount())
}

func TestRequestPasswordReset_FederatedAccountIsSilent(t *testing.T) {
	ctx := context.Background()
	f := newPasswordResetFixture(t)
	f.createUser(t, ctx, "")

	err := f.reset.RequestPasswordReset(ctx, "alice@example.test")

	require.NoError(t, err)
	assert.Equal(t, 0, f.notifier.sentCount())
}

func TestRequestPasswordReset_SendsLink(t *testing.T) {
	ctx := context.Background()
	f := newPasswordResetFixture(t)
	f.createUser(t, ctx, "some-hash")

	require.NoError(t, f.reset.RequestPasswordReset(ctx, "alice@example.test"))

	sent, ok := f.notifier.lastSent()
	require.True(t, ok)
	assert.Equal(t, "alice@example.test", sent.To)
	assert.Equal(t, "password_reset", sent.Kind)
	assert.NotEmpty(t, lastLinkToken(f.notifier))
}

func TestRequestPasswordReset_InvalidatesPreviousToken(t *testing.T) {
	ctx := context.Background()
	f := newPasswordResetFixture(t)
	f.createUser(t, ctx, "some-hash")

	require.NoError(t, f.reset.RequestPasswordReset(ctx, "alice@example.test"))
	first := lastLinkToken(f.notifier)

	require.NoError(t, f.reset.RequestPasswordReset(ctx, "alice@example.test"))
	second := lastLinkToken(f.notifier)
	require.NotEqual(t, first, second)

	err := f.reset.ResetPassword(ctx, first, "brand new password")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	assert.NoError(t, f.reset.ResetPassword(ctx, second, "brand new password"))
}

func TestResetPassword_ShortPassword(t *testing.T) {
	ctx := context.Background()
	f := newPasswordResetFixture(t)

	err := f.reset.ResetPassword(ctx, "any-token", "short")

	assert.ErrorIs(t, err, ErrValidation)
}

func TestResetPassword_UnknownToken(t *testing.T) {
	ctx := context.Background()
	f := newPasswordResetFixture(t)

	err := f.reset.ResetPassword(ctx, "never-issued", "brand new password")

	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	ctx := context.Background()
	f := newPasswordResetFixture(t)
	user := f.createUser(t, ctx, "some-hash")

	_, err := f.oneTimeRepo.CreateToken(ctx, &model.OneTimeToken{
		Token:     "stale-token",
		UserID:    user.ID,
		Kind:      model.TokenKindPasswordReset,
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)

	err = f.reset.ResetPassword(ctx, "stale-token", "brand new password")

	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestResetPassword_SingleUse(t *testing.T) {
	ctx := context.Background()
	f := newPasswordResetFixture(t)
	f.createUser(t, ctx, "some-hash")

	require.NoError(t, f.reset.RequestPasswordReset(ctx, "alice@example.test"))
	token := lastLinkToken(f.notifier)

	require.NoError(t, f.reset.ResetPassword(ctx, token, "brand new password"))

	err := f.reset.ResetPassword(ctx, token, "another password!")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestResetPassword_StoresVerifiableCredential(t *testing.T) {
	ctx := context.Background()
	f := newPasswordResetFixture(t)
	user := f.createUser(t, ctx, "some-hash")

	require.NoError(t, f.reset.RequestPasswordReset(ctx, "alice@example.test"))
	token := lastLinkToken(f.notifier)

	require.NoError(t, f.reset.ResetPassword(ctx, token, "brand new password"))

	reloaded, err := f.userRepo.GetUser(ctx, user.ID.Hex())
	require.NoError(t, err)

	ok, err := security.VerifyPassword("brand new password", reloaded.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResetPassword_RevokesAllRefreshTokens(t *testing.T) {
	ctx := context.Background()
	f := newPasswordResetFixture(t)
	user := f.createUser(t, ctx, "some-hash")

	for _, token := range []string{"session-a", "session-b", "session-c"} {
		_, err := f.refreshRepo.CreateToken(ctx, &model.RefreshToken{
			Token:     token,
			UserID:    user.ID,
			ExpiresAt: time.Now().Add(time.Hour),
		})
		require.NoError(t, err)
	}

	require.NoError(t, f.reset.RequestPasswordReset(ctx, "alice@example.test"))
	token := lastLinkToken(f.notifier)

	require.NoError(t, f.reset.ResetPassword(ctx, token, "brand new password"))

	assert.Equal(t, 0, f.refreshRepo.count())
}
