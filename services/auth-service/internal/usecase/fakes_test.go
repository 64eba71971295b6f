package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/neighborly/directory-api/services/auth-service/internal/config"
	"github.com/neighborly/directory-api/services/auth-service/internal/model"
	"github.com/neighborly/directory-api/services/auth-service/internal/repository"
	authtypes "github.com/neighborly/directory-api/services/auth-service/pkg/types"
)

func newTestConfig(mode config.AuthMode) *config.AuthServiceConfig {
	return &config.AuthServiceConfig{
		ServiceName:     "auth-service",
		Mode:            mode,
		RefreshRotation: true,
		Token: config.TokenConfig{
			Issuer:                      "directory-api",
			AccessTokenSecret:           "test-secret",
			AccessTokenExpiresIn:        time.Hour,
			RefreshTokenExpiresIn:       168 * time.Hour,
			VerificationTokenExpiresIn:  24 * time.Hour,
			PasswordResetTokenExpiresIn: time.Hour,
		},
		AppVerificationURL:  "https://example.test/verify",
		AppPasswordResetURL: "https://example.test/reset",
	}
}

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func updateParams(verified, enabled *bool) repository.UpdateUserParams {
	return repository.UpdateUserParams{Verified: verified, Enabled: enabled}
}

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (r *fakeUserRepo) CreateUser(_ context.Context, user *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return nil, errors.New("duplicate key error")
		}
	}

	user.ID = bson.NewObjectID()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	r.users[user.ID.Hex()] = &stored

	return user, nil
}

func (r *fakeUserRepo) GetUser(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}

	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	return r.findBy(func(u *model.User) bool { return u.Email == email })
}

func (r *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	return r.findBy(func(u *model.User) bool { return u.Username == username })
}

func (r *fakeUserRepo) GetUserByExternalID(_ context.Context, externalID string) (*model.User, error) {
	return r.findBy(func(u *model.User) bool {
		return u.ExternalID != nil && *u.ExternalID == externalID
	})
}

func (r *fakeUserRepo) findBy(match func(*model.User) bool) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if match(user) {
			copied := *user
			return &copied, nil
		}
	}

	return nil, mongo.ErrNoDocuments
}

func (r *fakeUserRepo) UpdateUser(_ context.Context, id string, params repository.UpdateUserParams) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}

	if params.PasswordHash != nil {
		user.PasswordHash = *params.PasswordHash
	}
	if params.Verified != nil {
		user.Verified = *params.Verified
	}
	if params.Enabled != nil {
		user.Enabled = *params.Enabled
	}
	if params.ExternalID != nil {
		user.ExternalID = params.ExternalID
	}
	user.UpdatedAt = time.Now()

	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) ListUsers(_ context.Context, params repository.FilterUsersParams) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var users []*model.User
	for _, user := range r.users {
		if params.Verified != nil && user.Verified != *params.Verified {
			continue
		}
		if params.Enabled != nil && user.Enabled != *params.Enabled {
			continue
		}
		copied := *user
		users = append(users, &copied)
	}

	return users, nil
}

// fakeRefreshRepo is an in-memory RefreshTokenRepository.
type fakeRefreshRepo struct {
	mu     sync.Mutex
	tokens map[string]*model.RefreshToken
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: make(map[string]*model.RefreshToken)}
}

func (r *fakeRefreshRepo) CreateToken(_ context.Context, token *model.RefreshToken) (*model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token.ID = bson.NewObjectID()
	token.CreatedAt = time.Now()

	stored := *token
	r.tokens[token.Token] = &stored

	return token, nil
}

func (r *fakeRefreshRepo) GetToken(_ context.Context, token string) (*model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tokens[token]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}

	copied := *stored
	return &copied, nil
}

func (r *fakeRefreshRepo) ConsumeToken(_ context.Context, token string) (*model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tokens[token]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	delete(r.tokens, token)

	copied := *stored
	return &copied, nil
}

func (r *fakeRefreshRepo) DeleteToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, token)
	return nil
}

func (r *fakeRefreshRepo) DeleteByUserID(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for key, token := range r.tokens {
		if token.UserID.Hex() == userID {
			delete(r.tokens, key)
			deleted++
		}
	}

	return deleted, nil
}

func (r *fakeRefreshRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for key, token := range r.tokens {
		if token.Expired() {
			delete(r.tokens, key)
			deleted++
		}
	}

	return deleted, nil
}

func (r *fakeRefreshRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.tokens)
}

// fakeOneTimeRepo is an in-memory OneTimeTokenRepository.
type fakeOneTimeRepo struct {
	mu     sync.Mutex
	tokens map[string]*model.OneTimeToken
}

func newFakeOneTimeRepo() *fakeOneTimeRepo {
	return &fakeOneTimeRepo{tokens: make(map[string]*model.OneTimeToken)}
}

func (r *fakeOneTimeRepo) CreateToken(_ context.Context, token *model.OneTimeToken) (*model.OneTimeToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token.ID = bson.NewObjectID()
	token.CreatedAt = time.Now()

	stored := *token
	r.tokens[token.Token] = &stored

	return token, nil
}

func (r *fakeOneTimeRepo) ConsumeToken(_ context.Context, token string, kind model.TokenKind) (*model.OneTimeToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tokens[token]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	if stored.Kind != kind {
		return nil, repository.ErrWrongTokenKind
	}
	delete(r.tokens, token)

	copied := *stored
	return &copied, nil
}

func (r *fakeOneTimeRepo) DeleteByUserAndKind(_ context.Context, userID string, kind model.TokenKind) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for key, token := range r.tokens {
		if token.UserID.Hex() == userID && token.Kind == kind {
			delete(r.tokens, key)
			deleted++
		}
	}

	return deleted, nil
}

func (r *fakeOneTimeRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for key, token := range r.tokens {
		if token.Expired() {
			delete(r.tokens, key)
			deleted++
		}
	}

	return deleted, nil
}

// fakeProvider is a configurable in-memory IdentityProvider.
type fakeProvider struct {
	mu                sync.Mutex
	identities        map[string]*authtypes.ProviderIdentity
	createErr         error
	markVerifiedErr   error
	markVerifiedCalls []string
	nextID            int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{identities: make(map[string]*authtypes.ProviderIdentity)}
}

func (p *fakeProvider) CreateIdentity(_ context.Context, email, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.createErr != nil {
		return "", p.createErr
	}

	p.nextID++
	id := fmt.Sprintf("ext-%03d", p.nextID)
	p.identities[email] = &authtypes.ProviderIdentity{
		ProviderID: id,
		Email:      email,
	}

	return id, nil
}

func (p *fakeProvider) LookupByEmail(_ context.Context, email string) (*authtypes.ProviderIdentity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	identity, ok := p.identities[email]
	if !ok {
		return nil, authtypes.ErrIdentityNotFound
	}

	copied := *identity
	return &copied, nil
}

func (p *fakeProvider) MarkEmailVerified(_ context.Context, providerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.markVerifiedCalls = append(p.markVerifiedCalls, providerID)
	if p.markVerifiedErr != nil {
		return p.markVerifiedErr
	}

	for _, identity := range p.identities {
		if identity.ProviderID == providerID {
			identity.EmailVerified = true
		}
	}

	return nil
}

func (p *fakeProvider) IssueVerificationLink(_ context.Context, email string) (string, error) {
	return "https://provider.test/action?mode=verifyEmail&oobCode=code-for-" + email, nil
}

func (p *fakeProvider) setVerified(email string, verified bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if identity, ok := p.identities[email]; ok {
		identity.EmailVerified = verified
	}
}

// fakeNotifier records every email it is asked to deliver.
type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sentEmail
	sendErr error
}

type sentEmail struct {
	To   string
	Link string
	Kind string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{}
}

func (n *fakeNotifier) SendVerificationEmail(email, link string) error {
	return n.record(email, link, "verification")
}

func (n *fakeNotifier) SendPasswordResetEmail(email, link string) error {
	return n.record(email, link, "password_reset")
}

func (n *fakeNotifier) record(email, link, kind string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.sendErr != nil {
		return n.sendErr
	}

	n.sent = append(n.sent, sentEmail{To: email, Link: link, Kind: kind})
	return nil
}

func (n *fakeNotifier) lastSent() (sentEmail, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.sent) == 0 {
		return sentEmail{}, false
	}

	return n.sent[len(n.sent)-1], true
}

func (n *fakeNotifier) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.sent)
}

// lastLinkToken extracts the opaque token from the last delivered link.
func lastLinkToken(n *fakeNotifier) string {
	email, ok := n.lastSent()
	if !ok {
		return ""
	}

	_, token, found := strings.Cut(email.Link, "token=")
	if !found {
		return ""
	}

	return token
}
