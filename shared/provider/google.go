// Package provider implements the federated identity provider client over
// the Google Identity Toolkit API, the backend of Google's hosted email
// and password authentication.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	authtypes "github.com/neighborly/directory-api/services/auth-service/pkg/types"
)

var (
	ErrIdentityCreateFailed = errors.New("failed to create identity at provider")
	ErrIdentityUpdateFailed = errors.New("failed to update identity at provider")
)

// GoogleIdentityProvider talks to the Google Identity Toolkit relying-party
// API. Every call is bounded by the configured timeout so a slow provider
// can never stall a local flow indefinitely.
type GoogleIdentityProvider struct {
	svc       *identitytoolkit.RelyingpartyService
	actionURL string
	timeout   time.Duration
}

// NewGoogleIdentityProvider builds the provider client. actionURL is the
// hosted page that consumes the provider's out-of-band codes.
func NewGoogleIdentityProvider(ctx context.Context, apiKey, actionURL string, timeout time.Duration) (*GoogleIdentityProvider, error) {
	svc, err := identitytoolkit.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &GoogleIdentityProvider{
		svc:       svc.Relyingparty,
		actionURL: actionURL,
		timeout:   timeout,
	}, nil
}

// CreateIdentity registers a new email/password identity at the provider
// and returns the provider's subject id.
func (p *GoogleIdentityProvider) CreateIdentity(ctx context.Context, email, password string) (string, error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	resp, err := p.svc.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIdentityCreateFailed, err)
	}

	return resp.LocalId, nil
}

// LookupByEmail fetches the provider's record for the address, including
// its email-verified flag.
func (p *GoogleIdentityProvider) LookupByEmail(ctx context.Context, email string) (*authtypes.ProviderIdentity, error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	resp, err := p.svc.GetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartyGetAccountInfoRequest{
		Email: []string{email},
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	if len(resp.Users) == 0 {
		return nil, authtypes.ErrIdentityNotFound
	}

	user := resp.Users[0]

	return &authtypes.ProviderIdentity{
		ProviderID:    user.LocalId,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
	}, nil
}

// MarkEmailVerified flips the provider-side verified flag for the subject.
func (p *GoogleIdentityProvider) MarkEmailVerified(ctx context.Context, providerID string) error {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	_, err := p.svc.SetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartySetAccountInfoRequest{
		LocalId:       providerID,
		EmailVerified: true,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIdentityUpdateFailed, err)
	}

	return nil
}

// IssueVerificationLink asks the provider for an out-of-band email
// verification link for the address.
func (p *GoogleIdentityProvider) IssueVerificationLink(ctx context.Context, email string) (string, error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	resp, err := p.svc.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		RequestType: "VERIFY_EMAIL",
		Email:       email,
	}).Context(ctx).Do()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s?mode=verifyEmail&oobCode=%s", p.actionURL, resp.OobCode), nil
}

func (p *GoogleIdentityProvider) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}
