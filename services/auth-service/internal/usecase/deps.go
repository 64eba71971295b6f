package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	authtypes "github.com/neighborly/directory-api/services/auth-service/pkg/types"
)

// ErrIdentityNotFound is returned by IdentityProvider.LookupByEmail when
// the provider has no record for the address.
var ErrIdentityNotFound = authtypes.ErrIdentityNotFound

// IdentityProvider is the external system of record for federated
// credentials and email-verification state. Every call crosses the network
// and must be treated as fallible; implementations bound each call with a
// timeout so the coordinator never blocks indefinitely.
type IdentityProvider interface {
	CreateIdentity(ctx context.Context, email, password string) (string, error)
	LookupByEmail(ctx context.Context, email string) (*authtypes.ProviderIdentity, error)
	MarkEmailVerified(ctx context.Context, providerID string) error
	IssueVerificationLink(ctx context.Context, email string) (string, error)
}

// Notifier delivers one-time links to the user. Content rendering and
// transport live behind this boundary.
type Notifier interface {
	SendVerificationEmail(email, link string) error
	SendPasswordResetEmail(email, link string) error
}

// newOpaqueToken returns a 256-bit random token encoded as hex. Used for
// refresh tokens and one-time tokens; never for anything signed.
func newOpaqueToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
