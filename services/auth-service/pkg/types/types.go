// Package types holds the value objects exchanged between the auth service
// and its callers.
package types

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// ErrIdentityNotFound reports that the federated provider has no record
// for the requested principal.
var ErrIdentityNotFound = errors.New("identity not found at provider")

// ProviderIdentity is the federated provider's view of a principal.
type ProviderIdentity struct {
	ProviderID    string
	Email         string
	EmailVerified bool
}

// AccessTokenClaims is the self-contained payload of an access token.
// Subject carries the username; UserID and Role are custom claims so
// downstream services never need a directory lookup to authorize a call.
type AccessTokenClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens is the credential pair returned by login and refresh.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}
