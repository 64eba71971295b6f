package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-secret"

func testClaims(ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "directory-api",
		Audience:  jwt.ClaimStrings{"directory-api"},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func TestValidateTokenRoundTrip(t *testing.T) {
	a := NewJWTAuthenticator("directory-api", "directory-api")

	tokenStr, err := a.GenerateToken(testClaims(time.Hour), testSecret)
	require.NoError(t, err)

	var parsed jwt.RegisteredClaims
	err = a.ValidateTokenWithClaims(tokenStr, testSecret, &parsed)
	require.NoError(t, err)
	require.Equal(t, "alice", parsed.Subject)
	require.WithinDuration(t, parsed.IssuedAt.Add(time.Hour), parsed.ExpiresAt.Time, time.Second)
}

func TestValidateTokenExpired(t *testing.T) {
	a := NewJWTAuthenticator("directory-api", "directory-api")

	tokenStr, err := a.GenerateToken(testClaims(-time.Minute), testSecret)
	require.NoError(t, err)

	err = a.ValidateTokenWithClaims(tokenStr, testSecret, &jwt.RegisteredClaims{})
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateTokenForeignKey(t *testing.T) {
	a := NewJWTAuthenticator("directory-api", "directory-api")

	tokenStr, err := a.GenerateToken(testClaims(time.Hour), "some-other-secret")
	require.NoError(t, err)

	err = a.ValidateTokenWithClaims(tokenStr, testSecret, &jwt.RegisteredClaims{})
	require.ErrorIs(t, err, ErrTokenSignature)
}

func TestValidateTokenTampered(t *testing.T) {
	a := NewJWTAuthenticator("directory-api", "directory-api")

	tokenStr, err := a.GenerateToken(testClaims(time.Hour), testSecret)
	require.NoError(t, err)

	tampered := tokenStr[:len(tokenStr)-2] + "xx"
	err = a.ValidateTokenWithClaims(tampered, testSecret, &jwt.RegisteredClaims{})
	require.ErrorIs(t, err, ErrTokenSignature)
}

func TestValidateTokenMalformed(t *testing.T) {
	a := NewJWTAuthenticator("directory-api", "directory-api")

	err := a.ValidateTokenWithClaims("not-a-jwt-at-all", testSecret, &jwt.RegisteredClaims{})
	require.ErrorIs(t, err, ErrTokenMalformed)
}
