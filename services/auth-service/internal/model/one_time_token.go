package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// TokenKind separates the two single-use flows. A token issued for one flow
// must never be consumable by the other.
type TokenKind string

const (
	TokenKindEmailVerification TokenKind = "email_verification"
	TokenKindPasswordReset     TokenKind = "password_reset"
)

// OneTimeToken is a single-use credential gating a side-effecting flow.
// Consumption is a read-and-delete, so a token value can succeed at most
// once; at most one unconsumed token per (user, kind) exists at a time.
type OneTimeToken struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Token     string        `bson:"token"`
	UserID    bson.ObjectID `bson:"user_id"`
	Kind      TokenKind     `bson:"kind"`
	ExpiresAt time.Time     `bson:"expires_at"`
	CreatedAt time.Time     `bson:"created_at"`
}

// Expired reports whether the token is past its expiry.
func (t *OneTimeToken) Expired() bool {
	return time.Now().After(t.ExpiresAt)
}
