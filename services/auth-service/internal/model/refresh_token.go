package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// RefreshToken is an opaque long-lived grant used to mint new access tokens
// without re-presenting credentials. Rows are deleted on redemption (when
// rotation is enabled), logout, bulk revocation and expiry sweeps.
type RefreshToken struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Token     string        `bson:"token"`
	UserID    bson.ObjectID `bson:"user_id"`
	ExpiresAt time.Time     `bson:"expires_at"`
	CreatedAt time.Time     `bson:"created_at"`
}

// Expired reports whether the token is past its expiry.
func (t *RefreshToken) Expired() bool {
	return time.Now().After(t.ExpiresAt)
}
