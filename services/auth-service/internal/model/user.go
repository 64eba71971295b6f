package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Role enumerates the coarse authorization levels carried in access tokens.
type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
)

// AccountType distinguishes individual principals from organizations.
type AccountType string

const (
	AccountIndividual   AccountType = "individual"
	AccountOrganization AccountType = "organization"
)

// User represents a principal in the directory.
//
// Enabled gates authentication; Verified records that the email address was
// proven reachable. In federated mode the provider is authoritative for the
// latter, the local row for the former, and the two are reconciled at login
// and verification time. ExternalID holds the federated provider's subject
// id when the account was created through the provider.
type User struct {
	ID               bson.ObjectID `bson:"_id,omitempty"`
	Username         string        `bson:"username"`
	Email            string        `bson:"email"`
	PasswordHash     string        `bson:"password_hash,omitempty"`
	Role             Role          `bson:"role"`
	Type             AccountType   `bson:"type"`
	OrganizationName string        `bson:"organization_name,omitempty"`
	Description      string        `bson:"description,omitempty"`
	Website          string        `bson:"website,omitempty"`
	Verified         bool          `bson:"verified"`
	Enabled          bool          `bson:"enabled"`
	ExternalID       *string       `bson:"external_id,omitempty"`
	CreatedAt        time.Time     `bson:"created_at"`
	UpdatedAt        time.Time     `bson:"updated_at"`
}
