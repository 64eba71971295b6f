package usecase

import "errors"

// Error taxonomy surfaced to the transport layer. Credential failures are
// deliberately indistinguishable between "unknown principal" and "wrong
// password" so callers cannot enumerate accounts.
var (
	ErrEmailAlreadyExists    = errors.New("email already exists")
	ErrUsernameAlreadyExists = errors.New("username already exists")
	ErrValidation            = errors.New("invalid registration request")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountNotEnabled     = errors.New("account is not enabled")
	ErrTokenInvalid          = errors.New("token is invalid")
	ErrTokenExpired          = errors.New("token has expired")
	ErrUserNotFound          = errors.New("user not found")
	ErrProviderUnavailable   = errors.New("identity provider unavailable")
)
