package security

import (
	"github.com/matthewhartstonge/argon2"
)

// HashPassword derives an argon2id encoded hash from a plaintext password.
// The output embeds the salt and parameters, so equal inputs produce
// different hashes; only VerifyPassword can compare them.
func HashPassword(password string) (string, error) {
	cfg := argon2.DefaultConfig()

	encoded, err := cfg.HashEncoded([]byte(password))
	if err != nil {
		return "", err
	}

	return string(encoded), nil
}

// VerifyPassword compares a plaintext password against an argon2id encoded
// hash. A malformed stored hash is returned as an error, not a mismatch:
// it indicates corrupted data rather than bad credentials.
func VerifyPassword(password, encodedHash string) (bool, error) {
	return argon2.VerifyEncoded([]byte(password), []byte(encodedHash))
}
