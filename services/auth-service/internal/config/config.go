package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// AuthMode selects the credential policy for the deployment. Exactly one
// policy is active at a time; flows never mix the two.
type AuthMode string

const (
	// AuthModeLocal stores an argon2 password hash and verifies it locally.
	AuthModeLocal AuthMode = "local"
	// AuthModeFederated delegates credential storage and email-link
	// verification to the external identity provider.
	AuthModeFederated AuthMode = "federated"
)

// TokenConfig holds signing secrets and lifetimes for every token kind.
type TokenConfig struct {
	Issuer                      string        `env:"AUTH_TOKEN_ISSUER"                  envDefault:"directory-api"`
	AccessTokenSecret           string        `env:"AUTH_ACCESS_TOKEN_SECRET"`
	AccessTokenExpiresIn        time.Duration `env:"AUTH_ACCESS_TOKEN_EXPIRES_IN"       envDefault:"1h"`
	RefreshTokenExpiresIn       time.Duration `env:"AUTH_REFRESH_TOKEN_EXPIRES_IN"      envDefault:"168h"`
	VerificationTokenExpiresIn  time.Duration `env:"AUTH_VERIFICATION_TOKEN_EXPIRES_IN" envDefault:"24h"`
	PasswordResetTokenExpiresIn time.Duration `env:"AUTH_RESET_TOKEN_EXPIRES_IN"        envDefault:"1h"`
}

// ProviderConfig holds the federated identity provider settings.
type ProviderConfig struct {
	APIKey    string        `env:"AUTH_PROVIDER_API_KEY"`
	ActionURL string        `env:"AUTH_PROVIDER_ACTION_URL" envDefault:"https://neighborly.dev/auth/action"`
	Timeout   time.Duration `env:"AUTH_PROVIDER_TIMEOUT"    envDefault:"5s"`
}

// AuthServiceConfig is the full configuration of the auth service, parsed
// from environment variables.
type AuthServiceConfig struct {
	ServiceName     string        `env:"AUTH_SERVICE_NAME"      envDefault:"auth-service"`
	HTTPAddr        string        `env:"AUTH_HTTP_ADDR"         envDefault:":8081"`
	MongoURI        string        `env:"AUTH_MONGO_URI"         envDefault:"mongodb://localhost:27017"`
	MongoDatabase   string        `env:"AUTH_MONGO_DATABASE"    envDefault:"directory"`
	Mode            AuthMode      `env:"AUTH_MODE"              envDefault:"local"`
	RefreshRotation bool          `env:"AUTH_REFRESH_ROTATION"  envDefault:"true"`
	SweepInterval   time.Duration `env:"AUTH_SWEEP_INTERVAL"    envDefault:"5m"`
	PrettyLogs      bool          `env:"AUTH_PRETTY_LOGS"       envDefault:"false"`

	AppVerificationURL  string `env:"APP_VERIFICATION_URL"   envDefault:"https://api.neighborly.dev/api/auth/verify"`
	AppPasswordResetURL string `env:"APP_PASSWORD_RESET_URL" envDefault:"https://neighborly.dev/reset-password"`

	ConsulAddr string `env:"CONSUL_HTTP_ADDR"`

	Token    TokenConfig
	Provider ProviderConfig
}

// NewAuthServiceConfig parses the service configuration from environment
// variables and validates it, exiting on failure.
func NewAuthServiceConfig(logger *zerolog.Logger) *AuthServiceConfig {
	cfg, err := env.ParseAs[AuthServiceConfig]()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse environment variables")
	}

	if err := cfg.validate(); err != nil {
		logger.Fatal().Err(err).Msg("failed to validate auth service configuration")
	}

	return &cfg
}

// validate checks the parts that have no safe default.
func (c *AuthServiceConfig) validate() error {
	if c.Token.AccessTokenSecret == "" {
		return fmt.Errorf("missing AUTH_ACCESS_TOKEN_SECRET environment variable")
	}
	if c.Mode != AuthModeLocal && c.Mode != AuthModeFederated {
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeLocal, AuthModeFederated, c.Mode)
	}
	if c.Mode == AuthModeFederated && c.Provider.APIKey == "" {
		return fmt.Errorf("missing AUTH_PROVIDER_API_KEY environment variable in federated mode")
	}

	return nil
}
