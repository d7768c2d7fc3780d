package oauthcore

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/oauth-core/instrumentation"
)

// RotationPolicy selects how a refresh token is retired when it is rotated.
type RotationPolicy string

const (
	// RotateInvalidateImmediately deletes the old token synchronously
	// before the replacement is issued.
	RotateInvalidateImmediately RotationPolicy = "invalidate_immediately"

	// RotateWait keeps the old token valid for GraceTTL so a client that
	// already received the new token but hasn't switched yet isn't locked
	// out. The overlap ends the moment the new token is first used.
	RotateWait RotationPolicy = "wait"
)

// Default lifetimes for issued tokens.
const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 182 * 24 * time.Hour
	DefaultGraceTTL        = time.Hour
)

// Config holds the token lifecycle configuration
type Config struct {
	// AccessTokenTTL is how long access tokens remain valid.
	// Default: 1 hour.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is how long refresh tokens remain valid.
	// Default: 182 days.
	RefreshTokenTTL time.Duration

	// RotationPolicy selects the refresh rotation behavior.
	// Default: RotateWait.
	RotationPolicy RotationPolicy

	// GraceTTL is how long a rotated-from token stays usable under
	// RotateWait. Default: 1 hour. Ignored under RotateInvalidateImmediately.
	GraceTTL time.Duration

	// ClockSkewGracePeriod widens expiry checks to tolerate time drift
	// between systems. Default: 0 (exact expiry).
	ClockSkewGracePeriod time.Duration

	// SweepInterval is how often the background sweep removes tokens whose
	// refresh window has closed. Zero disables the timer; the sweep still
	// runs once when StartSweeping is called, and validate/rotate self-clean
	// lazily either way.
	SweepInterval time.Duration

	// RateLimit configures per-client rate limiting on the token endpoint.
	RateLimit RateLimitConfig

	// Generator produces access and refresh token values. Defaults to a
	// cryptographically secure random generator.
	Generator TokenGenerator

	// Now is the time source, injectable for deterministic tests.
	// Defaults to time.Now.
	Now func() time.Time

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// EnableAuditLogging enables security audit logging.
	// Auth events and token operations are logged with PII hashed.
	EnableAuditLogging bool

	// Instrumentation provides OpenTelemetry metrics and tracing (optional)
	Instrumentation *instrumentation.Instrumentation
}

// RateLimitConfig holds token endpoint rate limiting configuration
type RateLimitConfig struct {
	// Rate is requests per second allowed per client_id. Zero disables limiting.
	Rate int

	// Burst is the maximum burst size allowed per client_id.
	Burst int
}

// withDefaults returns a copy of the config with defaults applied.
func (c *Config) withDefaults() *Config {
	cfg := Config{}
	if c != nil {
		cfg = *c
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if cfg.RotationPolicy == "" {
		cfg.RotationPolicy = RotateWait
	}
	if cfg.GraceTTL <= 0 {
		cfg.GraceTTL = DefaultGraceTTL
	}
	if cfg.Generator == nil {
		cfg.Generator = RandomGenerator{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &cfg
}

// validate checks the config for unusable combinations.
func (c *Config) validate() error {
	switch c.RotationPolicy {
	case RotateInvalidateImmediately, RotateWait:
	default:
		return fmt.Errorf("unknown rotation policy: %q", c.RotationPolicy)
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return fmt.Errorf("access token TTL (%v) must be shorter than refresh token TTL (%v)",
			c.AccessTokenTTL, c.RefreshTokenTTL)
	}
	return nil
}
