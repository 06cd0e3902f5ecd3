package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/rhuss/rollcall/pkg/auth/jwt"
)

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}

	for i, o := range c.Server.CORS.AllowedOrigins {
		if !validOrigin(o) {
			errs = append(errs, fmt.Errorf("server.cors.allowed_origins[%d] must be \"*\" or scheme://host[:port], got %q", i, o))
		}
	}
	if c.Server.CORS.MaxAge < 0 {
		errs = append(errs, fmt.Errorf("server.cors.max_age must be >= 0, got %s", c.Server.CORS.MaxAge))
	}

	errs = append(errs, c.validateToken()...)

	rl := c.Auth.RateLimit
	if rl.Capacity < 1 {
		errs = append(errs, fmt.Errorf("auth.rate_limit.capacity must be >= 1, got %d", rl.Capacity))
	}
	if rl.RefillTokens < 1 {
		errs = append(errs, fmt.Errorf("auth.rate_limit.refill_tokens must be >= 1, got %d", rl.RefillTokens))
	}
	if rl.RefillInterval <= 0 {
		errs = append(errs, fmt.Errorf("auth.rate_limit.refill_interval must be > 0, got %s", rl.RefillInterval))
	}
	if !strings.HasPrefix(rl.Path, "/") {
		errs = append(errs, fmt.Errorf("auth.rate_limit.path must start with \"/\", got %q", rl.Path))
	}
	if rl.Method == "" {
		errs = append(errs, errors.New("auth.rate_limit.method is required"))
	}

	for i, p := range c.Auth.ProtectedPrefixes {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("auth.protected_prefixes[%d] must start with \"/\", got %q", i, p))
		}
	}

	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.Auth.BcryptCost))
	}

	if admin := c.Auth.BootstrapAdmin; admin.Enabled {
		if admin.Username == "" {
			errs = append(errs, errors.New("auth.bootstrap_admin.username is required when bootstrap_admin is enabled"))
		}
		if admin.Password == "" && admin.PasswordFile == "" {
			errs = append(errs, errors.New("auth.bootstrap_admin.password or auth.bootstrap_admin.password_file is required when bootstrap_admin is enabled"))
		}
	}

	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", c.Observability.Metrics.Path))
	}

	return errors.Join(errs...)
}

func (c *Config) validateToken() []error {
	var errs []error
	tok := c.Auth.Token

	if tok.Secret == "" {
		errs = append(errs, errors.New("auth.token.secret or auth.token.secret_file is required"))
	} else if secret, err := jwt.DecodeSecret(tok.Secret); err != nil {
		errs = append(errs, fmt.Errorf("auth.token.secret: %w", err))
	} else if len(secret) < jwt.MinSecretLength {
		errs = append(errs, fmt.Errorf("auth.token.secret must decode to at least %d bytes, got %d", jwt.MinSecretLength, len(secret)))
	}

	if tok.TTL <= 0 {
		errs = append(errs, fmt.Errorf("auth.token.ttl must be > 0, got %s", tok.TTL))
	}
	if tok.Leeway < 0 {
		errs = append(errs, fmt.Errorf("auth.token.leeway must be >= 0, got %s", tok.Leeway))
	}
	return errs
}

func validOrigin(o string) bool {
	if o == "*" {
		return true
	}
	u, err := url.Parse(o)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return (u.Path == "" || u.Path == "/") && u.RawQuery == "" && u.Fragment == "" && u.User == nil
}
