// Package config provides unified configuration for the rollcall server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (ROLLCALL_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the rollcall server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 10s
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 1 MiB
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig holds the cross-origin policy for browser clients.
// An empty origin list disables CORS headers.
type CORSConfig struct {
	AllowedOrigins   []string      `yaml:"allowed_origins"`   // default: [http://localhost:4200]
	AllowCredentials bool          `yaml:"allow_credentials"` // default: true
	MaxAge           time.Duration `yaml:"max_age"`           // default: 10m
}

// AuthConfig holds token, rate limit and account settings.
type AuthConfig struct {
	Token              TokenConfig          `yaml:"token"`
	RateLimit          RateLimitConfig      `yaml:"rate_limit"`
	ProtectedPrefixes  []string             `yaml:"protected_prefixes"`
	DefaultAuthorities []string             `yaml:"default_authorities"`
	BcryptCost         int                  `yaml:"bcrypt_cost"` // default: 10
	BootstrapAdmin     BootstrapAdminConfig `yaml:"bootstrap_admin"`
}

// TokenConfig holds access token settings.
type TokenConfig struct {
	Secret     string        `yaml:"secret"`      // base64, at least 256 bits
	SecretFile string        `yaml:"secret_file"` // _file variant for secret
	TTL        time.Duration `yaml:"ttl"`         // default: 1h
	Issuer     string        `yaml:"issuer"`      // default: "rollcall"
	Leeway     time.Duration `yaml:"leeway"`      // default: 0
}

// RateLimitConfig holds the login throttle settings.
type RateLimitConfig struct {
	Capacity       int           `yaml:"capacity"`        // default: 5
	RefillTokens   int           `yaml:"refill_tokens"`   // default: 5
	RefillInterval time.Duration `yaml:"refill_interval"` // default: 60s
	Path           string        `yaml:"path"`            // default: "/api/auth/login"
	Method         string        `yaml:"method"`          // default: "POST"
}

// BootstrapAdminConfig controls creation of the first admin account at startup.
// When Password is empty a random one is generated and written to PasswordFile.
type BootstrapAdminConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Username     string `yaml:"username"` // default: "admin"
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"`
}

// StorageConfig holds account storage settings.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "memory" or "postgres", default: "memory"
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: true
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LoggingConfig holds log level and debug category settings.
// ROLLCALL_LOG_LEVEL and ROLLCALL_DEBUG take precedence at startup.
type LoggingConfig struct {
	Level string `yaml:"level"` // default: "INFO"
	Debug string `yaml:"debug"` // comma-separated debug categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodySize:     1 << 20,
			CORS: CORSConfig{
				AllowedOrigins:   []string{"http://localhost:4200"},
				AllowCredentials: true,
				MaxAge:           10 * time.Minute,
			},
		},
		Auth: AuthConfig{
			Token: TokenConfig{
				TTL:    time.Hour,
				Issuer: "rollcall",
			},
			RateLimit: RateLimitConfig{
				Capacity:       5,
				RefillTokens:   5,
				RefillInterval: time.Minute,
				Path:           "/api/auth/login",
				Method:         "POST",
			},
			ProtectedPrefixes:  []string{"/api/students", "/api/auth/me"},
			DefaultAuthorities: []string{"ROLE_ADMIN"},
			BcryptCost:         10,
			BootstrapAdmin: BootstrapAdminConfig{
				Username: "admin",
			},
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns:       10,
				MigrateOnStart: true,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}
