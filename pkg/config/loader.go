package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/rollcall/pkg/debug"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, ROLLCALL_CONFIG env, ./config.yaml, /etc/rollcall/config.yaml)
//  3. ROLLCALL_* environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "loaded config file", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. ROLLCALL_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/rollcall/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("ROLLCALL_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/rollcall/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// envOverrides maps ROLLCALL_* variables onto config fields.
var envOverrides = []struct {
	name  string
	apply func(cfg *Config, v string) error
}{
	{"ROLLCALL_PORT", func(c *Config, v string) error { return setInt(&c.Server.Port, v) }},
	{"ROLLCALL_CORS_ALLOWED_ORIGINS", func(c *Config, v string) error { c.Server.CORS.AllowedOrigins = splitList(v); return nil }},
	{"ROLLCALL_TOKEN_SECRET", func(c *Config, v string) error { c.Auth.Token.Secret = v; return nil }},
	{"ROLLCALL_TOKEN_SECRET_FILE", func(c *Config, v string) error { c.Auth.Token.SecretFile = v; return nil }},
	{"ROLLCALL_TOKEN_TTL", func(c *Config, v string) error { return setDuration(&c.Auth.Token.TTL, v) }},
	{"ROLLCALL_TOKEN_ISSUER", func(c *Config, v string) error { c.Auth.Token.Issuer = v; return nil }},
	{"ROLLCALL_RATE_LIMIT_CAPACITY", func(c *Config, v string) error { return setInt(&c.Auth.RateLimit.Capacity, v) }},
	{"ROLLCALL_RATE_LIMIT_REFILL_TOKENS", func(c *Config, v string) error { return setInt(&c.Auth.RateLimit.RefillTokens, v) }},
	{"ROLLCALL_RATE_LIMIT_REFILL_INTERVAL", func(c *Config, v string) error { return setDuration(&c.Auth.RateLimit.RefillInterval, v) }},
	{"ROLLCALL_PROTECTED_PREFIXES", func(c *Config, v string) error { c.Auth.ProtectedPrefixes = splitList(v); return nil }},
	{"ROLLCALL_BCRYPT_COST", func(c *Config, v string) error { return setInt(&c.Auth.BcryptCost, v) }},
	{"ROLLCALL_BOOTSTRAP_ADMIN", func(c *Config, v string) error { return setBool(&c.Auth.BootstrapAdmin.Enabled, v) }},
	{"ROLLCALL_ADMIN_USERNAME", func(c *Config, v string) error { c.Auth.BootstrapAdmin.Username = v; return nil }},
	{"ROLLCALL_ADMIN_PASSWORD", func(c *Config, v string) error { c.Auth.BootstrapAdmin.Password = v; return nil }},
	{"ROLLCALL_ADMIN_PASSWORD_FILE", func(c *Config, v string) error { c.Auth.BootstrapAdmin.PasswordFile = v; return nil }},
	{"ROLLCALL_STORAGE", func(c *Config, v string) error { c.Storage.Type = v; return nil }},
	{"ROLLCALL_POSTGRES_DSN", func(c *Config, v string) error { c.Storage.Postgres.DSN = v; return nil }},
	{"ROLLCALL_METRICS_ENABLED", func(c *Config, v string) error { return setBool(&c.Observability.Metrics.Enabled, v) }},
}

// applyEnvOverrides applies every set ROLLCALL_* variable.
// Unparseable values are reported together.
func applyEnvOverrides(cfg *Config) error {
	var errs []error
	for _, o := range envOverrides {
		v := os.Getenv(o.name)
		if v == "" {
			continue
		}
		if err := o.apply(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.name, err))
			continue
		}
		debug.Log("config", "env override applied", "name", o.name)
	}
	return errors.Join(errs...)
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

// splitList splits a comma-separated list, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// auth.token.secret_file -> auth.token.secret
	if cfg.Auth.Token.SecretFile != "" && cfg.Auth.Token.Secret == "" {
		val, err := readSecretFile(cfg.Auth.Token.SecretFile)
		if err != nil {
			return fmt.Errorf("auth.token.secret_file: %w", err)
		}
		cfg.Auth.Token.Secret = val
	}

	// storage.postgres.dsn_file -> storage.postgres.dsn
	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	// auth.bootstrap_admin.password_file -> auth.bootstrap_admin.password.
	// A missing file is not an error: the server writes a generated password there.
	admin := &cfg.Auth.BootstrapAdmin
	if admin.Enabled && admin.PasswordFile != "" && admin.Password == "" {
		val, err := readSecretFile(admin.PasswordFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return fmt.Errorf("auth.bootstrap_admin.password_file: %w", err)
		default:
			admin.Password = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
