// Command server runs the rollcall authentication server.
//
// Configuration is read from a YAML file and ROLLCALL_* environment
// variables; see pkg/config. The config file path may be given with -config.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/rollcall/pkg/auth"
	"github.com/rhuss/rollcall/pkg/auth/jwt"
	"github.com/rhuss/rollcall/pkg/auth/password"
	"github.com/rhuss/rollcall/pkg/config"
	"github.com/rhuss/rollcall/pkg/debug"
	"github.com/rhuss/rollcall/pkg/login"
	"github.com/rhuss/rollcall/pkg/observability"
	"github.com/rhuss/rollcall/pkg/storage/memory"
	"github.com/rhuss/rollcall/pkg/storage/postgres"
	"github.com/rhuss/rollcall/pkg/transport"
	transporthttp "github.com/rhuss/rollcall/pkg/transport/http"
)

// generatedPasswordBytes is the entropy of a generated admin password.
const generatedPasswordBytes = 18

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// accountStore is what the server needs from a storage backend.
type accountStore interface {
	login.AccountStore
	transport.HealthChecker
	io.Closer
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level)

	ctx := context.Background()

	secret, err := jwt.DecodeSecret(cfg.Auth.Token.Secret)
	if err != nil {
		return fmt.Errorf("decoding token secret: %w", err)
	}
	codec, err := jwt.New(jwt.Config{
		Secret: secret,
		TTL:    cfg.Auth.Token.TTL,
		Issuer: cfg.Auth.Token.Issuer,
		Leeway: cfg.Auth.Token.Leeway,
	})
	if err != nil {
		return fmt.Errorf("creating token codec: %w", err)
	}

	hasher, err := password.NewHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("creating password hasher: %w", err)
	}

	limiter, err := auth.NewKeyedLimiter(auth.LimitConfig{
		Capacity:       cfg.Auth.RateLimit.Capacity,
		RefillTokens:   cfg.Auth.RateLimit.RefillTokens,
		RefillInterval: cfg.Auth.RateLimit.RefillInterval,
	})
	if err != nil {
		return fmt.Errorf("creating rate limiter: %w", err)
	}

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := login.New(store, hasher, codec, limiter, login.Config{
		DefaultAuthorities: cfg.Auth.DefaultAuthorities,
	})
	if err != nil {
		return fmt.Errorf("creating login service: %w", err)
	}

	if cfg.Auth.BootstrapAdmin.Enabled {
		if err := bootstrapAdmin(ctx, svc, cfg.Auth.BootstrapAdmin); err != nil {
			return err
		}
	}

	gate := auth.NewGate(auth.GateConfig{
		Limiter:     limiter,
		LoginPath:   cfg.Auth.RateLimit.Path,
		LoginMethod: cfg.Auth.RateLimit.Method,
		Chain: &auth.AuthChain{
			Authenticators:  []auth.Authenticator{codec},
			DefaultDecision: auth.No,
		},
		IsProtected: auth.PathPrefixes(cfg.Auth.ProtectedPrefixes...),
	})

	srv := transporthttp.NewServer(svc,
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithCORS(corsConfig(cfg.Server.CORS)),
		transporthttp.WithMiddleware(observability.MetricsMiddleware, gate.Handler),
	)
	srv.Adapter().AddHealthCheck(store)

	if cfg.Observability.Metrics.Enabled {
		srv.Adapter().Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
		slog.Info("metrics enabled", "path", cfg.Observability.Metrics.Path)
	}

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Type,
		"token_ttl", cfg.Auth.Token.TTL,
		"rate_limit_capacity", cfg.Auth.RateLimit.Capacity,
		"protected_prefixes", cfg.Auth.ProtectedPrefixes,
	)

	return srv.ListenAndServe()
}

// openStore creates the configured account store.
func openStore(ctx context.Context, cfg config.StorageConfig) (accountStore, error) {
	switch cfg.Type {
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres", "max_conns", cfg.Postgres.MaxConns)
		return store, nil
	default:
		slog.Info("storage enabled", "type", "memory")
		return memory.New(), nil
	}
}

// bootstrapAdmin creates the configured admin account if it does not exist.
// Without a configured password a random one is generated and written to
// the password file with mode 0600.
func bootstrapAdmin(ctx context.Context, svc *login.Service, cfg config.BootstrapAdminConfig) error {
	pw := cfg.Password
	generated := false
	if pw == "" {
		var err error
		if pw, err = login.GeneratePassword(generatedPasswordBytes); err != nil {
			return err
		}
		if err := writePasswordFile(cfg.PasswordFile, pw); err != nil {
			return fmt.Errorf("writing admin password file: %w", err)
		}
		generated = true
	}

	created, err := svc.EnsureAdmin(ctx, cfg.Username, pw)
	if err != nil {
		return fmt.Errorf("bootstrapping admin account: %w", err)
	}

	switch {
	case created && generated:
		slog.Info("admin account created", "subject", cfg.Username, "password_file", cfg.PasswordFile)
	case created:
		slog.Info("admin account created", "subject", cfg.Username)
	default:
		if generated {
			// The file would hold a password that does not match the account.
			os.Remove(cfg.PasswordFile)
		}
		slog.Info("admin account already exists", "subject", cfg.Username)
	}
	return nil
}

// writePasswordFile creates path exclusively and writes pw to it.
func writePasswordFile(path, pw string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(pw + "\n")
	return errors.Join(werr, f.Close())
}

// corsConfig maps the configured policy onto the transport middleware,
// keeping its default methods and headers.
func corsConfig(c config.CORSConfig) transport.CORSConfig {
	out := transport.DefaultCORSConfig()
	out.AllowedOrigins = c.AllowedOrigins
	out.AllowCredentials = c.AllowCredentials
	out.MaxAge = c.MaxAge
	return out
}
