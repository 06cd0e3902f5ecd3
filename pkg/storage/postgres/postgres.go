// Package postgres provides a PostgreSQL account store.
// It uses pgx/v5 for connection pooling and embedded SQL migrations for
// the schema.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/rollcall/pkg/api"
	"github.com/rhuss/rollcall/pkg/debug"
	"github.com/rhuss/rollcall/pkg/storage"
)

// uniqueViolation is the SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

// Store is a PostgreSQL-backed account store.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// FindByUsername returns the account with the given username, or
// storage.ErrNotFound.
func (s *Store) FindByUsername(ctx context.Context, username string) (*api.Account, error) {
	var acct api.Account
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, authorities, created_at
		FROM accounts
		WHERE username = $1
	`, username).Scan(&acct.ID, &acct.Username, &acct.PasswordHash, &acct.Authorities, &acct.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("querying account: %w", err)
	}

	acct.CreatedAt = acct.CreatedAt.UTC()
	return &acct, nil
}

// CreateAccount inserts acct and fills in its ID and creation time.
// Returns storage.ErrConflict if the username is taken.
func (s *Store) CreateAccount(ctx context.Context, acct *api.Account) error {
	authorities := acct.Authorities
	if authorities == nil {
		authorities = []string{}
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO accounts (username, password_hash, authorities)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, acct.Username, acct.PasswordHash, authorities).Scan(&acct.ID, &acct.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			debug.Log("storage", "duplicate username", "username", acct.Username)
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting account: %w", err)
	}

	acct.CreatedAt = acct.CreatedAt.UTC()
	return nil
}

// HealthCheck verifies the database connection is functional.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation.
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
