package login

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/rhuss/rollcall/pkg/api"
	"github.com/rhuss/rollcall/pkg/auth"
	"github.com/rhuss/rollcall/pkg/observability"
	"github.com/rhuss/rollcall/pkg/storage"
	"github.com/rhuss/rollcall/pkg/transport"
)

// AccountStore looks up and creates accounts.
type AccountStore interface {
	// FindByUsername returns storage.ErrNotFound when no account matches.
	FindByUsername(ctx context.Context, username string) (*api.Account, error)

	// CreateAccount returns storage.ErrConflict when the username is taken.
	// On success it fills in the account ID and creation time.
	CreateAccount(ctx context.Context, acct *api.Account) error
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Matches(plaintext, hash string) bool
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(subject string, authorities []string, now time.Time) (string, time.Time, error)
}

// Config holds the optional service settings.
type Config struct {
	// DefaultAuthorities are granted to every registered account.
	// Defaults to ROLE_ADMIN.
	DefaultAuthorities []string

	Validation api.ValidationConfig

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// DefaultAuthority is granted to registered accounts when none is configured.
const DefaultAuthority = "ROLE_ADMIN"

// dummyPassword is hashed once at construction. Unknown usernames are
// checked against that hash so they cost the same as a wrong password.
const dummyPassword = "rollcall-timing-equalizer"

// Service runs the login and registration pipeline.
type Service struct {
	store       AccountStore
	hasher      PasswordHasher
	tokens      TokenIssuer
	limiter     auth.RateLimiter
	authorities []string
	validation  api.ValidationConfig
	now         func() time.Time
	logger      *slog.Logger
	dummyHash   string
}

var _ transport.AccountService = (*Service)(nil)

// New creates a service. limiter may be nil to disable throttling.
func New(store AccountStore, hasher PasswordHasher, tokens TokenIssuer, limiter auth.RateLimiter, cfg Config) (*Service, error) {
	if store == nil || hasher == nil || tokens == nil {
		return nil, errors.New("login: store, hasher and token issuer are required")
	}
	if len(cfg.DefaultAuthorities) == 0 {
		cfg.DefaultAuthorities = []string{DefaultAuthority}
	}
	if cfg.Validation == (api.ValidationConfig{}) {
		cfg.Validation = api.DefaultValidationConfig()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("login: preparing dummy hash: %w", err)
	}

	return &Service{
		store:       store,
		hasher:      hasher,
		tokens:      tokens,
		limiter:     limiter,
		authorities: slices.Clone(cfg.DefaultAuthorities),
		validation:  cfg.Validation,
		now:         cfg.Now,
		logger:      cfg.Logger,
		dummyHash:   dummy,
	}, nil
}

// Login authenticates username/password for the client identified by
// clientKey and issues an access token.
//
// Unless the request gate already admitted this request, one rate-limit
// token is consumed first; a throttled attempt returns *RateLimitedError
// without touching the store. Unknown usernames and wrong passwords both
// return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, clientKey, username, password string) (*api.TokenResponse, error) {
	now := s.now()

	if s.limiter != nil && !auth.Admitted(ctx) {
		if !s.limiter.TryAcquire(clientKey, now) {
			observability.LoginAttemptsTotal.WithLabelValues("rate_limited").Inc()
			s.logger.Warn("login rate limited", "client", clientKey)
			return nil, &RateLimitedError{RetryAfter: s.limiter.RetryAfter()}
		}
	}

	if apiErr := api.ValidateLogin(&api.LoginRequest{Username: username, Password: password}); apiErr != nil {
		observability.LoginAttemptsTotal.WithLabelValues("invalid_request").Inc()
		return nil, apiErr
	}

	acct, err := s.store.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.hasher.Matches(password, s.dummyHash)
		return nil, s.rejectCredentials(clientKey)
	case err != nil:
		observability.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("finding account: %w", err)
	}

	if !s.hasher.Matches(password, acct.PasswordHash) {
		return nil, s.rejectCredentials(clientKey)
	}

	token, expiresAt, err := s.tokens.Issue(acct.Username, acct.Authorities, now)
	if err != nil {
		observability.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	observability.LoginAttemptsTotal.WithLabelValues("issued").Inc()
	s.logger.Info("login succeeded", "subject", acct.Username, "client", clientKey)

	return &api.TokenResponse{Token: token, ExpiresAt: expiresAt}, nil
}

func (s *Service) rejectCredentials(clientKey string) error {
	observability.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
	s.logger.Info("login failed", "client", clientKey)
	return ErrInvalidCredentials
}

// Register creates an account with the default authorities. It returns an
// *api.APIError for malformed input and ErrUsernameTaken when the username
// exists. Registration is not rate limited.
func (s *Service) Register(ctx context.Context, username, password string) (*api.Account, error) {
	if apiErr := api.ValidateRegister(&api.RegisterRequest{Username: username, Password: password}, s.validation); apiErr != nil {
		observability.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, apiErr
	}

	_, err := s.store.FindByUsername(ctx, username)
	switch {
	case err == nil:
		observability.RegistrationsTotal.WithLabelValues("conflict").Inc()
		return nil, ErrUsernameTaken
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("checking username: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	acct := &api.Account{
		Username:     username,
		PasswordHash: hash,
		Authorities:  slices.Clone(s.authorities),
	}
	if err := s.store.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			observability.RegistrationsTotal.WithLabelValues("conflict").Inc()
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("creating account: %w", err)
	}

	observability.RegistrationsTotal.WithLabelValues("created").Inc()
	s.logger.Info("account registered", "subject", acct.Username, "id", acct.ID)
	return acct, nil
}

// EnsureAdmin registers username with password unless the account already
// exists. It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	_, err := s.store.FindByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("checking admin account: %w", err)
	}

	if _, err := s.Register(ctx, username, password); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GeneratePassword returns a random URL-safe password built from n random bytes.
func GeneratePassword(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
