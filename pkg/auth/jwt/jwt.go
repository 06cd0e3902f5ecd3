// Package jwt issues and verifies the HS256 access tokens handed out by
// the login route and required on protected routes.
//
// Tokens carry the account username as "sub", the granted roles as an
// ordered "authorities" array, and "iat"/"exp" in whole seconds. No state
// is kept on the server, so any token signed with the configured secret
// is accepted until it expires.
package jwt

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/rollcall/pkg/auth"
	"github.com/rhuss/rollcall/pkg/debug"
)

// MinSecretLength is the minimum HMAC key size in bytes (256 bits).
const MinSecretLength = 32

var (
	// ErrInvalidToken is returned for any token that fails verification.
	// The underlying cause is wrapped.
	ErrInvalidToken = errors.New("invalid token")

	// ErrWeakSecret is returned when the signing secret is shorter than MinSecretLength.
	ErrWeakSecret = fmt.Errorf("signing secret must be at least %d bytes", MinSecretLength)
)

// Config holds the codec configuration.
type Config struct {
	// Secret is the raw HMAC-SHA256 key. Never logged.
	Secret []byte

	// TTL is the token lifetime. Required.
	TTL time.Duration

	// Issuer is written to and required in the "iss" claim. Empty disables it.
	Issuer string

	// Leeway tolerates clock skew when checking expiry. Zero means a token
	// is invalid from the instant it expires.
	Leeway time.Duration

	// Now is the clock used by Authenticate. Defaults to time.Now.
	Now func() time.Time
}

// Codec signs and verifies access tokens.
type Codec struct {
	secret []byte
	ttl    time.Duration
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// claims is the token payload.
type claims struct {
	Authorities []string `json:"authorities"`
	jwtlib.RegisteredClaims
}

// New creates a codec. The secret is copied.
func New(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("token ttl must be > 0, got %s", cfg.TTL)
	}
	if cfg.Leeway < 0 {
		return nil, fmt.Errorf("token leeway must be >= 0, got %s", cfg.Leeway)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Codec{
		secret: append([]byte(nil), cfg.Secret...),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		leeway: cfg.Leeway,
		now:    cfg.Now,
	}, nil
}

// DecodeSecret decodes a base64 secret in standard or URL alphabet,
// padded or not.
func DecodeSecret(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("secret is not valid base64")
}

// TTL returns the configured token lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for subject with the given authorities, issued at now.
// It returns the compact token and its expiry instant.
func (c *Codec) Issue(subject string, authorities []string, now time.Time) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("token subject is required")
	}

	// NumericDate carries whole seconds: iat rounds down and exp rounds up so
	// the token never expires before now+ttl.
	iat := now.UTC().Truncate(time.Second)
	exp := now.UTC().Add(c.ttl)
	if t := exp.Truncate(time.Second); !t.Equal(exp) {
		exp = t.Add(time.Second)
	}

	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims{
		Authorities: append([]string{}, authorities...),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwtlib.NewNumericDate(iat),
			ExpiresAt: jwtlib.NewNumericDate(exp),
		},
	})

	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}

	debug.Log("token", "issued", "subject", subject, "expires_at", exp)
	return signed, exp, nil
}

// Verify checks the signature, algorithm, structure, and expiry of token at
// instant now and returns the identity it carries. Every failure wraps
// ErrInvalidToken.
func (c *Codec) Verify(token string, now time.Time) (*auth.Identity, error) {
	var cl claims
	parsed, err := jwtlib.ParseWithClaims(token, &cl, func(*jwtlib.Token) (interface{}, error) {
		return c.secret, nil
	}, c.parserOptions(now)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if cl.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	id := &auth.Identity{
		Subject:     cl.Subject,
		Authorities: cl.Authorities,
		ExpiresAt:   cl.ExpiresAt.Time.UTC(),
	}
	if cl.IssuedAt != nil {
		id.IssuedAt = cl.IssuedAt.Time.UTC()
	}
	return id, nil
}

// parserOptions pins the algorithm and clock for one verification.
func (c *Codec) parserOptions(now time.Time) []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithStrictDecoding(),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(func() time.Time { return now }),
	}
	if c.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(c.issuer))
	}
	if c.leeway > 0 {
		opts = append(opts, jwtlib.WithLeeway(c.leeway))
	}
	return opts
}

// Authenticate extracts a bearer token from the Authorization header and
// verifies it.
//
// Decision outcomes:
//   - Abstain: no Authorization header or not a Bearer scheme
//   - No: bearer token present but empty or invalid
//   - Yes: valid token with populated Identity
func (c *Codec) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	scheme, tokenStr, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return auth.AuthResult{
			Decision: auth.No,
			Err:      fmt.Errorf("%w: empty bearer token", ErrInvalidToken),
		}
	}

	id, err := c.Verify(tokenStr, c.now())
	if err != nil {
		debug.Log("token", "verification failed", "error", err)
		return auth.AuthResult{Decision: auth.No, Err: err}
	}

	return auth.AuthResult{Decision: auth.Yes, Identity: id}
}
