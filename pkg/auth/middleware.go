package auth

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/rhuss/rollcall/pkg/api"
	"github.com/rhuss/rollcall/pkg/debug"
	"github.com/rhuss/rollcall/pkg/observability"
	"github.com/rhuss/rollcall/pkg/transport"
)

// RateLimiter throttles requests per client key.
type RateLimiter interface {
	// TryAcquire consumes one token for key at instant now, or reports
	// false without consuming anything.
	TryAcquire(key string, now time.Time) bool

	// RetryAfter is the wait reported to rejected clients.
	RetryAfter() time.Duration
}

// GateConfig configures the request gate.
type GateConfig struct {
	// Limiter throttles the login route. Nil disables the rate-limit stage.
	Limiter RateLimiter

	// LoginPath and LoginMethod select the requests the limiter applies to.
	LoginPath   string
	LoginMethod string

	// KeyFunc derives the limiter key. Defaults to ClientIP.
	KeyFunc func(*http.Request) string

	// Chain authenticates protected requests. Nil rejects every protected
	// request.
	Chain *AuthChain

	// IsProtected selects the requests that need a valid token.
	// Nil protects nothing.
	IsProtected func(*http.Request) bool

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Gate is the ordered filter chain placed in front of every handler.
// Stage A throttles login attempts, Stage B verifies bearer tokens.
type Gate struct {
	cfg GateConfig
}

// NewGate creates a gate, filling unset config fields with defaults.
func NewGate(cfg GateConfig) *Gate {
	if cfg.LoginMethod == "" {
		cfg.LoginMethod = http.MethodPost
	}
	if cfg.LoginPath != "" {
		cfg.LoginPath = path.Clean(cfg.LoginPath)
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Chain == nil {
		cfg.Chain = &AuthChain{DefaultDecision: No}
	}
	if cfg.IsProtected == nil {
		cfg.IsProtected = func(*http.Request) bool { return false }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gate{cfg: cfg}
}

// Handler wraps next with both stages. The rate-limit stage is outermost,
// so a throttled login never reaches token verification or the handler.
func (g *Gate) Handler(next http.Handler) http.Handler {
	return transport.Chain(g.RateLimitStage, g.TokenStage)(next)
}

// RateLimitStage rejects login attempts once the client's bucket is empty.
// Admitted requests carry the admission mark so the login pipeline does
// not consume a second token.
func (g *Gate) RateLimitStage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.cfg.Limiter == nil || !g.isLoginAttempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := g.cfg.KeyFunc(r)
		if !g.cfg.Limiter.TryAcquire(key, g.cfg.Now()) {
			g.cfg.Logger.Warn("rate limit exceeded",
				"request_id", transport.RequestIDFromContext(r.Context()),
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			observability.RateLimitRejectedTotal.WithLabelValues(g.cfg.LoginPath).Inc()
			observability.LoginAttemptsTotal.WithLabelValues("rate_limited").Inc()
			transport.WriteAPIError(w, api.NewRateLimitedError(RetryAfterSeconds(g.cfg.Limiter.RetryAfter())))
			return
		}

		next.ServeHTTP(w, r.WithContext(MarkAdmitted(r.Context())))
	})
}

// TokenStage requires a valid bearer token on protected requests and
// injects the decoded Identity into the request context.
func (g *Gate) TokenStage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.cfg.IsProtected(r) {
			next.ServeHTTP(w, r)
			return
		}

		result := g.cfg.Chain.Authenticate(r.Context(), r)
		if result.Decision != Yes || result.Identity == nil || result.Identity.Subject == "" {
			outcome := "invalid"
			if result.Decision == No && result.Err == ErrUnauthenticated {
				outcome = "missing"
			}
			observability.TokenVerificationsTotal.WithLabelValues(outcome).Inc()
			g.cfg.Logger.Debug("authentication failed",
				"request_id", transport.RequestIDFromContext(r.Context()),
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"error", result.Err,
			)
			w.Header().Set("WWW-Authenticate", "Bearer")
			transport.WriteAPIError(w, api.NewUnauthorizedError("Authentication required"))
			return
		}

		observability.TokenVerificationsTotal.WithLabelValues("valid").Inc()
		debug.Log("auth", "authenticated", "subject", result.Identity.Subject, "path", r.URL.Path)

		next.ServeHTTP(w, r.WithContext(SetIdentity(r.Context(), result.Identity)))
	})
}

func (g *Gate) isLoginAttempt(r *http.Request) bool {
	return r.Method == g.cfg.LoginMethod && path.Clean(r.URL.Path) == g.cfg.LoginPath
}

// RequireAuthority returns middleware that answers 403 when the identity
// placed in the context by the token stage lacks the given authority.
// Requests without any identity get 401.
func RequireAuthority(authority string) transport.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			if id == nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				transport.WriteAPIError(w, api.NewUnauthorizedError("Authentication required"))
				return
			}
			if !id.HasAuthority(authority) {
				transport.WriteAPIError(w, api.NewForbiddenError("Access denied"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of the request's remote address.
// Forwarding headers are ignored; deployments behind a proxy supply their
// own GateConfig.KeyFunc.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// PathPrefixes returns a matcher for requests whose cleaned path equals one
// of the prefixes or lies below it.
func PathPrefixes(prefixes ...string) func(*http.Request) bool {
	cleaned := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		cleaned = append(cleaned, path.Clean(p))
	}
	return func(r *http.Request) bool {
		p := path.Clean(r.URL.Path)
		for _, prefix := range cleaned {
			if prefix == "/" || p == prefix || strings.HasPrefix(p, prefix+"/") {
				return true
			}
		}
		return false
	}
}

// RetryAfterSeconds rounds d up to whole seconds, never below one.
func RetryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
