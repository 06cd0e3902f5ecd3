package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/rhuss/rollcall/pkg/api"
	"github.com/rhuss/rollcall/pkg/auth"
	"github.com/rhuss/rollcall/pkg/debug"
	"github.com/rhuss/rollcall/pkg/transport"
)

// RegisteredMessage is the body of a successful registration.
const RegisteredMessage = "Admin created successfully"

// Adapter serves the authentication API over HTTP.
// It routes requests to the AccountService and serializes responses.
type Adapter struct {
	accounts    transport.AccountService
	health      []transport.HealthChecker
	mux         *http.ServeMux
	middlewares []transport.Middleware
	config      Config

	// methods lists the registered methods per path for 405 answers.
	methods map[string][]string
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64

	// KeyFunc derives the rate-limit key passed to Login. Defaults to auth.ClientIP.
	KeyFunc func(*http.Request) string

	// HealthTimeout bounds each health check (default 2s).
	HealthTimeout time.Duration
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize:   1 << 20, // 1 MB
		KeyFunc:       auth.ClientIP,
		HealthTimeout: 2 * time.Second,
	}
}

// NewAdapter creates an HTTP adapter for the given AccountService.
// Middleware wraps the whole router in the given order, so the first
// middleware sees every request first, including unknown paths.
func NewAdapter(accounts transport.AccountService, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = auth.ClientIP
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = DefaultConfig().HealthTimeout
	}

	a := &Adapter{
		accounts:    accounts,
		mux:         http.NewServeMux(),
		middlewares: middlewares,
		config:      cfg,
		methods:     make(map[string][]string),
	}

	a.Handle("POST /api/auth/login", http.HandlerFunc(a.handleLogin))
	a.Handle("POST /api/auth/register", http.HandlerFunc(a.handleRegister))
	a.Handle("GET /api/auth/me", http.HandlerFunc(a.handleMe))
	a.Handle("GET /healthz", http.HandlerFunc(a.handleHealth))
	a.mux.HandleFunc("/", a.handleFallback)

	return a
}

// Handle mounts an additional handler, such as the metrics endpoint or
// the record handlers guarded by the request gate.
func (a *Adapter) Handle(pattern string, h http.Handler) {
	a.mux.Handle(pattern, h)
	if method, p, ok := strings.Cut(pattern, " "); ok && !strings.Contains(p, "{") {
		a.methods[p] = append(a.methods[p], method)
		if method == http.MethodGet {
			a.methods[p] = append(a.methods[p], http.MethodHead)
		}
	}
}

// AddHealthCheck registers a dependency checked by GET /healthz.
func (a *Adapter) AddHealthCheck(hc transport.HealthChecker) {
	a.health = append(a.health, hc)
}

// Handler returns the http.Handler for this adapter with all middleware
// applied. Use this to integrate with an http.Server or test with httptest.
func (a *Adapter) Handler() http.Handler {
	return transport.Chain(a.middlewares...)(a.mux)
}

// handleLogin handles POST /api/auth/login.
func (a *Adapter) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}

	resp, err := a.accounts.Login(r.Context(), a.config.KeyFunc(r), req.Username, req.Password)
	if err != nil {
		transport.WriteAPIError(w, APIErrorFrom(err))
		return
	}

	transport.WriteJSON(w, http.StatusOK, resp)
}

// handleRegister handles POST /api/auth/register.
func (a *Adapter) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}

	if _, err := a.accounts.Register(r.Context(), req.Username, req.Password); err != nil {
		transport.WriteAPIError(w, APIErrorFrom(err))
		return
	}

	transport.WriteJSON(w, http.StatusCreated, api.MessageResponse{Message: RegisteredMessage})
}

// handleMe handles GET /api/auth/me. It relies on the request gate having
// placed the caller's identity in the context.
func (a *Adapter) handleMe(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		transport.WriteAPIError(w, APIErrorFrom(auth.ErrUnauthenticated))
		return
	}

	authorities := id.Authorities
	if authorities == nil {
		authorities = []string{}
	}
	transport.WriteJSON(w, http.StatusOK, api.IdentityResponse{
		Username:    id.Subject,
		Authorities: authorities,
		IssuedAt:    id.IssuedAt,
		ExpiresAt:   id.ExpiresAt,
	})
}

// handleHealth handles GET /healthz.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.config.HealthTimeout)
	defer cancel()

	for _, hc := range a.health {
		if err := hc.HealthCheck(ctx); err != nil {
			transport.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleFallback answers 405 for registered paths and 404 for everything else.
func (a *Adapter) handleFallback(w http.ResponseWriter, r *http.Request) {
	if methods, ok := a.methods[r.URL.Path]; ok {
		allowed := slices.Clone(methods)
		slices.Sort(allowed)
		w.Header().Set("Allow", strings.Join(slices.Compact(allowed), ", "))
		transport.WriteAPIError(w, api.NewMethodNotAllowedError(r.Method, r.URL.Path))
		return
	}
	transport.WriteAPIError(w, api.NewNotFoundError("No route for "+r.Method+" "+r.URL.Path))
}

// decodeJSON reads a JSON body into v, writing an error response and
// returning false on failure.
func (a *Adapter) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			debug.Log("transport", "rejected content type", "path", r.URL.Path, "content_type", ct)
			transport.WriteErrorResponse(w,
				api.NewValidationError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return false
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewValidationError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return false
		}
		debug.Log("transport", "invalid JSON body", "path", r.URL.Path, "error", err)
		transport.WriteAPIError(w, api.NewValidationError("body", "invalid JSON body"))
		return false
	}
	return true
}
