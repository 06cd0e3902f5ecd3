// Package integration provides integration tests for the rollcall API.
//
// Tests run against the production handler stack (metrics, request gate,
// login service, in-memory store) served by net/http/httptest.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/rhuss/rollcall/pkg/api"
	"github.com/rhuss/rollcall/pkg/auth"
	"github.com/rhuss/rollcall/pkg/auth/jwt"
	"github.com/rhuss/rollcall/pkg/auth/password"
	"github.com/rhuss/rollcall/pkg/login"
	"github.com/rhuss/rollcall/pkg/observability"
	"github.com/rhuss/rollcall/pkg/storage/memory"
	"github.com/rhuss/rollcall/pkg/transport"
	transporthttp "github.com/rhuss/rollcall/pkg/transport/http"
)

// clientHeader selects the rate-limit bucket so tests do not share one.
const clientHeader = "X-Test-Client"

// testEnv holds the shared server for all integration tests.
var testEnv *TestEnvironment

// TestEnvironment holds the rollcall server under test.
type TestEnvironment struct {
	Server *httptest.Server
	Store  *memory.Store
}

// TestMain starts the rollcall server before running tests.
func TestMain(m *testing.M) {
	testEnv = setupTestEnvironment()
	code := m.Run()
	testEnv.Teardown()
	os.Exit(code)
}

// clientKey buckets requests by the test client header, falling back to
// the remote address.
func clientKey(r *http.Request) string {
	if v := r.Header.Get(clientHeader); v != "" {
		return v
	}
	return auth.ClientIP(r)
}

// setupTestEnvironment wires the server the way cmd/server does.
func setupTestEnvironment() *TestEnvironment {
	hasher, err := password.NewHasher(bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("creating hasher: %v", err))
	}
	codec, err := jwt.New(jwt.Config{
		Secret: []byte("integration-secret-0123456789abcdef"),
		TTL:    time.Hour,
		Issuer: "rollcall",
	})
	if err != nil {
		panic(fmt.Sprintf("creating codec: %v", err))
	}
	limiter, err := auth.NewKeyedLimiter(auth.DefaultLimitConfig())
	if err != nil {
		panic(fmt.Sprintf("creating limiter: %v", err))
	}

	store := memory.New()
	svc, err := login.New(store, hasher, codec, limiter, login.Config{})
	if err != nil {
		panic(fmt.Sprintf("creating login service: %v", err))
	}

	gate := auth.NewGate(auth.GateConfig{
		Limiter:   limiter,
		LoginPath: "/api/auth/login",
		KeyFunc:   clientKey,
		Chain: &auth.AuthChain{
			Authenticators:  []auth.Authenticator{codec},
			DefaultDecision: auth.No,
		},
		IsProtected: auth.PathPrefixes("/api/students", "/api/auth/me"),
	})

	srv := transporthttp.NewServer(svc,
		transporthttp.WithKeyFunc(clientKey),
		transporthttp.WithMiddleware(observability.MetricsMiddleware, gate.Handler),
	)
	a := srv.Adapter()
	a.AddHealthCheck(store)
	a.Handle("GET /metrics", promhttp.Handler())
	a.Handle("GET /api/students", auth.RequireAuthority(login.DefaultAuthority)(http.HandlerFunc(listStudents)))

	return &TestEnvironment{
		Server: httptest.NewServer(a.Handler()),
		Store:  store,
	}
}

// listStudents stands in for a protected record endpoint.
func listStudents(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	transport.WriteJSON(w, http.StatusOK, map[string]any{
		"requestedBy": id.Subject,
		"students":    []string{},
	})
}

// Teardown stops the server.
func (env *TestEnvironment) Teardown() {
	if env.Server != nil {
		env.Server.Close()
	}
}

// BaseURL returns the rollcall server base URL.
func (env *TestEnvironment) BaseURL() string {
	return env.Server.URL
}

// --- HTTP helpers ---

var clientSeq atomic.Int64

// newClientID returns a rate-limit key no other test uses.
func newClientID() string {
	return fmt.Sprintf("client-%d", clientSeq.Add(1))
}

var userSeq atomic.Int64

// newUsername returns a username no other test uses.
func newUsername() string {
	return fmt.Sprintf("user%d", userSeq.Add(1))
}

// postJSON sends a POST request with JSON body from the given client.
func postJSON(t *testing.T, client, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, testEnv.BaseURL()+path, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(clientHeader, client)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// getWithToken sends a GET request with an optional bearer token.
func getWithToken(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, testEnv.BaseURL()+path, nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// register creates an account and fails the test unless it returns 201.
func register(t *testing.T, username, pw string) {
	t.Helper()
	resp := postJSON(t, newClientID(), "/api/auth/register", api.RegisterRequest{Username: username, Password: pw})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d: %s", username, resp.StatusCode, readBody(t, resp))
	}
	resp.Body.Close()
}

// loginToken logs in and returns the issued token.
func loginToken(t *testing.T, username, pw string) string {
	t.Helper()
	resp := postJSON(t, newClientID(), "/api/auth/login", api.LoginRequest{Username: username, Password: pw})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", username, resp.StatusCode, readBody(t, resp))
	}
	var tok api.TokenResponse
	decodeJSON(t, resp, &tok)
	return tok.Token
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	return string(body)
}

// decodeJSON reads the response body and decodes it into the target.
func decodeJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decoding JSON: %v", err)
	}
}

// decodeError decodes an error body and returns its error object.
func decodeError(t *testing.T, resp *http.Response) *api.APIError {
	t.Helper()
	var errResp api.ErrorResponse
	decodeJSON(t, resp, &errResp)
	if errResp.Error == nil {
		t.Fatal("error object is nil")
	}
	return errResp.Error
}
