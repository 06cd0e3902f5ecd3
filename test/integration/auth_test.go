package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/rhuss/rollcall/pkg/api"
	"github.com/rhuss/rollcall/pkg/transport"
)

func TestRegisterLoginAndAccess(t *testing.T) {
	username := newUsername()
	register(t, username, "s3cret!")
	token := loginToken(t, username, "s3cret!")

	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Fatalf("token has %d segments, want 3", len(parts))
	}

	resp := getWithToken(t, "/api/auth/me", token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}
	var me api.IdentityResponse
	decodeJSON(t, resp, &me)
	if me.Username != username {
		t.Errorf("me.username = %q, want %q", me.Username, username)
	}
	if !me.ExpiresAt.After(me.IssuedAt) {
		t.Errorf("expiresAt %v not after issuedAt %v", me.ExpiresAt, me.IssuedAt)
	}

	resp = getWithToken(t, "/api/students", token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("students: expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}
	var list struct {
		RequestedBy string `json:"requestedBy"`
	}
	decodeJSON(t, resp, &list)
	if list.RequestedBy != username {
		t.Errorf("requestedBy = %q, want %q", list.RequestedBy, username)
	}
}

func TestProtectedRouteRejections(t *testing.T) {
	username := newUsername()
	register(t, username, "s3cret!")
	token := loginToken(t, username, "s3cret!")

	tests := []struct {
		name  string
		path  string
		token string
	}{
		{"no token", "/api/students", ""},
		{"garbage token", "/api/students", "not-a-jwt"},
		{"tampered signature", "/api/students", tamper(token)},
		{"nested path", "/api/students/42/grades", ""},
		{"me without token", "/api/auth/me", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := getWithToken(t, tt.path, tt.token)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", resp.StatusCode)
			}
			if got := resp.Header.Get("WWW-Authenticate"); got != "Bearer" {
				t.Errorf("WWW-Authenticate = %q, want %q", got, "Bearer")
			}
			if got := decodeError(t, resp); got.Code != api.ErrorCodeUnauthorized {
				t.Errorf("error.code = %q, want %q", got.Code, api.ErrorCodeUnauthorized)
			}
		})
	}
}

func TestLoginDoesNotRevealUsernames(t *testing.T) {
	username := newUsername()
	register(t, username, "s3cret!")

	wrong := postJSON(t, newClientID(), "/api/auth/login", api.LoginRequest{Username: username, Password: "wrong!!"})
	unknown := postJSON(t, newClientID(), "/api/auth/login", api.LoginRequest{Username: newUsername(), Password: "wrong!!"})

	if wrong.StatusCode != http.StatusUnauthorized || unknown.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both, got %d and %d", wrong.StatusCode, unknown.StatusCode)
	}
	if a, b := readBody(t, wrong), readBody(t, unknown); a != b {
		t.Errorf("bodies differ:\n%s\n%s", a, b)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	username := newUsername()
	register(t, username, "s3cret!")

	resp := postJSON(t, newClientID(), "/api/auth/register", api.RegisterRequest{Username: username, Password: "other1!"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if got := decodeError(t, resp); got.Message != "Username already exists" {
		t.Errorf("error.message = %q", got.Message)
	}

	// The original password still works.
	loginToken(t, username, "s3cret!")
}

func TestRequestIDEchoed(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, testEnv.BaseURL()+"/healthz", nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set(transport.RequestIDHeader, "trace-abc")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get(transport.RequestIDHeader); got != "trace-abc" {
		t.Errorf("%s = %q, want %q", transport.RequestIDHeader, got, "trace-abc")
	}
}

// tamper replaces the last signature character with a different one.
func tamper(token string) string {
	last := token[len(token)-1]
	repl := byte('A')
	if last == 'A' {
		repl = 'E'
	}
	return token[:len(token)-1] + string(repl)
}

func TestAliceScenario(t *testing.T) {
	client := newClientID()

	resp := postJSON(t, client, "/api/auth/register", api.RegisterRequest{Username: "alice", Password: "password1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register alice: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, client, "/api/auth/login", api.LoginRequest{Username: "alice", Password: "password1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login alice: expected 200, got %d", resp.StatusCode)
	}
	var tok api.TokenResponse
	decodeJSON(t, resp, &tok)
	if tok.Token == "" {
		t.Error("token is empty")
	}

	wrong := postJSON(t, client, "/api/auth/login", api.LoginRequest{Username: "alice", Password: "wrong"})
	ghost := postJSON(t, client, "/api/auth/login", api.LoginRequest{Username: "ghost", Password: "anything"})
	if wrong.StatusCode != http.StatusUnauthorized || ghost.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both, got %d and %d", wrong.StatusCode, ghost.StatusCode)
	}
	if a, b := readBody(t, wrong), readBody(t, ghost); a != b {
		t.Errorf("bodies differ:\n%s\n%s", a, b)
	}

	resp = postJSON(t, client, "/api/auth/register", api.RegisterRequest{Username: "alice", Password: "password1"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("register alice again: expected 409, got %d", resp.StatusCode)
	}
	if got := decodeError(t, resp); got.Code != api.ErrorCodeConflict {
		t.Errorf("error.code = %q, want %q", got.Code, api.ErrorCodeConflict)
	}
}
