// Command demo walks through the rollcall authentication core in-process:
// registration, login, token verification, tampering and login throttling.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/rhuss/rollcall/pkg/auth"
	"github.com/rhuss/rollcall/pkg/auth/jwt"
	"github.com/rhuss/rollcall/pkg/auth/password"
	"github.com/rhuss/rollcall/pkg/login"
	"github.com/rhuss/rollcall/pkg/storage/memory"
	transporthttp "github.com/rhuss/rollcall/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "demo failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fmt.Println("=== rollcall authentication core demo ===")
	fmt.Println()

	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	codec, err := jwt.New(jwt.Config{
		Secret: []byte("demo-secret-demo-secret-demo-secret!"),
		TTL:    time.Hour,
		Issuer: "rollcall-demo",
		Now:    clock,
	})
	if err != nil {
		return err
	}
	hasher, err := password.NewHasher(bcrypt.MinCost)
	if err != nil {
		return err
	}
	limiter, err := auth.NewKeyedLimiter(auth.DefaultLimitConfig())
	if err != nil {
		return err
	}
	svc, err := login.New(memory.New(), hasher, codec, limiter, login.Config{Now: clock})
	if err != nil {
		return err
	}

	// 1. Register an admin.
	acct, err := svc.Register(ctx, "admin", "s3cret!")
	if err != nil {
		return err
	}
	fmt.Printf("[1] Registered %q (id %d, authorities %v)\n", acct.Username, acct.ID, acct.Authorities)

	// 2. Log in and show the token.
	tok, err := svc.Login(ctx, "203.0.113.7", "admin", "s3cret!")
	if err != nil {
		return err
	}
	data, _ := json.MarshalIndent(tok, "", "  ")
	fmt.Printf("\n[2] Login response:\n%s\n", data)

	// 3. Verify the token.
	id, err := codec.Verify(tok.Token, now.Add(time.Minute))
	if err != nil {
		return err
	}
	fmt.Printf("\n[3] Verified: subject=%s authorities=%v expires=%s\n",
		id.Subject, id.Authorities, id.ExpiresAt.Format(time.RFC3339))

	// 4. A tampered or expired token is rejected.
	tampered := tok.Token[:len(tok.Token)-1] + "A"
	if tok.Token[len(tok.Token)-1] == 'A' {
		tampered = tok.Token[:len(tok.Token)-1] + "E"
	}
	_, err = codec.Verify(tampered, now)
	fmt.Printf("\n[4] Tampered token: %v\n", err)
	_, err = codec.Verify(tok.Token, tok.ExpiresAt)
	fmt.Printf("    Token at expiry: %v\n", err)

	// 5. Wrong password and unknown user look the same.
	_, errWrong := svc.Login(ctx, "198.51.100.1", "admin", "guess!")
	_, errUnknown := svc.Login(ctx, "198.51.100.1", "nobody", "guess!")
	fmt.Printf("\n[5] Wrong password: %s\n", transporthttp.APIErrorFrom(errWrong).Message)
	fmt.Printf("    Unknown user:   %s\n", transporthttp.APIErrorFrom(errUnknown).Message)

	// 6. Exhaust the login budget for one client.
	fmt.Println("\n[6] Repeated failed logins from 192.0.2.99:")
	for i := 1; i <= 6; i++ {
		_, err := svc.Login(ctx, "192.0.2.99", "admin", "guess!")
		var rl *login.RateLimitedError
		if errors.As(err, &rl) {
			apiErr := transporthttp.APIErrorFrom(err)
			fmt.Printf("    attempt %d: %s (Retry-After %d)\n", i, apiErr.Message, apiErr.RetryAfter)
			continue
		}
		fmt.Printf("    attempt %d: %v\n", i, err)
	}

	// 7. After a full refill interval the client may try again.
	now = now.Add(time.Minute)
	if _, err := svc.Login(ctx, "192.0.2.99", "admin", "s3cret!"); err != nil {
		return err
	}
	fmt.Println("\n[7] One minute later the correct password is accepted again")

	return nil
}
