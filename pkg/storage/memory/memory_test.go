package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rhuss/rollcall/pkg/api"
	"github.com/rhuss/rollcall/pkg/storage"
)

func makeAccount(username string) *api.Account {
	return &api.Account{
		Username:     username,
		PasswordHash: "$2a$04$hash",
		Authorities:  []string{"ROLE_ADMIN"},
	}
}

func TestCreateAndFind(t *testing.T) {
	s := New()
	ctx := context.Background()

	acct := makeAccount("admin")
	if err := s.CreateAccount(ctx, acct); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if acct.ID != 1 {
		t.Errorf("ID = %d, want 1", acct.ID)
	}
	if acct.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	got, err := s.FindByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("FindByUsername failed: %v", err)
	}
	if got.Username != "admin" {
		t.Errorf("Username = %q, want %q", got.Username, "admin")
	}
	if got.PasswordHash != "$2a$04$hash" {
		t.Errorf("PasswordHash = %q, want %q", got.PasswordHash, "$2a$04$hash")
	}
	if !got.HasAuthority("ROLE_ADMIN") {
		t.Errorf("Authorities = %v, want ROLE_ADMIN", got.Authorities)
	}
}

func TestFindNotFound(t *testing.T) {
	s := New()
	_, err := s.FindByUsername(context.Background(), "ghost")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFindIsCaseSensitive(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.CreateAccount(ctx, makeAccount("admin"))

	if _, err := s.FindByUsername(ctx, "Admin"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateConflict(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateAccount(ctx, makeAccount("admin")); err != nil {
		t.Fatalf("first CreateAccount failed: %v", err)
	}
	err := s.CreateAccount(ctx, makeAccount("admin"))
	if !errors.Is(err, storage.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestReturnedAccountIsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.CreateAccount(ctx, makeAccount("admin"))

	got, _ := s.FindByUsername(ctx, "admin")
	got.Authorities[0] = "ROLE_HACKED"
	got.PasswordHash = "changed"

	again, _ := s.FindByUsername(ctx, "admin")
	if again.Authorities[0] != "ROLE_ADMIN" {
		t.Errorf("stored authorities mutated: %v", again.Authorities)
	}
	if again.PasswordHash != "$2a$04$hash" {
		t.Errorf("stored hash mutated: %q", again.PasswordHash)
	}
}

func TestConcurrentCreateSameUsername(t *testing.T) {
	s := New()
	ctx := context.Background()

	const workers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CreateAccount(ctx, makeAccount("admin"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, storage.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 || conflicts != workers-1 {
		t.Errorf("created = %d, conflicts = %d, want 1 and %d", created, conflicts, workers-1)
	}
}

func TestIDsAreSequential(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		acct := makeAccount(fmt.Sprintf("user%d", i))
		if err := s.CreateAccount(ctx, acct); err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}
		if acct.ID != int64(i) {
			t.Errorf("ID = %d, want %d", acct.ID, i)
		}
	}
}
