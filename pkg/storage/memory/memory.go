// Package memory provides an in-memory account store for tests and
// single-process deployments. Accounts are lost when the process restarts.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rhuss/rollcall/pkg/api"
	"github.com/rhuss/rollcall/pkg/storage"
)

// Store is an in-memory account store keyed by username.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*api.Account
	nextID   int64
	now      func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		accounts: make(map[string]*api.Account),
		now:      time.Now,
	}
}

// FindByUsername returns a copy of the account with the given username,
// or storage.ErrNotFound.
func (s *Store) FindByUsername(_ context.Context, username string) (*api.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[username]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(acct), nil
}

// CreateAccount stores acct, assigning its ID and creation time.
// Returns storage.ErrConflict if the username is taken.
func (s *Store) CreateAccount(_ context.Context, acct *api.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[acct.Username]; exists {
		return storage.ErrConflict
	}

	s.nextID++
	acct.ID = s.nextID
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = s.now().UTC()
	}
	s.accounts[acct.Username] = clone(acct)
	return nil
}

// Len returns the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// HealthCheck always succeeds.
func (s *Store) HealthCheck(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// clone copies an account so callers cannot mutate stored state.
func clone(a *api.Account) *api.Account {
	c := *a
	c.Authorities = slices.Clone(a.Authorities)
	return &c
}
