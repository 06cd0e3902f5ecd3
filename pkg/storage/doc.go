// Package storage holds what the account store implementations share:
// the sentinel errors callers match with errors.Is.
//
// Store implementations (memory, postgres) satisfy the login.AccountStore
// interface defined in pkg/login and the transport.HealthChecker interface
// used by the health endpoint. This package contains only shared types,
// not the interfaces themselves.
package storage
