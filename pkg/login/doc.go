// Package login implements the authentication pipeline behind the login
// and register routes.
//
// A login attempt passes three checks in a fixed order: the per-client
// rate limit, the credential check, and token issuance. A throttled
// attempt never reaches the account store, and an unknown username is
// indistinguishable from a wrong password in both the returned error and
// the time spent.
package login
