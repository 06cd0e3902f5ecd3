// Package auth guards the rollcall HTTP surface.
//
// Three pieces live here:
//
//   - [KeyedLimiter]: per-key token buckets that throttle login attempts.
//     Buckets refill continuously and are created on first use.
//   - [AuthChain]: chain-of-responsibility authentication with three-outcome
//     voting. Each authenticator returns Yes (identity found), No
//     (credentials invalid), or Abstain (can't handle). The default decision
//     applies when all authenticators abstain.
//   - [Gate]: the ordered request filter composed ahead of every handler.
//     Stage A throttles the login route; Stage B verifies bearer tokens on
//     protected routes and injects the [Identity] into the request context.
//
// Token encoding lives in the jwt subpackage and password hashing in the
// password subpackage.
package auth
