// Package authgate provides a stateless-token authentication engine with JWT
// access tokens, a Redis-backed session registry, silent mid-request token
// renewal, and an email one-time-code flow that gates sensitive account
// mutations behind short-lived verification tokens.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authgate is the public surface. It exposes [Engine], [Builder], [Config],
// the collaborator contracts ([AccountProvider], [Hasher], [Mailer]), and
// value types. Token encoding lives in the token sub-package, refresh records
// in session, and the HTTP gate in middleware; nothing under those packages
// reaches back into authgate except middleware, which consumes the Engine as
// a caller would.
//
// # Statelessness contract
//
// Access tokens are self-contained: [Engine.Authenticate] on an unexpired
// token completes without a Redis round-trip. Redis is consulted only when a
// token has expired (renewal), on refresh, and for the one-time-code stores.
// Login, Refresh, and the verification operations are allowed one Redis
// round-trip each.
package authgate
