// Package session implements Renova's client-side authentication session.
//
// It owns the access/refresh token pair for the current citizen, keeps it in
// a durable local store so it survives process restarts, and exposes
// credential injection for outbound requests.
//
// Access tokens are opaque to this package except for a best-effort peek at
// the JWT expiry claim, used to refresh proactively instead of running into
// a 401 mid-flow. A failed refresh always forces a local logout so the
// client never holds a stale access token.
package session
