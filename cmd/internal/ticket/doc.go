// Package ticket is the thin request layer for the DETRAN-SP renewal
// service: operation lookup, ticket creation, and payment confirmation.
//
// Credentials are injected by the session manager. Authenticated calls
// retry exactly once after a successful token refresh when the backend
// answers 401; a second 401 surfaces ErrUnauthenticated.
package ticket
