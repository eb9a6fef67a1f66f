// Package stub is an in-memory reference backend implementing the renewal
// service's wire contract: auth (register/login/refresh), operations,
// tickets, and payment confirmation.
//
// It exists for local development and end-to-end tests; it holds no real
// user data and verifies passwords in plaintext. Error bodies follow the
// production service's envelope: {"detail": <string or {"error": ...}>}.
//
// Payment settlement is simulated: tests flip invoices with MarkPaid and
// MarkExpired, and a "pay after N confirmations" mode drives happy-path
// polling without a Lightning node.
package stub
