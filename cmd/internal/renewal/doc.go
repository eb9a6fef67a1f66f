// Package renewal implements the license-renewal transaction as an explicit
// state machine that a view layer merely observes and drives.
//
// The machine owns exactly one transaction at a time: form capture,
// confirmation, ticket creation, Lightning invoice payment, and payment
// confirmation polling. Ticket creation is one-shot (failure is terminal
// for the attempt) while payment confirmation is made to be polled
// (pending and transport failures return to the payment step).
//
// Errors never escape to the view layer as Go errors, except for illegal
// triggers and form validation; everything else lands in State.Err for
// uniform rendering.
package renewal
