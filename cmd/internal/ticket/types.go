package ticket

import "time"

// PaymentStatus is the backend's view of an invoice.
type PaymentStatus string

const (
	StatusPaid    PaymentStatus = "paid"
	StatusPending PaymentStatus = "pending"
	StatusExpired PaymentStatus = "expired"
)

// Ticket binds one renewal request to a Lightning invoice. It is created
// server-side and never mutated client-side, only replaced wholesale by a
// fresh creation.
type Ticket struct {
	TicketID   string     `json:"ticket_id"`
	LnInvoice  string     `json:"ln_invoice"`
	AmountSats int64      `json:"amount_sats"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// Operation describes a service operation (e.g. driver_license_renewal)
// with its price in satoshis.
type Operation struct {
	ID             int            `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Price          int64          `json:"price"`
	RequiredFields map[string]any `json:"required_fields"`
}

// Detail is a stored ticket as returned by the list/get endpoints.
type Detail struct {
	ID            string            `json:"id"`
	OperationID   int               `json:"operation_id"`
	OperationName string            `json:"operation_name"`
	FormData      map[string]string `json:"form_data"`
	LnInvoice     string            `json:"ln_invoice"`
	AmountSats    int64             `json:"amount_sats"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
	CreatedAt     time.Time         `json:"created_at"`
}

// List is a page of tickets with the unpaginated total.
type List struct {
	Tickets []Detail `json:"tickets"`
	Total   int      `json:"total"`
}

type confirmPaymentResponse struct {
	Status PaymentStatus `json:"status"`
}
