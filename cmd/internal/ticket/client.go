package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"renova/cmd/internal/wire"
)

// Credentials injects the Authorization header and performs token refresh.
// Implemented by the session manager; substituted in tests.
type Credentials interface {
	AuthHeaderContext(ctx context.Context) map[string]string
	RefreshAccessToken(ctx context.Context) error
}

// Client talks to the renewal service. Safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
	creds   Credentials
}

// NewClient builds a Client. creds must not be nil.
func NewClient(baseURL string, timeout time.Duration, creds Credentials, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log,
		creds:   creds,
	}
}

// CreateTicket submits the renewal form and returns the issued ticket with
// its Lightning invoice. The Idempotency-Key header makes a client retry of
// the same logical submission safe.
func (c *Client) CreateTicket(ctx context.Context, operationID int, form map[string]string) (Ticket, error) {
	payload, err := json.Marshal(map[string]any{
		"operation_id": operationID,
		"form_data":    form,
	})
	if err != nil {
		return Ticket{}, err
	}

	extra := map[string]string{
		"Idempotency-Key": uuid.NewString(),
		"Content-Type":    "application/json",
	}

	status, body, err := c.doAuthed(ctx, "create_ticket", http.MethodPost, "/api/v1/tickets", payload, extra)
	if err != nil {
		return Ticket{}, fmt.Errorf("create ticket: %w", err)
	}
	if status < 200 || status >= 300 {
		return Ticket{}, newAPIError(status, body)
	}

	var t Ticket
	if err := json.Unmarshal(body, &t); err != nil {
		return Ticket{}, fmt.Errorf("create ticket: decode: %w", err)
	}
	if t.TicketID == "" || t.LnInvoice == "" {
		return Ticket{}, fmt.Errorf("create ticket: incomplete response")
	}
	return t, nil
}

// ConfirmPayment re-observes the current payment status of a ticket.
// Idempotent from the caller's perspective: repeated calls with the same
// ticket id are safe.
func (c *Client) ConfirmPayment(ctx context.Context, ticketID string) (PaymentStatus, error) {
	path := "/api/v1/tickets/" + url.PathEscape(ticketID) + "/confirm-payment"

	status, body, err := c.doAuthed(ctx, "confirm_payment", http.MethodPost, path, nil, nil)
	if err != nil {
		return "", fmt.Errorf("confirm payment: %w", err)
	}
	if status < 200 || status >= 300 {
		return "", newAPIError(status, body)
	}

	var cp confirmPaymentResponse
	if err := json.Unmarshal(body, &cp); err != nil {
		return "", fmt.Errorf("confirm payment: decode: %w", err)
	}
	if cp.Status == "" {
		return "", fmt.Errorf("confirm payment: empty status")
	}
	return cp.Status, nil
}

// GetOperation fetches one operation. The endpoint is public; no
// credentials are attached.
func (c *Client) GetOperation(ctx context.Context, id int) (Operation, error) {
	status, body, err := c.doPlain(ctx, "get_operation", http.MethodGet,
		"/api/v1/operations/"+strconv.Itoa(id), nil, nil)
	if err != nil {
		return Operation{}, fmt.Errorf("get operation: %w", err)
	}
	if status < 200 || status >= 300 {
		return Operation{}, newAPIError(status, body)
	}

	var op Operation
	if err := json.Unmarshal(body, &op); err != nil {
		return Operation{}, fmt.Errorf("get operation: decode: %w", err)
	}
	return op, nil
}

// ListOperations fetches every available operation.
func (c *Client) ListOperations(ctx context.Context) ([]Operation, error) {
	status, body, err := c.doPlain(ctx, "list_operations", http.MethodGet, "/api/v1/operations", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	if status < 200 || status >= 300 {
		return nil, newAPIError(status, body)
	}

	var ops []Operation
	if err := json.Unmarshal(body, &ops); err != nil {
		return nil, fmt.Errorf("list operations: decode: %w", err)
	}
	return ops, nil
}

// GetTicket fetches one of the citizen's tickets.
func (c *Client) GetTicket(ctx context.Context, ticketID string) (Detail, error) {
	status, body, err := c.doAuthed(ctx, "get_ticket", http.MethodGet,
		"/api/v1/tickets/"+url.PathEscape(ticketID), nil, nil)
	if err != nil {
		return Detail{}, fmt.Errorf("get ticket: %w", err)
	}
	if status < 200 || status >= 300 {
		return Detail{}, newAPIError(status, body)
	}

	var d Detail
	if err := json.Unmarshal(body, &d); err != nil {
		return Detail{}, fmt.Errorf("get ticket: decode: %w", err)
	}
	return d, nil
}

// ListTickets fetches a page of the citizen's tickets. status filters by
// payment status when non-empty; limit defaults server-side when <= 0.
func (c *Client) ListTickets(ctx context.Context, status string, limit, offset int) (List, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/v1/tickets"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	code, body, err := c.doAuthed(ctx, "list_tickets", http.MethodGet, path, nil, nil)
	if err != nil {
		return List{}, fmt.Errorf("list tickets: %w", err)
	}
	if code < 200 || code >= 300 {
		return List{}, newAPIError(code, body)
	}

	var l List
	if err := json.Unmarshal(body, &l); err != nil {
		return List{}, fmt.Errorf("list tickets: decode: %w", err)
	}
	return l, nil
}

// doAuthed executes an authenticated request. On 401 it refreshes the
// token pair once and retries; the second 401 (or a failed refresh) is
// returned as-is for newAPIError to surface as ErrUnauthenticated.
func (c *Client) doAuthed(ctx context.Context, op, method, path string, payload []byte, extra map[string]string) (int, []byte, error) {
	for attempt := 0; ; attempt++ {
		headers := map[string]string{}
		for k, v := range extra {
			headers[k] = v
		}
		for k, v := range c.creds.AuthHeaderContext(ctx) {
			headers[k] = v
		}

		status, body, err := c.doPlain(ctx, op, method, path, payload, headers)
		if err != nil {
			return status, body, err
		}
		if status != http.StatusUnauthorized || attempt > 0 {
			return status, body, nil
		}

		if err := c.creds.RefreshAccessToken(ctx); err != nil {
			// Refresh already forced a logout; surface the 401.
			return status, body, nil
		}
		c.log.Debug("ticket.retry_after_refresh", "op", op, "path", path)
	}
}

// doPlain executes one request with correlation, metrics, and a bounded
// body read.
func (c *Client) doPlain(ctx context.Context, op, method, path string, payload []byte, headers map[string]string) (int, []byte, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if payload != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := wire.Tag(req)

	start := time.Now()
	resp, err := c.client.Do(req)
	requestSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		observe(op, 0, err)
		c.log.Warn("ticket.request_failed", "op", op, "request_id", reqID, "err", err)
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		observe(op, 0, err)
		return 0, nil, err
	}

	observe(op, resp.StatusCode, nil)
	return resp.StatusCode, body, nil
}
