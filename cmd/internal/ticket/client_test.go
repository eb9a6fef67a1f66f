package ticket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"renova/cmd/internal/wire"
)

// fakeCreds counts refreshes and swaps the injected token after each one.
type fakeCreds struct {
	token      string
	refreshed  int
	refreshErr error
}

func (f *fakeCreds) AuthHeaderContext(context.Context) map[string]string {
	h := map[string]string{}
	if f.token != "" {
		h["Authorization"] = "Bearer " + f.token
	}
	return h
}

func (f *fakeCreds) RefreshAccessToken(context.Context) error {
	f.refreshed++
	if f.refreshErr != nil {
		f.token = ""
		return f.refreshErr
	}
	f.token = f.token + "-fresh"
	return nil
}

func newTestClient(url string, creds Credentials) *Client {
	return NewClient(url, 5*time.Second, creds, nil)
}

func TestCreateTicket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/tickets" {
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("Authorization = %q", got)
		}
		if r.Header.Get("Idempotency-Key") == "" {
			t.Fatalf("missing Idempotency-Key")
		}
		if r.Header.Get(wire.RequestIDHeader) == "" {
			t.Fatalf("missing %s", wire.RequestIDHeader)
		}

		var body struct {
			OperationID int               `json:"operation_id"`
			FormData    map[string]string `json:"form_data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.OperationID != 1 || body.FormData["cpf"] != "12345678901" {
			t.Fatalf("body = %+v", body)
		}

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ticket_id":"tk-1","ln_invoice":"lnbc500n1pxyz","amount_sats":50000}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &fakeCreds{token: "tok"})
	tk, err := c.CreateTicket(context.Background(), 1, map[string]string{"cpf": "12345678901"})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if tk.TicketID != "tk-1" || tk.LnInvoice != "lnbc500n1pxyz" || tk.AmountSats != 50000 {
		t.Fatalf("ticket = %+v", tk)
	}
}

func TestCreateTicket_RefreshRetryOn401(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") != "Bearer tok-fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"unauthorized"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ticket_id":"tk-1","ln_invoice":"lnbc1","amount_sats":10000}`))
	}))
	defer srv.Close()

	creds := &fakeCreds{token: "tok"}
	c := newTestClient(srv.URL, creds)

	tk, err := c.CreateTicket(context.Background(), 1, map[string]string{"cpf": "12345678901"})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if tk.TicketID != "tk-1" {
		t.Fatalf("ticket = %+v", tk)
	}
	if creds.refreshed != 1 {
		t.Fatalf("refreshed %d times, want exactly 1", creds.refreshed)
	}
	if calls != 2 {
		t.Fatalf("server saw %d calls, want 2", calls)
	}
}

func TestCreateTicket_SecondUnauthorizedIsTerminal(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"unauthorized"}`))
	}))
	defer srv.Close()

	creds := &fakeCreds{token: "tok"}
	c := newTestClient(srv.URL, creds)

	_, err := c.CreateTicket(context.Background(), 1, map[string]string{"cpf": "12345678901"})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
	if creds.refreshed != 1 {
		t.Fatalf("refreshed %d times, want exactly 1", creds.refreshed)
	}
	if calls != 2 {
		t.Fatalf("server saw %d calls, want 2", calls)
	}
}

func TestCreateTicket_FailedRefreshDoesNotRetry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"unauthorized"}`))
	}))
	defer srv.Close()

	creds := &fakeCreds{token: "tok", refreshErr: errors.New("refresh rejected")}
	c := newTestClient(srv.URL, creds)

	_, err := c.CreateTicket(context.Background(), 1, map[string]string{"cpf": "12345678901"})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
	if calls != 1 {
		t.Fatalf("server saw %d calls, want 1 (no retry after failed refresh)", calls)
	}
}

func TestCreateTicket_NestedDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":{"error":"missing_required_fields","missing_fields":["cnh_mirror"]}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &fakeCreds{token: "tok"})
	_, err := c.CreateTicket(context.Background(), 1, map[string]string{"cpf": "12345678901"})

	var ae *APIError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if ae.Status != http.StatusBadRequest || ae.Detail != "missing_required_fields" {
		t.Fatalf("APIError = %+v", ae)
	}
	if errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("a 400 must not match ErrUnauthenticated")
	}
}

func TestConfirmPayment(t *testing.T) {
	for _, want := range []PaymentStatus{StatusPaid, StatusPending, StatusExpired, "weird"} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/v1/tickets/tk-1/confirm-payment" {
				t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"status": string(want)})
		}))

		c := newTestClient(srv.URL, &fakeCreds{token: "tok"})
		got, err := c.ConfirmPayment(context.Background(), "tk-1")
		srv.Close()
		if err != nil {
			t.Fatalf("ConfirmPayment(%s): %v", want, err)
		}
		if got != want {
			t.Fatalf("status = %q, want %q", got, want)
		}
	}
}

func TestGetOperation_NoCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/operations/1" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Fatalf("operations endpoint must not be sent credentials")
		}
		_, _ = w.Write([]byte(`{"id":1,"name":"driver_license_renewal","price":10000}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &fakeCreds{token: "tok"})
	op, err := c.GetOperation(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetOperation: %v", err)
	}
	if op.Name != "driver_license_renewal" || op.Price != 10000 {
		t.Fatalf("operation = %+v", op)
	}
}

func TestListTickets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("status") != "paid" || q.Get("limit") != "5" || q.Get("offset") != "10" {
			t.Fatalf("query = %v", q)
		}
		_, _ = w.Write([]byte(`{"tickets":[{"id":"tk-1","payment_status":"paid"}],"total":11}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &fakeCreds{token: "tok"})
	l, err := c.ListTickets(context.Background(), "paid", 5, 10)
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if l.Total != 11 || len(l.Tickets) != 1 || l.Tickets[0].PaymentStatus != StatusPaid {
		t.Fatalf("list = %+v", l)
	}
}
