package stub

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"renova/cmd/internal/ticket"
)

// Config defines the stub's fixed parameters.
type Config struct {
	// Secret signs HS256 tokens. Randomized when empty.
	Secret string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// PayAfter marks an invoice paid on the Nth confirm-payment call.
	// Zero leaves invoices pending until MarkPaid.
	PayAfter int

	// InvoiceExpiry marks unpaid invoices expired this long after
	// creation. Zero disables expiry.
	InvoiceExpiry time.Duration
}

// DefaultConfig matches the production service's token lifetimes.
func DefaultConfig() Config {
	return Config{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
}

type user struct {
	ID        string
	Email     string
	Password  string // plaintext; test fixture only
	CreatedAt time.Time
}

type stubTicket struct {
	ID          string
	UserID      string
	OperationID int
	FormData    map[string]string
	LnInvoice   string
	AmountSats  int64
	Status      ticket.PaymentStatus
	Confirms    int
	CreatedAt   time.Time
}

// Server holds the in-memory state behind the HTTP contract.
type Server struct {
	cfg Config
	log *slog.Logger
	now func() time.Time

	mu      sync.Mutex
	users   map[string]*user // by normalized email
	byID    map[string]*user
	tickets map[string]*stubTicket
	ops     map[int]ticket.Operation
}

// NewServer seeds the fixture operation (id 1, driver_license_renewal,
// 10000 sats) and returns a ready Server.
func NewServer(cfg Config, log *slog.Logger) *Server {
	if cfg.Secret == "" {
		b := make([]byte, 32)
		_, _ = rand.Read(b)
		cfg.Secret = hex.EncodeToString(b)
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultConfig().AccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultConfig().RefreshTTL
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
		users:   map[string]*user{},
		byID:    map[string]*user{},
		tickets: map[string]*stubTicket{},
		ops:     map[int]ticket.Operation{},
	}

	s.ops[1] = ticket.Operation{
		ID:          1,
		Name:        "driver_license_renewal",
		Description: "CNH renewal (DETRAN-SP)",
		Price:       10_000,
		RequiredFields: map[string]any{
			"cpf":        "CPF, 11 digits",
			"cnh_number": "CNH number",
			"cnh_mirror": "CNH mirror number",
		},
	}
	return s
}

// SetNow overrides the clock, for expiry tests.
func (s *Server) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Router wires the full contract plus /healthz and /metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(withRequestLogging(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/api/v1/auth/register", s.handleRegister)
	r.Post("/api/v1/auth/login", s.handleLogin)
	r.Post("/api/v1/auth/refresh", s.handleRefresh)

	r.Get("/api/v1/operations", s.handleListOperations)
	r.Get("/api/v1/operations/{id}", s.handleGetOperation)

	r.Route("/api/v1/tickets", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/", s.handleCreateTicket)
		r.Get("/", s.handleListTickets)
		r.Get("/{id}", s.handleGetTicket)
		r.Post("/{id}/confirm-payment", s.handleConfirmPayment)
	})

	return r
}

// MarkPaid settles a ticket's invoice out of band. Reports whether the
// ticket exists.
func (s *Server) MarkPaid(ticketID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketID]
	if !ok {
		return false
	}
	t.Status = ticket.StatusPaid
	return true
}

// MarkExpired expires a ticket's invoice out of band.
func (s *Server) MarkExpired(ticketID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketID]
	if !ok {
		return false
	}
	t.Status = ticket.StatusExpired
	return true
}
