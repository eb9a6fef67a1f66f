package stub

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"renova/cmd/internal/ticket"
)

type createTicketRequest struct {
	OperationID int               `json:"operation_id"`
	FormData    map[string]string `json:"form_data"`
}

func (s *Server) handleListOperations(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	ops := make([]ticket.Operation, 0, len(s.ops))
	for _, op := range s.ops {
		ops = append(ops, op)
	}
	s.mu.Unlock()

	sort.Slice(ops, func(i, j int) bool { return ops[i].ID < ops[j].ID })
	writeJSON(w, http.StatusOK, ops)
}

func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid operation id")
		return
	}

	s.mu.Lock()
	op, ok := s.ops[id]
	s.mu.Unlock()

	if !ok {
		writeDetail(w, http.StatusNotFound, map[string]any{
			"error":        "operation_not_found",
			"operation_id": id,
		})
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := decodeJSON(w, r, 1<<20, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.ops[req.OperationID]
	if !ok {
		writeDetail(w, http.StatusNotFound, map[string]any{
			"error":        "operation_not_found",
			"operation_id": req.OperationID,
		})
		return
	}

	var missing []string
	for field := range op.RequiredFields {
		if req.FormData[field] == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		writeDetail(w, http.StatusBadRequest, map[string]any{
			"error":   "missing_required_fields",
			"missing": missing,
		})
		return
	}

	t := &stubTicket{
		ID:          uuid.NewString(),
		UserID:      userIDFrom(r),
		OperationID: op.ID,
		FormData:    req.FormData,
		LnInvoice:   fakeInvoice(op.Price),
		AmountSats:  op.Price,
		Status:      ticket.StatusPending,
		CreatedAt:   s.now(),
	}
	s.tickets[t.ID] = t

	resp := map[string]any{
		"ticket_id":   t.ID,
		"ln_invoice":  t.LnInvoice,
		"amount_sats": t.AmountSats,
	}
	if s.cfg.InvoiceExpiry > 0 {
		resp["expires_at"] = t.CreatedAt.Add(s.cfg.InvoiceExpiry)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)
	if limit < 1 || limit > 100 || offset < 0 {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid pagination")
		return
	}

	userID := userIDFrom(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	var mine []*stubTicket
	for _, t := range s.tickets {
		if t.UserID != userID {
			continue
		}
		if status != "" && string(t.Status) != status {
			continue
		}
		mine = append(mine, t)
	}
	// Newest first, like the production listing.
	sort.Slice(mine, func(i, j int) bool { return mine[i].CreatedAt.After(mine[j].CreatedAt) })

	total := len(mine)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	page := make([]ticket.Detail, 0, end-offset)
	for _, t := range mine[offset:end] {
		page = append(page, s.detailLocked(t))
	}

	writeJSON(w, http.StatusOK, ticket.List{Tickets: page, Total: total})
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, map[string]any{
			"error":     "ticket_not_found",
			"ticket_id": id,
		})
		return
	}
	if t.UserID != userIDFrom(r) {
		writeDetail(w, http.StatusForbidden, "forbidden")
		return
	}

	writeJSON(w, http.StatusOK, s.detailLocked(t))
}

func (s *Server) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, map[string]any{
			"error":     "ticket_not_found",
			"ticket_id": id,
		})
		return
	}
	if t.UserID != userIDFrom(r) {
		writeDetail(w, http.StatusForbidden, "forbidden")
		return
	}

	if t.Status == ticket.StatusPending && s.cfg.InvoiceExpiry > 0 &&
		s.now().After(t.CreatedAt.Add(s.cfg.InvoiceExpiry)) {
		t.Status = ticket.StatusExpired
	}

	if t.Status == ticket.StatusPending {
		t.Confirms++
		if s.cfg.PayAfter > 0 && t.Confirms >= s.cfg.PayAfter {
			t.Status = ticket.StatusPaid
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(t.Status)})
}

func (s *Server) detailLocked(t *stubTicket) ticket.Detail {
	return ticket.Detail{
		ID:            t.ID,
		OperationID:   t.OperationID,
		OperationName: s.ops[t.OperationID].Name,
		FormData:      t.FormData,
		LnInvoice:     t.LnInvoice,
		AmountSats:    t.AmountSats,
		PaymentStatus: t.Status,
		CreatedAt:     t.CreatedAt,
	}
}

// fakeInvoice produces a BOLT11-shaped opaque string. Not decodable; the
// client treats invoices as opaque anyway.
func fakeInvoice(amountSats int64) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "lnbc" + strconv.FormatInt(amountSats*10, 10) + "n1p" + suffix
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}
