package renewal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"renova/cmd/internal/ticket"
)

// Step is the workflow's current position.
type Step string

const (
	StepIdle       Step = "idle"
	StepForm       Step = "form"
	StepConfirm    Step = "confirm"
	StepPayment    Step = "payment"
	StepConfirming Step = "confirming"
	StepSuccess    Step = "success"
	StepError      Step = "error"
)

// User-facing messages captured into State.Err.
const (
	MsgAuthRequired   = "Please log in to renew your license"
	MsgInvoiceExpired = "Invoice expired. Start a new renewal to get a fresh invoice."
	MsgPaymentPending = "Payment not detected yet. Pay the invoice and try again."
	MsgNetwork        = "Could not reach the renewal service. Check your connection and try again."
)

// ErrInvalidStep is returned when a trigger is not legal in the current
// step. The view layer is expected to disable triggers that do not apply,
// so hitting this is a programming error, not user error.
var ErrInvalidStep = errors.New("trigger not valid in current step")

// TicketAPI is the slice of the ticket client the workflow drives.
type TicketAPI interface {
	CreateTicket(ctx context.Context, operationID int, form map[string]string) (ticket.Ticket, error)
	ConfirmPayment(ctx context.Context, ticketID string) (ticket.PaymentStatus, error)
	GetOperation(ctx context.Context, id int) (ticket.Operation, error)
}

// Authenticator gates entry into the workflow.
type Authenticator interface {
	Authenticated() bool
}

// Config defines the workflow's fixed parameters.
type Config struct {
	// OperationID identifies the renewal operation server-side.
	OperationID int

	// DefaultPriceSats is displayed when the price fetch fails.
	DefaultPriceSats int64

	// PriceTimeout bounds the best-effort price fetch on Start.
	PriceTimeout time.Duration
}

// DefaultConfig matches the seeded driver_license_renewal operation.
func DefaultConfig() Config {
	return Config{
		OperationID:      1,
		DefaultPriceSats: 10_000,
		PriceTimeout:     3 * time.Second,
	}
}

// State is an observable snapshot of one renewal attempt.
//
// ConfirmAttempts is advisory UI state: it counts pending/unrecognized
// confirmation outcomes and resets on cancel. The machine itself never
// caps retries; any ceiling is a view-level policy.
type State struct {
	Step            Step
	Form            *Form
	Ticket          *ticket.Ticket
	OperationPrice  int64
	Err             string
	ConfirmAttempts int
}

// Workflow is the renewal state machine. Exactly one instance exists per
// active renewal attempt; triggers are serialized by the view layer
// (buttons disabled while Step == confirming), and the machine enforces
// legality with ErrInvalidStep.
//
// Cancel does not abort in-flight requests. Every I/O transition snapshots
// a generation counter before the call and discards the late result when
// cancel has moved the counter on.
type Workflow struct {
	cfg  Config
	log  *slog.Logger
	api  TicketAPI
	auth Authenticator

	mu  sync.Mutex
	gen uint64
	st  State
}

// New builds a Workflow at idle.
func New(cfg Config, api TicketAPI, auth Authenticator, log *slog.Logger) *Workflow {
	if log == nil {
		log = slog.Default()
	}
	return &Workflow{
		cfg:  cfg,
		log:  log,
		api:  api,
		auth: auth,
		st:   State{Step: StepIdle, OperationPrice: cfg.DefaultPriceSats},
	}
}

// Snapshot returns a copy of the current state. The Form and Ticket
// pointers are copies; mutating them does not touch the machine.
func (w *Workflow) Snapshot() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := w.st
	if w.st.Form != nil {
		f := *w.st.Form
		st.Form = &f
	}
	if w.st.Ticket != nil {
		t := *w.st.Ticket
		st.Ticket = &t
	}
	return st
}

// Start begins a renewal. Unauthenticated users land in error; otherwise
// the machine enters form immediately and the operation price is fetched
// best-effort afterwards (fallback: DefaultPriceSats). The fetch never
// blocks entry into form.
func (w *Workflow) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.st.Step != StepIdle {
		w.mu.Unlock()
		return ErrInvalidStep
	}

	if !w.auth.Authenticated() {
		w.st.Err = MsgAuthRequired
		w.setStepLocked(StepError)
		w.mu.Unlock()
		return nil
	}

	w.st.OperationPrice = w.cfg.DefaultPriceSats
	w.st.Err = ""
	w.setStepLocked(StepForm)
	gen := w.gen
	w.mu.Unlock()

	pctx, cancel := context.WithTimeout(ctx, w.cfg.PriceTimeout)
	defer cancel()

	op, err := w.api.GetOperation(pctx, w.cfg.OperationID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.log.Debug("renewal.price_fetch_failed", "err", err)
		return nil
	}
	if w.gen != gen {
		return nil
	}
	if op.Price > 0 {
		w.st.OperationPrice = op.Price
	}
	return nil
}

// SubmitForm validates and stores the form. A ValidationError keeps the
// machine in form and is returned for field-level rendering.
func (w *Workflow) SubmitForm(raw RawForm) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.st.Step != StepForm {
		return ErrInvalidStep
	}

	f, err := ParseForm(raw)
	if err != nil {
		return err
	}

	w.st.Form = &f
	w.st.Err = ""
	w.setStepLocked(StepConfirm)
	return nil
}

// Edit returns from confirmation to the form, keeping the entered data.
func (w *Workflow) Edit() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.st.Step != StepConfirm {
		return ErrInvalidStep
	}
	w.setStepLocked(StepForm)
	return nil
}

// ConfirmCreate creates the ticket. One-shot: a failed creation is a
// terminal error for this attempt (ticket stays nil); the user must cancel
// and restart.
func (w *Workflow) ConfirmCreate(ctx context.Context) error {
	w.mu.Lock()
	if w.st.Step != StepConfirm || w.st.Form == nil {
		w.mu.Unlock()
		return ErrInvalidStep
	}
	form := *w.st.Form
	gen := w.gen
	w.setStepLocked(StepConfirming)
	w.mu.Unlock()

	t, err := w.api.CreateTicket(ctx, w.cfg.OperationID, form.Data())

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen {
		// Canceled while in flight; the machine is already reset.
		return nil
	}

	if err != nil {
		w.log.Warn("renewal.create_ticket_failed", "err", err)
		w.st.Err = errMessage(err)
		w.setStepLocked(StepError)
		return nil
	}

	w.st.Ticket = &t
	w.st.Err = ""
	w.setStepLocked(StepPayment)
	return nil
}

// ConfirmPayment re-checks the invoice. paid ends in success; expired is
// terminal for the ticket; pending (or an unrecognized status) returns to
// payment with the attempt counter bumped; a transport or backend failure
// returns to payment with the counter unchanged.
func (w *Workflow) ConfirmPayment(ctx context.Context) error {
	w.mu.Lock()
	if w.st.Step != StepPayment || w.st.Ticket == nil {
		w.mu.Unlock()
		return ErrInvalidStep
	}
	id := w.st.Ticket.TicketID
	gen := w.gen
	w.setStepLocked(StepConfirming)
	w.mu.Unlock()

	status, err := w.api.ConfirmPayment(ctx, id)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen {
		return nil
	}

	if err != nil {
		w.log.Warn("renewal.confirm_payment_failed", "ticket_id", id, "err", err)
		w.st.Err = errMessage(err)
		w.setStepLocked(StepPayment)
		return nil
	}

	switch status {
	case ticket.StatusPaid:
		w.st.Err = ""
		w.setStepLocked(StepSuccess)
	case ticket.StatusExpired:
		w.st.Err = MsgInvoiceExpired
		w.setStepLocked(StepError)
	default:
		// pending or unrecognized: retriable, advisory message.
		w.st.ConfirmAttempts++
		w.st.Err = MsgPaymentPending
		w.setStepLocked(StepPayment)
	}
	return nil
}

// Cancel resets the machine to idle from any non-idle step, clearing form,
// ticket, message, and attempt counter, and invalidating in-flight
// requests. At idle it is a no-op.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.st.Step == StepIdle {
		return
	}
	w.gen++
	w.st = State{Step: StepIdle, OperationPrice: w.cfg.DefaultPriceSats}
	transitionsTotal.WithLabelValues(string(StepIdle)).Inc()
}

// Acknowledge leaves a terminal step. Same reset as Cancel.
func (w *Workflow) Acknowledge() {
	w.Cancel()
}

func (w *Workflow) setStepLocked(s Step) {
	w.st.Step = s
	transitionsTotal.WithLabelValues(string(s)).Inc()
}

// errMessage maps a ticket-client failure to the uniform message rendered
// by the view: the backend's detail when present, a generic line otherwise.
func errMessage(err error) string {
	var ae *ticket.APIError
	if errors.As(err, &ae) && ae.Detail != "" {
		return ae.Detail
	}
	return MsgNetwork
}
