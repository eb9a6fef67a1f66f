// Package main provides a CI-friendly smoke test for the renewal flow.
//
// It drives the real client stack (session manager, ticket client,
// workflow) against a running backend — typically cmd/renovastub with
// RENOVA_STUB_PAY_AFTER=1 — and validates:
//   - register + implicit login
//   - workflow entry and price fetch
//   - form submission and ticket creation
//   - payment confirmation reaching success
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"renova/cmd/internal/app"
	"renova/cmd/internal/auth/session"
	"renova/cmd/internal/renewal"
	"renova/cmd/internal/ticket"
)

func main() {
	base := flag.String("base", "http://localhost:8000", "backend base URL")
	attempts := flag.Int("attempts", 5, "max confirm-payment attempts")
	flag.Parse()

	if err := run(*base, *attempts); err != nil {
		fmt.Fprintln(os.Stderr, "flow-smoke:", err)
		os.Exit(1)
	}
	fmt.Println("flow-smoke: ok")
}

func run(base string, attempts int) error {
	log := app.NewLogger("warn", "text")

	dir, err := os.MkdirTemp("", "flow-smoke-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(dir) }()

	store, err := session.NewFileStore(filepath.Join(dir, "session.json"), "")
	if err != nil {
		return err
	}

	sess, err := session.NewManager(session.Config{
		BaseURL:     base,
		HTTPTimeout: 10 * time.Second,
		RefreshSkew: 30 * time.Second,
	}, store, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	email := fmt.Sprintf("smoke-%d@example.com", time.Now().UnixNano())
	if err := sess.Register(ctx, email, "hunter2hunter2"); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if !sess.Authenticated() {
		return fmt.Errorf("expected authenticated session after register")
	}

	client := ticket.NewClient(base, 10*time.Second, sess, log)
	wf := renewal.New(renewal.DefaultConfig(), client, sess, log)

	if err := wf.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if st := wf.Snapshot(); st.Step != renewal.StepForm {
		return fmt.Errorf("after start: step=%s err=%q", st.Step, st.Err)
	}

	if err := wf.SubmitForm(renewal.RawForm{
		CPF:       "123.456.789-01",
		CNHNumber: "12345678901",
		CNHMirror: "9988776655",
	}); err != nil {
		return fmt.Errorf("submit form: %w", err)
	}

	if err := wf.ConfirmCreate(ctx); err != nil {
		return fmt.Errorf("confirm create: %w", err)
	}
	st := wf.Snapshot()
	if st.Step != renewal.StepPayment || st.Ticket == nil {
		return fmt.Errorf("after create: step=%s err=%q", st.Step, st.Err)
	}
	fmt.Printf("ticket %s, invoice %s, %d sats\n", st.Ticket.TicketID, st.Ticket.LnInvoice, st.Ticket.AmountSats)

	for i := 0; i < attempts; i++ {
		if err := wf.ConfirmPayment(ctx); err != nil {
			return fmt.Errorf("confirm payment: %w", err)
		}
		st = wf.Snapshot()
		switch st.Step {
		case renewal.StepSuccess:
			return nil
		case renewal.StepPayment:
			fmt.Printf("attempt %d: %s\n", st.ConfirmAttempts, st.Err)
			time.Sleep(200 * time.Millisecond)
		default:
			return fmt.Errorf("confirm payment: step=%s err=%q", st.Step, st.Err)
		}
	}
	return fmt.Errorf("payment not confirmed after %d attempts", attempts)
}
