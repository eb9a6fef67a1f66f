package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"renova/cmd/internal/auth/session"
	"renova/cmd/internal/renewal"
)

// Flow is the interactive stand-in for the citizen-facing view layer: it
// renders workflow state and turns keystrokes into transitions. All real
// behavior lives in the workflow; this loop only observes and drives it.
type Flow struct {
	cfg  Config
	log  *slog.Logger
	in   *bufio.Scanner
	out  io.Writer
	sess *session.Manager
	wf   *renewal.Workflow
}

// Run drives one renewal attempt end to end.
func (f *Flow) Run(ctx context.Context) error {
	if !f.sess.Authenticated() {
		if err := f.authenticate(ctx); err != nil {
			return err
		}
	}

	if err := f.wf.Start(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			f.wf.Cancel()
			return err
		}

		st := f.wf.Snapshot()
		switch st.Step {
		case renewal.StepForm:
			if err := f.stepForm(); err != nil {
				return err
			}
		case renewal.StepConfirm:
			if err := f.stepConfirm(ctx, st); err != nil {
				return err
			}
		case renewal.StepPayment:
			done, err := f.stepPayment(ctx, st)
			if err != nil || done {
				return err
			}
		case renewal.StepSuccess:
			f.printf("\nPayment confirmed. Your renewal request has been submitted.\n")
			f.wf.Acknowledge()
			return nil
		case renewal.StepError:
			f.printf("\nRenewal failed: %s\n", st.Err)
			f.wf.Acknowledge()
			return nil
		case renewal.StepIdle:
			f.printf("Canceled.\n")
			return nil
		default:
			// confirming is never observable here: transitions resolve
			// before the trigger method returns.
			return fmt.Errorf("unexpected step %q", st.Step)
		}
	}
}

func (f *Flow) authenticate(ctx context.Context) error {
	for {
		choice := f.prompt("[l]ogin or [r]egister? ")
		email := f.prompt("email: ")
		password := f.prompt("password: ")

		var err error
		if strings.HasPrefix(strings.ToLower(choice), "r") {
			err = f.sess.Register(ctx, email, password)
		} else {
			err = f.sess.Login(ctx, email, password)
		}
		if err == nil {
			return nil
		}
		if !errors.Is(err, session.ErrInvalidCredentials) {
			return err
		}
		f.printf("authentication failed: %v\n\n", err)
	}
}

func (f *Flow) stepForm() error {
	f.printf("\n-- Renewal form --\n")
	raw := renewal.RawForm{
		CPF:       f.prompt("CPF: "),
		CNHNumber: f.prompt("CNH number: "),
		CNHMirror: f.prompt("CNH mirror: "),
	}

	err := f.wf.SubmitForm(raw)
	var verr *renewal.ValidationError
	if errors.As(err, &verr) {
		f.printf("%v\n", verr)
		return nil // stay in form, re-prompt
	}
	return err
}

func (f *Flow) stepConfirm(ctx context.Context, st renewal.State) error {
	f.printf("\n-- Confirm --\n")
	f.printf("CPF:        %s\n", renewal.FormatCPF(st.Form.CPF))
	f.printf("CNH number: %s\n", st.Form.CNHNumber)
	f.printf("CNH mirror: %s\n", st.Form.CNHMirror)
	f.printf("Price:      %d sats\n", st.OperationPrice)

	switch strings.ToLower(f.prompt("[c]onfirm, [e]dit, or [q]uit? ")) {
	case "e":
		return f.wf.Edit()
	case "q":
		f.wf.Cancel()
		return nil
	default:
		return f.wf.ConfirmCreate(ctx)
	}
}

// stepPayment shows the invoice and polls on demand. The attempt ceiling
// here is presentation policy; the workflow itself never caps retries.
func (f *Flow) stepPayment(ctx context.Context, st renewal.State) (done bool, err error) {
	f.printf("\n-- Payment --\n")
	f.printf("Invoice (%d sats):\n%s\n", st.Ticket.AmountSats, st.Ticket.LnInvoice)
	if st.Err != "" {
		f.printf("note: %s\n", st.Err)
	}

	if f.cfg.MaxConfirmAttempts > 0 && st.ConfirmAttempts >= f.cfg.MaxConfirmAttempts {
		f.printf("Payment still not detected after %d checks. The invoice stays valid; run renova again once you have paid.\n",
			st.ConfirmAttempts)
		return true, nil
	}

	switch strings.ToLower(f.prompt("press enter after paying, or [q]uit: ")) {
	case "q":
		f.wf.Cancel()
		return true, nil
	default:
		return false, f.wf.ConfirmPayment(ctx)
	}
}

func (f *Flow) prompt(label string) string {
	f.printf("%s", label)
	if !f.in.Scan() {
		return ""
	}
	return strings.TrimSpace(f.in.Text())
}

func (f *Flow) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(f.out, format, args...)
}
