package app

import (
	"bufio"
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"renova/cmd/internal/auth/session"
	"renova/cmd/internal/renewal"
	"renova/cmd/internal/stub"
	"renova/cmd/internal/ticket"
)

// newFlow wires a Flow over the real stack against the in-memory backend,
// with scripted keyboard input.
func newFlow(t *testing.T, scfg stub.Config, input string) (*Flow, *session.Manager, *bytes.Buffer) {
	t.Helper()

	ts := httptest.NewServer(stub.NewServer(scfg, nil).Router())
	t.Cleanup(ts.Close)

	store, err := session.NewFileStore(filepath.Join(t.TempDir(), "session.json"), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	sess, err := session.NewManager(session.Config{
		BaseURL:     ts.URL,
		HTTPTimeout: 5 * time.Second,
		RefreshSkew: 30 * time.Second,
	}, store, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	client := ticket.NewClient(ts.URL, 5*time.Second, sess, nil)
	wf := renewal.New(renewal.DefaultConfig(), client, sess, nil)

	out := &bytes.Buffer{}
	f := &Flow{
		cfg:  DefaultConfig(),
		in:   bufio.NewScanner(strings.NewReader(input)),
		out:  out,
		sess: sess,
		wf:   wf,
	}
	return f, sess, out
}

func TestFlow_HappyPath(t *testing.T) {
	scfg := stub.DefaultConfig()
	scfg.PayAfter = 1

	// form, confirm, one payment check.
	input := strings.Join([]string{
		"123.456.789-01",
		"12345678901",
		"9988776655",
		"c",
		"",
	}, "\n") + "\n"

	f, sess, out := newFlow(t, scfg, input)
	if err := sess.Register(context.Background(), "ana@example.com", "s3cretpass"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := f.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rendered := out.String()
	if !strings.Contains(rendered, "123.456.789-01") {
		t.Fatalf("confirmation must render the masked CPF:\n%s", rendered)
	}
	if !strings.Contains(rendered, "lnbc") {
		t.Fatalf("payment step must render the invoice:\n%s", rendered)
	}
	if !strings.Contains(rendered, "Payment confirmed") {
		t.Fatalf("missing success message:\n%s", rendered)
	}
}

func TestFlow_AuthenticateThenQuit(t *testing.T) {
	// register, then quit at the confirmation prompt.
	input := strings.Join([]string{
		"r",
		"ana@example.com",
		"s3cretpass",
		"12345678901",
		"12345678901",
		"9988776655",
		"q",
	}, "\n") + "\n"

	f, sess, out := newFlow(t, stub.DefaultConfig(), input)

	if err := f.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !sess.Authenticated() {
		t.Fatalf("register via the flow must leave a session")
	}
	if !strings.Contains(out.String(), "Canceled") {
		t.Fatalf("missing cancel message:\n%s", out.String())
	}
}

func TestFlow_InvalidFormReprompts(t *testing.T) {
	scfg := stub.DefaultConfig()
	scfg.PayAfter = 1

	// First CPF is bad; the form re-prompts.
	input := strings.Join([]string{
		"123",
		"12345678901",
		"9988776655",
		"12345678901",
		"12345678901",
		"9988776655",
		"c",
		"",
	}, "\n") + "\n"

	f, sess, out := newFlow(t, scfg, input)
	if err := sess.Register(context.Background(), "ana@example.com", "s3cretpass"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := f.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "invalid cpf") {
		t.Fatalf("missing validation message:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Payment confirmed") {
		t.Fatalf("flow did not recover after validation:\n%s", out.String())
	}
}

func TestFlow_AttemptCeilingStopsPolling(t *testing.T) {
	// PayAfter 0: the invoice never settles on its own.
	input := strings.Join([]string{
		"12345678901",
		"12345678901",
		"9988776655",
		"c",
		"", "", "", "", "",
	}, "\n") + "\n"

	f, sess, out := newFlow(t, stub.DefaultConfig(), input)
	f.cfg.MaxConfirmAttempts = 2
	if err := sess.Register(context.Background(), "ana@example.com", "s3cretpass"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := f.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "still not detected after 2 checks") {
		t.Fatalf("ceiling message missing:\n%s", out.String())
	}
}
