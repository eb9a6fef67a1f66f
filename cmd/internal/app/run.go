package app

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"syscall"

	"renova/cmd/internal/auth/session"
	"renova/cmd/internal/renewal"
	"renova/cmd/internal/ticket"
)

// Run is the CLI entrypoint used by cmd/renova.
// It returns an error instead of calling os.Exit to keep defers effective.
func Run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	log := NewLogger(cfg.LogLevel, cfg.LogFormat)

	store, err := session.NewFileStore(cfg.SessionFile, cfg.SessionPassphrase)
	if err != nil {
		return err
	}

	sess, err := session.NewManager(session.Config{
		BaseURL:     cfg.BaseURL,
		HTTPTimeout: cfg.HTTPTimeout,
		RefreshSkew: cfg.RefreshSkew,
	}, store, log)
	if err != nil {
		return err
	}

	client := ticket.NewClient(cfg.BaseURL, cfg.HTTPTimeout, sess, log)

	wf := renewal.New(renewal.Config{
		OperationID:      cfg.OperationID,
		DefaultPriceSats: cfg.DefaultPriceSats,
		PriceTimeout:     cfg.PriceTimeout,
	}, client, sess, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	f := &Flow{
		cfg:  cfg,
		log:  log,
		in:   bufio.NewScanner(os.Stdin),
		out:  os.Stdout,
		sess: sess,
		wf:   wf,
	}
	return f.Run(ctx)
}
