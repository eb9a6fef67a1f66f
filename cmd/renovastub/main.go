// Command renovastub runs the in-memory reference backend, for local
// development of the Renova client without the production service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"renova/cmd/internal/app"
	"renova/cmd/internal/stub"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	addr := app.EnvString("RENOVA_STUB_ADDR", "0.0.0.0:8000")
	logger := app.NewLogger(app.EnvString("RENOVA_LOG_LEVEL", "info"),
		app.EnvString("RENOVA_LOG_FORMAT", "json"))

	cfg := stub.DefaultConfig()
	cfg.Secret = app.EnvString("RENOVA_STUB_SECRET", "")
	cfg.PayAfter = app.EnvInt("RENOVA_STUB_PAY_AFTER", 2)
	cfg.InvoiceExpiry = app.EnvDuration("RENOVA_STUB_INVOICE_EXPIRY", 0)

	srv := &http.Server{
		Addr:              addr,
		Handler:           stub.NewServer(cfg, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("stub.listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("stub.shutdown", "signal", sig.String())
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
