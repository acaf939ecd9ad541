package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rosterclaim/internal/platform/config"
	"rosterclaim/internal/platform/httpserver"
	"rosterclaim/internal/platform/logger"
)

// main wires dependencies, refuses to serve until the preflight passes, and
// keeps the server lifecycle small. Claim logic lives in internal/claim.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("rosterclaim exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := wire(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.orgs.Preflight(ctx); err != nil {
		return err
	}

	app.resyncer.Start(ctx)
	app.scheduler.Start(ctx)

	srv := httpserver.New(cfg.Addr, app.router)
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting rosterclaim", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	app.scheduler.Stop()
	stop()
	app.resyncer.Wait()
	return nil
}
