// Package main is the entry point for the secrets server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bleepforge/secretsmanager/internal/config"
	"github.com/bleepforge/secretsmanager/internal/logging"
	"github.com/bleepforge/secretsmanager/internal/metrics"
	"github.com/bleepforge/secretsmanager/internal/server"
	"github.com/bleepforge/secretsmanager/internal/store"
)

func main() {
	configPath := flag.String("config", "secretsmanager.yaml", "path to configuration file")
	port := flag.Int("port", 0, "override listening port (default: from config or 9090)")
	host := flag.String("host", "", "override listening host (default: from config or 0.0.0.0)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	if cfg.Observability.Metrics {
		metrics.Register()
	}

	// Crash-only design: every startup is recovery. The encrypted store's
	// working SQLite file is rebuilt from the sealed container on every
	// Open, so there is no distinct recovery mode to run.
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create store directory: %v\n", err)
		os.Exit(1)
	}

	repo, err := store.Open(cfg.Store.Path, cfg.Store.Passphrase)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open secret store: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	repo.WithARNConfig(store.ARNConfig{
		Partition: cfg.Server.Partition,
		Region:    cfg.Server.Region,
		AccountID: cfg.Server.AccountID,
	})

	srv, err := server.New(cfg, server.WithRepository(repo))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create server: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("secrets server listening", "addr", addr)
		if err := srv.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)

		timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		slog.Info("server stopped")

	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}
}
