// Package main is the entry point for the stripelink API server.
//
// It loads configuration, connects the Postgres pool, wires the member
// directory, settings store, Stripe gateway, reconciliation engine and
// access policy, and serves the HTTP API with graceful shutdown on
// SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"stripelink/internal/access"
	"stripelink/internal/api/handlers"
	"stripelink/internal/auth"
	"stripelink/internal/config"
	"stripelink/internal/core"
	"stripelink/internal/db"
	"stripelink/internal/directory"
	"stripelink/internal/external"
	"stripelink/internal/reconcile"
	"stripelink/internal/settings"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("stripelink API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	// Settings: stored key/value bundle with env-level fallbacks.
	settingsRepo := settings.NewRepository(pool)
	settingsResolver := settings.NewResolver(settingsRepo, cfg.Stripe.SecretKey, cfg.Stripe.PortalConfigurationID)

	// Member directory.
	dirRepo := directory.NewRepository(pool)
	memberResolver := directory.NewResolver(dirRepo)
	customerField := directory.NewCustomerField(dirRepo, settingsResolver)

	// Stripe gateway and the reconciliation engine on top of it.
	gateway := external.NewStripeGateway(
		&http.Client{Timeout: 30 * time.Second},
		settingsResolver,
		external.StripeGatewayConfig{Logger: logger},
	)
	engine := reconcile.NewEngine(gateway, dirRepo, customerField, logger)

	policy := access.NewPolicy(settingsResolver, memberResolver, customerField)

	srv := core.NewServer(cfg, logger)
	srv.Authenticator = auth.NewAuthenticator(pool)

	stripeHandler := handlers.NewStripeHandler(
		policy,
		memberResolver,
		customerField,
		engine,
		gateway,
		cfg.Server.PublicBaseURL,
		logger,
	)
	settingsHandler := handlers.NewSettingsHandler(settingsRepo, cfg.Stripe.SecretKey, srv.Validator, logger)
	reconcileHandler := handlers.NewReconcileHandler(engine, srv.Validator, logger)

	srv.RouteRegistrars = append(srv.RouteRegistrars,
		func(r chi.Router) { stripeHandler.RegisterRoutes(r) },
		func(r chi.Router) { settingsHandler.RegisterRoutes(r) },
		func(r chi.Router) { reconcileHandler.RegisterRoutes(r) },
	)

	return serve(ctx, srv, cfg, logger)
}

// serve runs the HTTP server until the context is canceled, then shuts
// it down with a 10-second deadline.
func serve(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
