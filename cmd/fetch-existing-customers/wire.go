package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"stripelink/internal/config"
	"stripelink/internal/db"
	"stripelink/internal/directory"
	"stripelink/internal/external"
	"stripelink/internal/reconcile"
	"stripelink/internal/settings"
)

// buildEngine loads configuration, connects the database pool and
// assembles the reconciliation engine. The returned cleanup closes the
// pool.
func buildEngine(ctx context.Context) (*reconcile.Engine, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	settingsRepo := settings.NewRepository(pool)
	settingsResolver := settings.NewResolver(settingsRepo, cfg.Stripe.SecretKey, cfg.Stripe.PortalConfigurationID)

	dirRepo := directory.NewRepository(pool)
	customerField := directory.NewCustomerField(dirRepo, settingsResolver)

	gateway := external.NewStripeGateway(
		&http.Client{Timeout: 30 * time.Second},
		settingsResolver,
		external.StripeGatewayConfig{Logger: logger},
	)

	engine := reconcile.NewEngine(gateway, dirRepo, customerField, logger)
	return engine, pool.Close, nil
}
