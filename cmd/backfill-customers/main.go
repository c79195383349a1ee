// Package main is the backfill CLI: for every member that has an email
// address but no stored Stripe customer id, find the matching Stripe
// customer by email — creating one when none exists — and persist the id
// on the member record.
//
// Usage:
//
//	backfill-customers [--dry-run]
//
// With --dry-run the run reports what it would do without writing to the
// directory or creating customers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"stripelink/internal/reconcile"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report outcomes without writing anything")
	flag.Parse()

	if err := run(*dryRun, reconcile.ModeFindOrCreate); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run executes a full backfill over all candidate members.
func run(dryRun bool, mode reconcile.Mode) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, cleanup, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	ids, err := engine.CandidateIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing candidate members: %w", err)
	}

	rep := reconcile.ConsoleReporter{Out: os.Stdout}
	_, summary := engine.Backfill(ctx, ids, mode, dryRun, rep)

	if summary.Errors > 0 {
		return fmt.Errorf("%d of %d members failed", summary.Errors, summary.Total())
	}
	return nil
}

// newLogger creates the CLI logger. Batch runs log to stderr so stdout
// stays clean for the progress output.
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
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
