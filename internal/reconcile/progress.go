package reconcile

import (
	"fmt"
	"io"

	"stripelink/internal/types"
)

// ConsoleReporter prints per-member outcomes and the final summary to a
// writer. Used by the batch CLIs.
type ConsoleReporter struct {
	Out io.Writer
}

// Start prints the run header.
func (c ConsoleReporter) Start(total int) {
	if total == 0 {
		fmt.Fprintln(c.Out, "no members to process")
		return
	}
	fmt.Fprintf(c.Out, "processing %d members\n", total)
}

// Advance prints one member's outcome.
func (c ConsoleReporter) Advance(r types.ReconcileResult) {
	prefix := ""
	if r.DryRun {
		prefix = "[dry-run] "
	}

	switch r.Status {
	case types.StatusUpdated:
		fmt.Fprintf(c.Out, "%smember %d (%s): customer %s\n", prefix, r.MemberID, r.Email, r.CustomerID)
	case types.StatusSkipped:
		fmt.Fprintf(c.Out, "%smember %d (%s): no existing customer; skipped\n", prefix, r.MemberID, r.Email)
	case types.StatusMissingField:
		fmt.Fprintf(c.Out, "%smember %d (%s): customer field is not defined\n", prefix, r.MemberID, r.Email)
	case types.StatusNoEmail:
		fmt.Fprintf(c.Out, "%smember %d: no email address\n", prefix, r.MemberID)
	default:
		fmt.Fprintf(c.Out, "%smember %d (%s): error: %s\n", prefix, r.MemberID, r.Email, r.Message)
	}
}

// Finish prints the aggregated counts.
func (c ConsoleReporter) Finish(s types.ReconcileSummary) {
	fmt.Fprintf(c.Out, "done: updated %d, skipped %d, missing field %d, no email %d, errors %d\n",
		s.Updated, s.Skipped, s.MissingField, s.NoEmail, s.Errors)
}
