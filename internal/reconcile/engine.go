// Package reconcile implements the customer-identity reconciliation
// engine: find-or-create-by-email, existing-customer-only matching, and
// batch backfill over a candidate set of members.
//
// The engine is deliberately side-effect-light. Stripe and the member
// directory are authoritative; the engine only orchestrates calls to
// them, one member at a time, with per-member error isolation so a
// single failure never aborts a batch.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"stripelink/internal/external"
	"stripelink/internal/types"
)

// Mode selects how a reconciliation run treats members with no matching
// Stripe customer.
type Mode string

const (
	// ModeFindOrCreate creates a Stripe customer when no match exists
	// (full backfill).
	ModeFindOrCreate Mode = "find_or_create"
	// ModeExistingOnly never creates; unmatched members are skipped.
	ModeExistingOnly Mode = "existing_only"
)

// memberIDMetadataKey links created Stripe customers back to the
// directory record.
const memberIDMetadataKey = "member_id"

// Gateway is the slice of the Stripe gateway the engine uses.
type Gateway interface {
	SearchCustomersByEmail(ctx context.Context, email string) ([]external.Customer, error)
	CreateCustomer(ctx context.Context, email string, metadata map[string]string) (external.Customer, error)
}

// Directory is the slice of the member directory the engine uses.
type Directory interface {
	Load(ctx context.Context, id int64) (*types.Member, error)
	CandidateIDs(ctx context.Context, field string) ([]int64, error)
}

// FieldAccessor reads and writes the configured customer-id field.
// Satisfied by *directory.CustomerField.
type FieldAccessor interface {
	Name(ctx context.Context) (string, error)
	Read(ctx context.Context, memberID int64) (string, error)
	Write(ctx context.Context, memberID int64, customerID string) error
}

// Reporter receives progress callbacks during a batch run. Implementations
// must not fail; reporting is best-effort display only.
type Reporter interface {
	Start(total int)
	Advance(r types.ReconcileResult)
	Finish(s types.ReconcileSummary)
}

// NopReporter discards all progress callbacks.
type NopReporter struct{}

func (NopReporter) Start(int)                        {}
func (NopReporter) Advance(types.ReconcileResult)    {}
func (NopReporter) Finish(types.ReconcileSummary)    {}

// Engine is the reconciliation engine.
type Engine struct {
	gateway Gateway
	dir     Directory
	field   FieldAccessor
	logger  *slog.Logger
}

// NewEngine creates an Engine over the given collaborators.
func NewEngine(gateway Gateway, dir Directory, field FieldAccessor, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		gateway: gateway,
		dir:     dir,
		field:   field,
		logger:  logger,
	}
}

// FindOrCreateByEmail returns the id of the Stripe customer for the
// email, creating one with the supplied metadata when no match exists.
// When several customers share the email, the newest by creation time
// wins.
//
// Idempotence is best-effort: the search-before-create pattern returns
// the same id on repeated calls, but two concurrent calls for the same
// email can each create a customer. That race is accepted; Stripe is the
// authority and the next reconciliation converges on the newest record.
func (e *Engine) FindOrCreateByEmail(ctx context.Context, email string, metadata map[string]string) (string, error) {
	matches, err := e.gateway.SearchCustomersByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if len(matches) > 0 {
		return matches[0].ID, nil
	}

	created, err := e.gateway.CreateCustomer(ctx, email, metadata)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

// FindExistingByEmail returns the id of the newest Stripe customer
// matching the email, or the empty string when none exists. It never
// creates.
func (e *Engine) FindExistingByEmail(ctx context.Context, email string) (string, error) {
	matches, err := e.gateway.SearchCustomersByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	return matches[0].ID, nil
}

// CandidateIDs returns the members eligible for reconciliation: the
// configured field is empty and an email is present.
func (e *Engine) CandidateIDs(ctx context.Context) ([]int64, error) {
	field, err := e.field.Name(ctx)
	if err != nil {
		return nil, err
	}
	return e.dir.CandidateIDs(ctx, field)
}

// ProcessMember reconciles a single member and reports the outcome.
// Every failure path is folded into the result rather than returned, so
// batch callers can keep going.
func (e *Engine) ProcessMember(ctx context.Context, memberID int64, mode Mode, dryRun bool) types.ReconcileResult {
	member, err := e.dir.Load(ctx, memberID)
	if err != nil {
		return types.ReconcileResult{
			Status:   types.StatusError,
			MemberID: memberID,
			Message:  "member not found",
			DryRun:   dryRun,
		}
	}

	// The field read doubles as the schema check: a field missing from
	// the directory schema is an operator error, reported before any
	// provider call is made.
	if _, err := e.field.Read(ctx, member.ID); err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeFieldNotDefined {
			return types.ReconcileResult{
				Status:   types.StatusMissingField,
				MemberID: member.ID,
				Email:    member.Email,
				Message:  "configured customer field is not defined in the directory",
				DryRun:   dryRun,
			}
		}
		return types.ReconcileResult{
			Status:   types.StatusError,
			MemberID: member.ID,
			Email:    member.Email,
			Message:  err.Error(),
			DryRun:   dryRun,
		}
	}

	if member.Email == "" {
		return types.ReconcileResult{
			Status:   types.StatusNoEmail,
			MemberID: member.ID,
			Message:  "member has no email address",
			DryRun:   dryRun,
		}
	}

	var customerID string
	switch mode {
	case ModeExistingOnly:
		customerID, err = e.FindExistingByEmail(ctx, member.Email)
	default:
		customerID, err = e.FindOrCreateByEmail(ctx, member.Email, map[string]string{
			memberIDMetadataKey: strconv.FormatInt(member.ID, 10),
		})
	}
	if err != nil {
		return types.ReconcileResult{
			Status:   types.StatusError,
			MemberID: member.ID,
			Email:    member.Email,
			Message:  err.Error(),
			DryRun:   dryRun,
		}
	}

	if customerID == "" {
		return types.ReconcileResult{
			Status:   types.StatusSkipped,
			MemberID: member.ID,
			Email:    member.Email,
			Message:  "no existing Stripe customer found for this email",
			DryRun:   dryRun,
		}
	}

	if !dryRun {
		if err := e.field.Write(ctx, member.ID, customerID); err != nil {
			return types.ReconcileResult{
				Status:     types.StatusError,
				MemberID:   member.ID,
				Email:      member.Email,
				CustomerID: customerID,
				Message:    err.Error(),
				DryRun:     dryRun,
			}
		}
	}

	return types.ReconcileResult{
		Status:     types.StatusUpdated,
		MemberID:   member.ID,
		Email:      member.Email,
		CustomerID: customerID,
		DryRun:     dryRun,
	}
}

// Backfill processes the given member ids sequentially and returns every
// per-member result plus the aggregated summary. Per-member errors are
// recorded and counted, never batch-fatal; result counts always sum to
// the number of ids given.
func (e *Engine) Backfill(ctx context.Context, memberIDs []int64, mode Mode, dryRun bool, rep Reporter) ([]types.ReconcileResult, types.ReconcileSummary) {
	if rep == nil {
		rep = NopReporter{}
	}

	rep.Start(len(memberIDs))

	results := make([]types.ReconcileResult, 0, len(memberIDs))
	var summary types.ReconcileSummary
	for _, id := range memberIDs {
		r := e.ProcessMember(ctx, id, mode, dryRun)
		results = append(results, r)
		summary.Add(r)
		rep.Advance(r)

		if r.Status == types.StatusError {
			e.logger.WarnContext(ctx, "reconciliation failed for member",
				"member_id", r.MemberID,
				"email", r.Email,
				"message", r.Message,
			)
		}
	}

	rep.Finish(summary)
	return results, summary
}
