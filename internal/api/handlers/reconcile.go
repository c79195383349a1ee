package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stripelink/internal/core"
	"stripelink/internal/reconcile"
	"stripelink/internal/types"
)

// Reconciler is the slice of the reconciliation engine the admin
// endpoint uses.
type Reconciler interface {
	CandidateIDs(ctx context.Context) ([]int64, error)
	Backfill(ctx context.Context, memberIDs []int64, mode reconcile.Mode, dryRun bool, rep reconcile.Reporter) ([]types.ReconcileResult, types.ReconcileSummary)
}

// RunReconcileRequest is the request body for POST /admin/stripe/reconcile.
// Mode defaults to existing-only, matching the admin-form behavior of
// matching against Stripe's customer list without creating records.
type RunReconcileRequest struct {
	DryRun bool   `json:"dry_run"`
	Mode   string `json:"mode" validate:"omitempty,oneof=existing_only find_or_create"`
}

// RunReconcileResponse reports the aggregated outcome of a run.
type RunReconcileResponse struct {
	DryRun  bool                   `json:"dry_run"`
	Mode    string                 `json:"mode"`
	Total   int                    `json:"total"`
	Summary types.ReconcileSummary `json:"summary"`
}

// ReconcileHandler serves the admin reconciliation endpoint, the API
// counterpart of the batch CLIs.
type ReconcileHandler struct {
	engine    Reconciler
	validator *core.Validator
	logger    *slog.Logger
}

// NewReconcileHandler creates a ReconcileHandler.
func NewReconcileHandler(engine Reconciler, v *core.Validator, logger *slog.Logger) *ReconcileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileHandler{engine: engine, validator: v, logger: logger}
}

// RegisterRoutes mounts the reconcile endpoint.
func (h *ReconcileHandler) RegisterRoutes(r chi.Router) {
	r.Post("/admin/stripe/reconcile", h.Run)
}

// Run handles POST /admin/stripe/reconcile: select candidates, process
// them synchronously, and return the summary. Per-member failures are
// counted in the summary, never surfaced as a request failure.
func (h *ReconcileHandler) Run(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, types.PermAdministerSettings) {
		return
	}

	var req RunReconcileRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	mode := reconcile.ModeExistingOnly
	if req.Mode == string(reconcile.ModeFindOrCreate) {
		mode = reconcile.ModeFindOrCreate
	}

	ids, err := h.engine.CandidateIDs(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	_, summary := h.engine.Backfill(r.Context(), ids, mode, req.DryRun, nil)

	h.logger.InfoContext(r.Context(), "reconciliation run finished",
		"mode", string(mode),
		"dry_run", req.DryRun,
		"total", summary.Total(),
		"updated", summary.Updated,
		"errors", summary.Errors,
	)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: RunReconcileResponse{
		DryRun:  req.DryRun,
		Mode:    string(mode),
		Total:   summary.Total(),
		Summary: summary,
	}})
}
