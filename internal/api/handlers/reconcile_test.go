package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stripelink/internal/core"
	"stripelink/internal/reconcile"
	"stripelink/internal/types"
)

type fakeReconciler struct {
	ids     []int64
	idsErr  error
	summary types.ReconcileSummary

	gotIDs    []int64
	gotMode   reconcile.Mode
	gotDryRun bool
}

func (f *fakeReconciler) CandidateIDs(context.Context) ([]int64, error) {
	return f.ids, f.idsErr
}

func (f *fakeReconciler) Backfill(_ context.Context, memberIDs []int64, mode reconcile.Mode, dryRun bool, _ reconcile.Reporter) ([]types.ReconcileResult, types.ReconcileSummary) {
	f.gotIDs = memberIDs
	f.gotMode = mode
	f.gotDryRun = dryRun
	return nil, f.summary
}

func reconcileRouter(engine *fakeReconciler, actor types.Actor) chi.Router {
	h := NewReconcileHandler(engine, core.NewValidator(discardLogger()), discardLogger())
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(types.WithActor(req.Context(), actor)))
		})
	})
	h.RegisterRoutes(r)
	return r
}

func postReconcile(t *testing.T, r chi.Router, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/admin/stripe/reconcile", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRunReconcile_DefaultsToExistingOnly(t *testing.T) {
	engine := &fakeReconciler{
		ids:     []int64{3, 7, 21},
		summary: types.ReconcileSummary{Updated: 2, Skipped: 1},
	}
	r := reconcileRouter(engine, adminActor())

	w := postReconcile(t, r, `{}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, reconcile.ModeExistingOnly, engine.gotMode)
	assert.Equal(t, []int64{3, 7, 21}, engine.gotIDs)
	assert.False(t, engine.gotDryRun)

	var resp struct {
		Data RunReconcileResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "existing_only", resp.Data.Mode)
	assert.Equal(t, 3, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Summary.Updated)
	assert.Equal(t, 1, resp.Data.Summary.Skipped)
}

func TestRunReconcile_FindOrCreateDryRun(t *testing.T) {
	engine := &fakeReconciler{summary: types.ReconcileSummary{}}
	r := reconcileRouter(engine, adminActor())

	w := postReconcile(t, r, `{"mode": "find_or_create", "dry_run": true}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, reconcile.ModeFindOrCreate, engine.gotMode)
	assert.True(t, engine.gotDryRun)

	var resp struct {
		Data RunReconcileResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.DryRun)
	assert.Equal(t, "find_or_create", resp.Data.Mode)
}

func TestRunReconcile_PerMemberFailuresAreNotRequestFailures(t *testing.T) {
	engine := &fakeReconciler{
		ids:     []int64{1, 2},
		summary: types.ReconcileSummary{Updated: 1, Errors: 1},
	}
	r := reconcileRouter(engine, adminActor())

	w := postReconcile(t, r, `{}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data RunReconcileResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Summary.Errors)
	assert.Equal(t, 2, resp.Data.Total)
}

func TestRunReconcile_RequiresPermission(t *testing.T) {
	engine := &fakeReconciler{}
	r := reconcileRouter(engine, types.Actor{MemberID: 2, Name: "member"})

	w := postReconcile(t, r, `{}`)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Nil(t, engine.gotIDs)
}

func TestRunReconcile_RejectsUnknownMode(t *testing.T) {
	engine := &fakeReconciler{}
	r := reconcileRouter(engine, adminActor())

	w := postReconcile(t, r, `{"mode": "full_resync"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, engine.gotIDs)
}

func TestRunReconcile_CandidateQueryFailure(t *testing.T) {
	engine := &fakeReconciler{
		idsErr: types.NewAppError(types.ErrCodeInternalDB, "selecting candidates failed", nil),
	}
	r := reconcileRouter(engine, adminActor())

	w := postReconcile(t, r, `{}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
