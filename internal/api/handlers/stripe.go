// Package handlers contains the HTTP handler implementations for the
// stripelink API. Service contracts are defined locally per handler file
// and injected through constructors, which keeps handlers decoupled from
// concrete types and easy to mock in tests.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"stripelink/internal/access"
	"stripelink/internal/core"
	"stripelink/internal/types"
)

// --- Service interfaces ---

// AccessPolicy gates the two redirect operations.
type AccessPolicy interface {
	CanOpenCustomer(ctx context.Context, actor types.Actor) (access.Decision, error)
	CanOpenPortal(ctx context.Context, actor types.Actor, rawTarget string) (access.Decision, error)
}

// MemberResolver resolves raw member references from the route.
type MemberResolver interface {
	Resolve(ctx context.Context, raw string) (*types.Member, error)
}

// CustomerFieldAccessor reads and writes the stored customer id.
type CustomerFieldAccessor interface {
	Read(ctx context.Context, memberID int64) (string, error)
	Write(ctx context.Context, memberID int64, customerID string) error
}

// CustomerMatcher finds or creates the Stripe customer for an email.
// Satisfied by *reconcile.Engine.
type CustomerMatcher interface {
	FindOrCreateByEmail(ctx context.Context, email string, metadata map[string]string) (string, error)
}

// PortalGateway is the slice of the Stripe gateway the redirect handlers
// use.
type PortalGateway interface {
	CreatePortalSession(ctx context.Context, customerID, returnURL, configurationID string) (string, error)
	CustomerDashboardURL(ctx context.Context, customerID string) (string, error)
}

// --- Stripe handler ---

// StripeHandler serves the two redirect flows: staff opening a member's
// Stripe customer record, and a member (or staff) opening the billing
// portal.
type StripeHandler struct {
	policy        AccessPolicy
	resolver      MemberResolver
	field         CustomerFieldAccessor
	matcher       CustomerMatcher
	gateway       PortalGateway
	publicBaseURL string
	logger        *slog.Logger
}

// NewStripeHandler creates a StripeHandler.
func NewStripeHandler(
	policy AccessPolicy,
	resolver MemberResolver,
	field CustomerFieldAccessor,
	matcher CustomerMatcher,
	gateway PortalGateway,
	publicBaseURL string,
	logger *slog.Logger,
) *StripeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeHandler{
		policy:        policy,
		resolver:      resolver,
		field:         field,
		matcher:       matcher,
		gateway:       gateway,
		publicBaseURL: publicBaseURL,
		logger:        logger,
	}
}

// RegisterRoutes mounts the redirect endpoints.
func (h *StripeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/admin/stripe/open-customer/{member}", h.OpenCustomer)
	r.Get("/members/{member}/billing/stripe", h.OpenPortal)
}

// memberIDMetadataKey mirrors the key written by the reconciliation
// engine so customers created from either path look the same in Stripe.
const memberIDMetadataKey = "member_id"

// OpenCustomer handles GET /admin/stripe/open-customer/{member}.
//
// Flow: authorize (staff flag + permission), resolve the member, read
// the stored customer id, lazily find-or-create on a miss and persist
// the result, then redirect to the Stripe customer dashboard. Billing
// failures redirect back to the member page with a message rather than
// surfacing an error page; the operation is a convenience link, not a
// transaction.
func (h *StripeHandler) OpenCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := types.GetActor(ctx)

	decision, err := h.policy.CanOpenCustomer(ctx, actor)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if decision != access.Allowed {
		core.Error(w, r, types.NewAppError(
			types.ErrCodePermissionDenied,
			"opening Stripe customers is not permitted",
			nil,
		))
		return
	}

	raw := chi.URLParam(r, "member")
	member, err := h.resolver.Resolve(ctx, raw)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	customerID, err := h.field.Read(ctx, member.ID)
	if err != nil {
		// A misconfigured field is an operator problem; send the staff
		// member back with the explanation instead of a dead end.
		h.redirectBack(w, r, member.ID, err)
		return
	}

	if customerID == "" {
		if member.Email == "" {
			h.redirectBack(w, r, member.ID, types.NewAppError(
				types.ErrCodeValidationInvalidEmail,
				"member has no email; cannot match a Stripe customer",
				nil,
			))
			return
		}

		customerID, err = h.matcher.FindOrCreateByEmail(ctx, member.Email, map[string]string{
			memberIDMetadataKey: strconv.FormatInt(member.ID, 10),
		})
		if err != nil {
			h.redirectBack(w, r, member.ID, err)
			return
		}
		if err := h.field.Write(ctx, member.ID, customerID); err != nil {
			h.redirectBack(w, r, member.ID, err)
			return
		}
	}

	dashboardURL, err := h.gateway.CustomerDashboardURL(ctx, customerID)
	if err != nil {
		h.redirectBack(w, r, member.ID, err)
		return
	}

	http.Redirect(w, r, dashboardURL, http.StatusFound)
}

// OpenPortal handles GET /members/{member}/billing/stripe.
//
// The portal flow never creates a customer: a member without a stored
// customer id is denied by the access policy before this handler runs
// the redirect.
func (h *StripeHandler) OpenPortal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := types.GetActor(ctx)
	raw := chi.URLParam(r, "member")

	decision, err := h.policy.CanOpenPortal(ctx, actor, raw)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if decision != access.Allowed {
		core.Error(w, r, types.NewAppError(
			types.ErrCodePermissionDenied,
			"opening the billing portal is not permitted",
			nil,
		))
		return
	}

	member, err := h.resolver.Resolve(ctx, raw)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	customerID, err := h.field.Read(ctx, member.ID)
	if err != nil {
		h.redirectBack(w, r, member.ID, err)
		return
	}
	if customerID == "" {
		h.redirectBack(w, r, member.ID, types.NewAppError(
			types.ErrCodeNotConfigured,
			"no Stripe customer id is stored for this member",
			nil,
		))
		return
	}

	returnURL := h.memberPageURL(member.ID, "")
	portalURL, err := h.gateway.CreatePortalSession(ctx, customerID, returnURL, "")
	if err != nil {
		h.redirectBack(w, r, member.ID, err)
		return
	}

	http.Redirect(w, r, portalURL, http.StatusFound)
}

// redirectBack sends the browser to the member page with the failure
// explanation as a query parameter. Billing failures must land the user
// on a safe page, never a generic error page.
func (h *StripeHandler) redirectBack(w http.ResponseWriter, r *http.Request, memberID int64, cause error) {
	var message string
	var appErr *types.AppError
	if errors.As(cause, &appErr) {
		message = appErr.Message
	} else if cause != nil {
		message = "an unexpected billing error occurred"
	}

	h.logger.WarnContext(r.Context(), "redirecting back after billing failure",
		"member_id", memberID,
		"error", cause,
	)

	http.Redirect(w, r, h.memberPageURL(memberID, message), http.StatusSeeOther)
}

// memberPageURL builds the member profile URL, optionally with a
// stripe_message query parameter.
func (h *StripeHandler) memberPageURL(memberID int64, message string) string {
	target := h.publicBaseURL + "/members/" + strconv.FormatInt(memberID, 10)
	if message != "" {
		target += "?stripe_message=" + url.QueryEscape(message)
	}
	return target
}
