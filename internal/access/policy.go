// Package access implements the state-free authorization predicates for
// the two user-facing operations: staff opening a Stripe customer, and a
// member (or staff) opening the billing portal.
package access

import (
	"context"
	"errors"

	"stripelink/internal/settings"
	"stripelink/internal/types"
)

// Decision is the outcome of a policy check. Neutral means the policy
// has no opinion (an unrecognized action) and the caller should defer to
// other policies.
type Decision int

const (
	Neutral Decision = iota
	Allowed
	Denied
)

// Action names understood by Authorize.
const (
	ActionOpenCustomer = "open-customer"
	ActionOpenPortal   = "open-portal"
)

// SettingsSource loads the current settings bundle. Satisfied by
// *settings.Resolver.
type SettingsSource interface {
	Settings(ctx context.Context) (settings.Settings, error)
}

// TargetResolver resolves a raw member reference. Satisfied by
// *directory.Resolver.
type TargetResolver interface {
	Resolve(ctx context.Context, raw string) (*types.Member, error)
}

// FieldReader reads the stored customer id for a member. Satisfied by
// *directory.CustomerField.
type FieldReader interface {
	Read(ctx context.Context, memberID int64) (string, error)
}

// Policy evaluates the access predicates. It holds no state of its own;
// every check re-reads the settings flags so flag changes apply
// immediately.
type Policy struct {
	settings SettingsSource
	resolver TargetResolver
	field    FieldReader
}

// NewPolicy creates a Policy over the given collaborators.
func NewPolicy(s SettingsSource, r TargetResolver, f FieldReader) *Policy {
	return &Policy{settings: s, resolver: r, field: f}
}

// Authorize dispatches by action name. Unrecognized actions are Neutral.
func (p *Policy) Authorize(ctx context.Context, action string, actor types.Actor, rawTarget string) (Decision, error) {
	switch action {
	case ActionOpenCustomer:
		return p.CanOpenCustomer(ctx, actor)
	case ActionOpenPortal:
		return p.CanOpenPortal(ctx, actor, rawTarget)
	default:
		return Neutral, nil
	}
}

// CanOpenCustomer gates the staff action of opening another member's
// Stripe customer record: the staff link feature must be enabled AND the
// actor must hold the "open stripe customer" permission. The flag check
// comes first so disabling the feature denies everyone regardless of
// permissions.
func (p *Policy) CanOpenCustomer(ctx context.Context, actor types.Actor) (Decision, error) {
	s, err := p.settings.Settings(ctx)
	if err != nil {
		return Denied, err
	}
	if !s.ShowStaffCustomerLink {
		return Denied, nil
	}
	if !actor.HasPermission(types.PermOpenCustomer) {
		return Denied, nil
	}
	return Allowed, nil
}

// CanOpenPortal gates the billing-portal redirect: the member portal
// feature must be enabled, the target reference must resolve, the target
// must have a stored customer id, and the actor must either be the
// target member or hold the "open stripe portal" permission.
//
// The stored-customer requirement is the defensive variant of this
// check: the portal link is only offered for members it can work for,
// and the decision depends on the target member's record, not just the
// actor's permission set.
func (p *Policy) CanOpenPortal(ctx context.Context, actor types.Actor, rawTarget string) (Decision, error) {
	s, err := p.settings.Settings(ctx)
	if err != nil {
		return Denied, err
	}
	if !s.ShowMemberPortalLink {
		return Denied, nil
	}

	target, err := p.resolver.Resolve(ctx, rawTarget)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundMember {
			return Denied, nil
		}
		return Denied, err
	}

	customerID, err := p.field.Read(ctx, target.ID)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeFieldNotDefined {
			// A misconfigured field means the portal cannot work; deny
			// rather than error so the check stays a pure predicate.
			return Denied, nil
		}
		return Denied, err
	}
	if customerID == "" {
		return Denied, nil
	}

	if actor.MemberID == target.ID || actor.HasPermission(types.PermOpenPortal) {
		return Allowed, nil
	}
	return Denied, nil
}
