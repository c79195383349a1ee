// Package settings holds the admin-editable runtime settings bundle for
// the Stripe link: which secret source is active, the stored secret keys,
// the member field that stores the Stripe customer id, the billing-portal
// configuration, and the two feature flags gating the user-facing links.
//
// The bundle is stored in the database (see Repository) so that operators
// can change it without a redeploy. Deployment-level values (the
// environment Stripe secret, the environment portal configuration) come
// from internal/config and act as fallbacks.
package settings

import (
	"context"

	"stripelink/internal/types"
)

// APIKeySource values. "stored" reads the secret from the saved bundle,
// "env" from the deployment environment.
const (
	SourceEnv    = "env"
	SourceStored = "stored"
)

// DefaultCustomerField is the member field consulted when no field has
// been configured.
const DefaultCustomerField = "field_stripe_customer_id"

// Settings is the runtime settings bundle.
//
// StripeSecret and APIKey are mutually redundant: APIKey is the legacy
// field name from earlier releases. Reads check StripeSecret first and
// fall back to APIKey; writes keep both in sync. Both fields must remain
// so that existing stored bundles keep working.
type Settings struct {
	APIKeySource          string             `json:"api_key_source"`
	StripeSecret          types.SecretString `json:"stripe_secret"`
	APIKey                types.SecretString `json:"api_key"`
	CustomerField         string             `json:"customer_field"`
	PortalConfigurationID string             `json:"portal_configuration_id"`
	ShowMemberPortalLink  bool               `json:"show_member_portal_link"`
	ShowStaffCustomerLink bool               `json:"show_staff_customer_link"`
}

// CustomerFieldName returns the configured member field name, or the
// default when unset.
func (s Settings) CustomerFieldName() string {
	if s.CustomerField != "" {
		return s.CustomerField
	}
	return DefaultCustomerField
}

// StoredSecret returns the secret held in the bundle, checking the
// primary key and then the legacy alias.
func (s Settings) StoredSecret() types.SecretString {
	if !s.StripeSecret.IsEmpty() {
		return s.StripeSecret
	}
	return s.APIKey
}

// Store provides access to the persisted settings bundle.
type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// Resolver combines the stored bundle with the environment-level
// fallbacks and answers the per-call questions the gateway and the
// reconciliation engine ask: which secret, which portal configuration,
// which customer field.
type Resolver struct {
	store           Store
	envSecret       types.SecretString
	envPortalConfig string
}

// NewResolver creates a Resolver over the given store and the
// environment-level fallback values.
func NewResolver(store Store, envSecret types.SecretString, envPortalConfig string) *Resolver {
	return &Resolver{
		store:           store,
		envSecret:       envSecret,
		envPortalConfig: envPortalConfig,
	}
}

// Settings loads the current bundle.
func (r *Resolver) Settings(ctx context.Context) (Settings, error) {
	return r.store.Load(ctx)
}

// Secret resolves the active Stripe secret.
//
// Policy: if the stored source is selected, use the stored secret
// (primary key, then legacy alias). Otherwise use the environment
// secret; if that is empty, fall back to the stored secret anyway.
// The dual fallback lets deployments mid-migration between sources keep
// working, and is intentional behavior rather than an oversight.
// An empty result is returned as-is; callers decide whether that is a
// billing_not_configured condition.
func (r *Resolver) Secret(ctx context.Context) (types.SecretString, error) {
	s, err := r.store.Load(ctx)
	if err != nil {
		return "", err
	}
	return r.resolveSecret(s), nil
}

func (r *Resolver) resolveSecret(s Settings) types.SecretString {
	if s.APIKeySource == SourceStored {
		return s.StoredSecret()
	}
	if !r.envSecret.IsEmpty() {
		return r.envSecret
	}
	return s.StoredSecret()
}

// PortalConfiguration resolves the default billing-portal configuration
// id: the stored value wins, then the environment value; empty means no
// configuration parameter is sent to Stripe.
func (r *Resolver) PortalConfiguration(ctx context.Context) (string, error) {
	s, err := r.store.Load(ctx)
	if err != nil {
		return "", err
	}
	if s.PortalConfigurationID != "" {
		return s.PortalConfigurationID, nil
	}
	return r.envPortalConfig, nil
}

// CustomerField resolves the configured member field name.
func (r *Resolver) CustomerField(ctx context.Context) (string, error) {
	s, err := r.store.Load(ctx)
	if err != nil {
		return "", err
	}
	return s.CustomerFieldName(), nil
}
