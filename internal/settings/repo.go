package settings

import (
	"context"
	"strconv"

	"stripelink/internal/db"
	"stripelink/internal/types"
)

// Bundle keys as stored in the stripe_settings table. The legacy
// "api_key" key is preserved alongside "stripe_secret" for bundles
// written by earlier releases.
const (
	keyAPIKeySource          = "api_key_source"
	keyStripeSecret          = "stripe_secret"
	keyAPIKey                = "api_key"
	keyCustomerField         = "customer_field"
	keyPortalConfigurationID = "portal_configuration_id"
	keyShowMemberPortalLink  = "show_member_portal_link"
	keyShowStaffCustomerLink = "show_staff_customer_link"
)

// Repository persists the settings bundle as key/value rows:
//
//	CREATE TABLE stripe_settings (
//	    key   TEXT PRIMARY KEY,
//	    value TEXT NOT NULL
//	);
//
// A bundle with no rows loads as the zero Settings, which resolves to
// the environment secret source and the default customer field.
type Repository struct {
	db db.DBTX
}

// NewRepository creates a Repository backed by the given database handle.
func NewRepository(dbtx db.DBTX) *Repository {
	return &Repository{db: dbtx}
}

// Load reads the full bundle.
func (r *Repository) Load(ctx context.Context) (Settings, error) {
	rows, err := r.db.Query(ctx, `SELECT key, value FROM stripe_settings`)
	if err != nil {
		return Settings{}, types.NewAppError(types.ErrCodeInternalDB, "failed to load settings", err)
	}
	defer rows.Close()

	var s Settings
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Settings{}, types.NewAppError(types.ErrCodeInternalDB, "failed to scan settings row", err)
		}
		switch key {
		case keyAPIKeySource:
			s.APIKeySource = value
		case keyStripeSecret:
			s.StripeSecret = types.SecretString(value)
		case keyAPIKey:
			s.APIKey = types.SecretString(value)
		case keyCustomerField:
			s.CustomerField = value
		case keyPortalConfigurationID:
			s.PortalConfigurationID = value
		case keyShowMemberPortalLink:
			s.ShowMemberPortalLink, _ = strconv.ParseBool(value)
		case keyShowStaffCustomerLink:
			s.ShowStaffCustomerLink, _ = strconv.ParseBool(value)
		}
	}
	if err := rows.Err(); err != nil {
		return Settings{}, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate settings rows", err)
	}
	return s, nil
}

// Save upserts the full bundle. Callers wanting atomicity pass a pgx.Tx
// as the repository's DBTX.
func (r *Repository) Save(ctx context.Context, s Settings) error {
	pairs := []struct {
		key   string
		value string
	}{
		{keyAPIKeySource, s.APIKeySource},
		{keyStripeSecret, s.StripeSecret.Unmask()},
		{keyAPIKey, s.APIKey.Unmask()},
		{keyCustomerField, s.CustomerField},
		{keyPortalConfigurationID, s.PortalConfigurationID},
		{keyShowMemberPortalLink, strconv.FormatBool(s.ShowMemberPortalLink)},
		{keyShowStaffCustomerLink, strconv.FormatBool(s.ShowStaffCustomerLink)},
	}

	for _, p := range pairs {
		_, err := r.db.Exec(ctx,
			`INSERT INTO stripe_settings (key, value) VALUES ($1, $2)
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
			p.key, p.value,
		)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to save setting "+p.key, err)
		}
	}
	return nil
}
