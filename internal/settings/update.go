package settings

import (
	"strings"

	"stripelink/internal/types"
)

// Update describes an admin settings save. A zero NewSecret keeps the
// stored secret; ClearSecret removes it (falling back to the environment
// source). The two are mutually exclusive.
type Update struct {
	APIKeySource          string `json:"api_key_source" validate:"required,oneof=env stored"`
	NewSecret             string `json:"new_secret"`
	ClearSecret           bool   `json:"clear_secret"`
	CustomerField         string `json:"customer_field"`
	PortalConfigurationID string `json:"portal_configuration_id"`
	ShowMemberPortalLink  bool   `json:"show_member_portal_link"`
	ShowStaffCustomerLink bool   `json:"show_staff_customer_link"`
}

// Apply validates the update against the current bundle and the
// environment-level secret and returns the new bundle to persist.
//
// Save-time invariant: when the stored source is selected, a non-empty
// secret must exist somewhere — typed in now, already stored, or present
// in the environment — unless the operator explicitly clears it.
func Apply(current Settings, upd Update, envSecret types.SecretString) (Settings, error) {
	newSecret := strings.TrimSpace(upd.NewSecret)

	if newSecret != "" && upd.ClearSecret {
		return Settings{}, types.NewAppError(
			types.ErrCodeValidationSecretClear,
			"provide a new secret or clear the stored one, not both",
			nil,
		)
	}

	if upd.APIKeySource == SourceStored && newSecret == "" && !upd.ClearSecret {
		if current.StoredSecret().IsEmpty() && envSecret.IsEmpty() {
			return Settings{}, types.NewAppError(
				types.ErrCodeValidationSecret,
				"provide a Stripe secret key here or in the environment",
				nil,
			)
		}
	}

	next := current
	next.APIKeySource = upd.APIKeySource
	next.CustomerField = strings.TrimSpace(upd.CustomerField)
	next.PortalConfigurationID = strings.TrimSpace(upd.PortalConfigurationID)
	next.ShowMemberPortalLink = upd.ShowMemberPortalLink
	next.ShowStaffCustomerLink = upd.ShowStaffCustomerLink

	switch {
	case upd.APIKeySource != SourceStored:
		// Switching to the environment source drops the stored keys so a
		// later switch back starts clean.
		next.StripeSecret = ""
		next.APIKey = ""
	case newSecret != "":
		// Keep the legacy alias in sync with the primary key.
		next.StripeSecret = types.SecretString(newSecret)
		next.APIKey = types.SecretString(newSecret)
	case upd.ClearSecret:
		next.StripeSecret = ""
		next.APIKey = ""
	}

	return next, nil
}
