package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stripelink/internal/types"
)

func TestApply_NewSecretSyncsBothKeys(t *testing.T) {
	current := Settings{APIKeySource: SourceEnv}
	upd := Update{
		APIKeySource: SourceStored,
		NewSecret:    "  sk_live_new1234  ",
	}

	next, err := Apply(current, upd, "")
	require.NoError(t, err)

	assert.Equal(t, SourceStored, next.APIKeySource)
	assert.Equal(t, "sk_live_new1234", next.StripeSecret.Unmask())
	assert.Equal(t, "sk_live_new1234", next.APIKey.Unmask())
}

func TestApply_SecretAndClearConflict(t *testing.T) {
	upd := Update{
		APIKeySource: SourceStored,
		NewSecret:    "sk_live_new",
		ClearSecret:  true,
	}

	_, err := Apply(Settings{}, upd, "")
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationSecretClear, types.CodeOf(err))
}

func TestApply_StoredSourceRequiresASecretSomewhere(t *testing.T) {
	upd := Update{APIKeySource: SourceStored}

	// No typed secret, nothing stored, nothing in the environment.
	_, err := Apply(Settings{}, upd, "")
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationSecret, types.CodeOf(err))

	// An already-stored secret satisfies the invariant.
	next, err := Apply(Settings{StripeSecret: "sk_existing"}, upd, "")
	require.NoError(t, err)
	assert.Equal(t, "sk_existing", next.StripeSecret.Unmask())

	// A legacy-alias secret satisfies it too.
	next, err = Apply(Settings{APIKey: "sk_legacy"}, upd, "")
	require.NoError(t, err)
	assert.Equal(t, "sk_legacy", next.APIKey.Unmask())

	// So does an environment secret.
	_, err = Apply(Settings{}, upd, "sk_env")
	require.NoError(t, err)
}

func TestApply_ClearSecretRemovesBothKeys(t *testing.T) {
	current := Settings{
		APIKeySource: SourceStored,
		StripeSecret: "sk_old",
		APIKey:       "sk_old",
	}
	upd := Update{APIKeySource: SourceStored, ClearSecret: true}

	next, err := Apply(current, upd, "")
	require.NoError(t, err)
	assert.True(t, next.StripeSecret.IsEmpty())
	assert.True(t, next.APIKey.IsEmpty())
}

func TestApply_EnvSourceDropsStoredKeys(t *testing.T) {
	current := Settings{
		APIKeySource: SourceStored,
		StripeSecret: "sk_old",
		APIKey:       "sk_old",
	}
	upd := Update{APIKeySource: SourceEnv}

	next, err := Apply(current, upd, "sk_env")
	require.NoError(t, err)
	assert.Equal(t, SourceEnv, next.APIKeySource)
	assert.True(t, next.StripeSecret.IsEmpty())
	assert.True(t, next.APIKey.IsEmpty())
}

func TestApply_CopiesFieldsAndFlags(t *testing.T) {
	upd := Update{
		APIKeySource:          SourceEnv,
		CustomerField:         " field_billing_ref ",
		PortalConfigurationID: " bpc_123 ",
		ShowMemberPortalLink:  true,
		ShowStaffCustomerLink: true,
	}

	next, err := Apply(Settings{}, upd, "sk_env")
	require.NoError(t, err)
	assert.Equal(t, "field_billing_ref", next.CustomerField)
	assert.Equal(t, "bpc_123", next.PortalConfigurationID)
	assert.True(t, next.ShowMemberPortalLink)
	assert.True(t, next.ShowStaffCustomerLink)
}

func TestApply_KeepsStoredSecretByDefault(t *testing.T) {
	current := Settings{
		APIKeySource: SourceStored,
		StripeSecret: "sk_keep",
		APIKey:       "sk_keep",
	}
	upd := Update{APIKeySource: SourceStored}

	next, err := Apply(current, upd, "")
	require.NoError(t, err)
	assert.Equal(t, "sk_keep", next.StripeSecret.Unmask())
	assert.Equal(t, "sk_keep", next.APIKey.Unmask())
}
