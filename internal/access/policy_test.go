package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stripelink/internal/settings"
	"stripelink/internal/types"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeSettings struct {
	s   settings.Settings
	err error
}

func (f *fakeSettings) Settings(context.Context) (settings.Settings, error) {
	return f.s, f.err
}

type fakeResolver struct {
	members map[string]*types.Member
}

func (f *fakeResolver) Resolve(_ context.Context, raw string) (*types.Member, error) {
	if m, ok := f.members[raw]; ok {
		return m, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundMember, "member not found", nil)
}

type fakeFieldReader struct {
	values  map[int64]string
	readErr error
}

func (f *fakeFieldReader) Read(_ context.Context, memberID int64) (string, error) {
	if f.readErr != nil {
		return "", f.readErr
	}
	return f.values[memberID], nil
}

func bothFlagsOn() *fakeSettings {
	return &fakeSettings{s: settings.Settings{
		ShowMemberPortalLink:  true,
		ShowStaffCustomerLink: true,
	}}
}

// ---------------------------------------------------------------------------
// CanOpenCustomer
// ---------------------------------------------------------------------------

func TestCanOpenCustomer(t *testing.T) {
	staff := types.Actor{MemberID: 1, Permissions: []string{types.PermOpenCustomer}}
	nobody := types.Actor{MemberID: 2}

	t.Run("staff with permission allowed", func(t *testing.T) {
		p := NewPolicy(bothFlagsOn(), &fakeResolver{}, &fakeFieldReader{})
		d, err := p.CanOpenCustomer(context.Background(), staff)
		require.NoError(t, err)
		assert.Equal(t, Allowed, d)
	})

	t.Run("missing permission denied", func(t *testing.T) {
		p := NewPolicy(bothFlagsOn(), &fakeResolver{}, &fakeFieldReader{})
		d, err := p.CanOpenCustomer(context.Background(), nobody)
		require.NoError(t, err)
		assert.Equal(t, Denied, d)
	})

	t.Run("disabled flag denies everyone", func(t *testing.T) {
		// The flag takes precedence over any permission.
		p := NewPolicy(&fakeSettings{}, &fakeResolver{}, &fakeFieldReader{})
		d, err := p.CanOpenCustomer(context.Background(), staff)
		require.NoError(t, err)
		assert.Equal(t, Denied, d)
	})
}

// ---------------------------------------------------------------------------
// CanOpenPortal
// ---------------------------------------------------------------------------

func TestCanOpenPortal(t *testing.T) {
	resolver := &fakeResolver{members: map[string]*types.Member{
		"7": {ID: 7, Email: "alice@example.com"},
		"8": {ID: 8, Email: "bob@example.com"},
	}}
	linked := &fakeFieldReader{values: map[int64]string{7: "cus_abc"}}

	self := types.Actor{MemberID: 7}
	staff := types.Actor{MemberID: 1, Permissions: []string{types.PermOpenPortal}}
	other := types.Actor{MemberID: 2}

	t.Run("member opens own portal", func(t *testing.T) {
		p := NewPolicy(bothFlagsOn(), resolver, linked)
		d, err := p.CanOpenPortal(context.Background(), self, "7")
		require.NoError(t, err)
		assert.Equal(t, Allowed, d)
	})

	t.Run("staff with permission opens another member's portal", func(t *testing.T) {
		p := NewPolicy(bothFlagsOn(), resolver, linked)
		d, err := p.CanOpenPortal(context.Background(), staff, "7")
		require.NoError(t, err)
		assert.Equal(t, Allowed, d)
	})

	t.Run("non-self without permission denied", func(t *testing.T) {
		p := NewPolicy(bothFlagsOn(), resolver, linked)
		d, err := p.CanOpenPortal(context.Background(), other, "7")
		require.NoError(t, err)
		assert.Equal(t, Denied, d)
	})

	t.Run("disabled flag denies even self", func(t *testing.T) {
		p := NewPolicy(&fakeSettings{}, resolver, linked)
		d, err := p.CanOpenPortal(context.Background(), self, "7")
		require.NoError(t, err)
		assert.Equal(t, Denied, d)
	})

	t.Run("unresolvable target denied", func(t *testing.T) {
		p := NewPolicy(bothFlagsOn(), resolver, linked)
		d, err := p.CanOpenPortal(context.Background(), staff, "999")
		require.NoError(t, err)
		assert.Equal(t, Denied, d)
	})

	t.Run("target without stored customer denied", func(t *testing.T) {
		// Member 8 resolves but has no linked customer yet.
		p := NewPolicy(bothFlagsOn(), resolver, linked)
		d, err := p.CanOpenPortal(context.Background(), types.Actor{MemberID: 8}, "8")
		require.NoError(t, err)
		assert.Equal(t, Denied, d)
	})

	t.Run("undefined customer field denied not errored", func(t *testing.T) {
		broken := &fakeFieldReader{readErr: types.NewAppError(types.ErrCodeFieldNotDefined, "field not defined", nil)}
		p := NewPolicy(bothFlagsOn(), resolver, broken)
		d, err := p.CanOpenPortal(context.Background(), self, "7")
		require.NoError(t, err)
		assert.Equal(t, Denied, d)
	})
}

// ---------------------------------------------------------------------------
// Authorize dispatch
// ---------------------------------------------------------------------------

func TestAuthorize(t *testing.T) {
	resolver := &fakeResolver{members: map[string]*types.Member{
		"7": {ID: 7},
	}}
	linked := &fakeFieldReader{values: map[int64]string{7: "cus_abc"}}
	p := NewPolicy(bothFlagsOn(), resolver, linked)

	staff := types.Actor{MemberID: 1, Permissions: []string{types.PermOpenCustomer, types.PermOpenPortal}}

	d, err := p.Authorize(context.Background(), ActionOpenCustomer, staff, "")
	require.NoError(t, err)
	assert.Equal(t, Allowed, d)

	d, err = p.Authorize(context.Background(), ActionOpenPortal, staff, "7")
	require.NoError(t, err)
	assert.Equal(t, Allowed, d)

	// Unrecognized actions are none of this policy's business.
	d, err = p.Authorize(context.Background(), "delete-everything", staff, "")
	require.NoError(t, err)
	assert.Equal(t, Neutral, d)
}
