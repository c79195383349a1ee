package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stripelink/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

// --- Tests ---

func tokenRow(t *testing.T, secret string, memberID int64, permissions []string) *mockRow {
	t.Helper()
	hash, err := HashSecret(secret)
	require.NoError(t, err)
	return &mockRow{scanFn: func(dest ...any) error {
		*dest[0].(*string) = hash
		*dest[1].(*int64) = memberID
		*dest[2].(*string) = "staff token"
		*dest[3].(*[]string) = permissions
		return nil
	}}
}

func TestResolveToken_Success(t *testing.T) {
	db := new(mockDBTX)
	authn := NewAuthenticator(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(tokenRow(t, "s3cret", 7, []string{types.PermOpenCustomer}))

	actor, err := authn.ResolveToken(context.Background(), "tok_1.s3cret")
	require.NoError(t, err)
	assert.Equal(t, int64(7), actor.MemberID)
	assert.Equal(t, "staff token", actor.Name)
	assert.True(t, actor.HasPermission(types.PermOpenCustomer))
}

func TestResolveToken_WrongSecret(t *testing.T) {
	db := new(mockDBTX)
	authn := NewAuthenticator(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(tokenRow(t, "s3cret", 7, nil))

	_, err := authn.ResolveToken(context.Background(), "tok_1.wrong")
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeAuthTokenInvalid, types.CodeOf(err))
}

func TestResolveToken_UnknownOrRevokedID(t *testing.T) {
	db := new(mockDBTX)
	authn := NewAuthenticator(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := authn.ResolveToken(context.Background(), "tok_gone.s3cret")
	require.Error(t, err)
	// Indistinguishable from a bad secret, so ids cannot be probed.
	assert.Equal(t, types.ErrCodeAuthTokenInvalid, types.CodeOf(err))
}

func TestResolveToken_MalformedTokens(t *testing.T) {
	authn := NewAuthenticator(new(mockDBTX))

	for _, token := range []string{"", "no-separator", ".secret-only", "id-only."} {
		_, err := authn.ResolveToken(context.Background(), token)
		require.Error(t, err, "token %q", token)
		assert.Equal(t, types.ErrCodeAuthTokenInvalid, types.CodeOf(err))
	}
}

func TestResolveToken_DBError(t *testing.T) {
	db := new(mockDBTX)
	authn := NewAuthenticator(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection refused")})

	_, err := authn.ResolveToken(context.Background(), "tok_1.s3cret")
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
}
