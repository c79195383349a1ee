// Package auth resolves bearer tokens to actors. Tokens are issued to
// members and staff out of band; the service stores only a bcrypt hash
// of the token secret together with the granted permission set.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"stripelink/internal/db"
	"stripelink/internal/types"
)

// Token format: "<token_id>.<secret>". The id locates the stored row;
// the secret is compared against the stored bcrypt hash.
const tokenSeparator = "."

// Authenticator resolves bearer tokens against the api_tokens table:
//
//	CREATE TABLE api_tokens (
//	    id          TEXT PRIMARY KEY,
//	    secret_hash TEXT NOT NULL,
//	    member_id   BIGINT NOT NULL,
//	    name        TEXT NOT NULL,
//	    permissions TEXT[] NOT NULL DEFAULT '{}',
//	    revoked_at  TIMESTAMPTZ
//	);
type Authenticator struct {
	db db.DBTX
}

// NewAuthenticator creates an Authenticator backed by the given
// database handle.
func NewAuthenticator(dbtx db.DBTX) *Authenticator {
	return &Authenticator{db: dbtx}
}

// ResolveToken validates the presented token and returns the actor it
// belongs to. All failure modes — malformed token, unknown id, revoked
// token, hash mismatch — collapse into auth_token_invalid so callers
// cannot probe which ids exist.
func (a *Authenticator) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	id, secret, found := strings.Cut(token, tokenSeparator)
	if !found || id == "" || secret == "" {
		return nil, invalidToken(nil)
	}

	row := a.db.QueryRow(ctx,
		`SELECT secret_hash, member_id, name, permissions
		 FROM api_tokens
		 WHERE id = $1 AND revoked_at IS NULL`,
		id,
	)

	var (
		secretHash  string
		memberID    int64
		name        string
		permissions []string
	)
	if err := row.Scan(&secretHash, &memberID, &name, &permissions); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invalidToken(nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to look up token", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(secretHash), []byte(secret)); err != nil {
		return nil, invalidToken(err)
	}

	return &types.Actor{
		MemberID:    memberID,
		Name:        name,
		Permissions: permissions,
	}, nil
}

// HashSecret produces the bcrypt hash stored for a newly issued token
// secret. Exposed for provisioning tooling and tests.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func invalidToken(err error) error {
	return types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid authentication token", err)
}
