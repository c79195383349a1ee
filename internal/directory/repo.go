// Package directory provides access to the member directory: loading
// member records, resolving raw route references, and reading/writing
// the dynamically configured member fields.
//
// Fields are dynamic: the set of defined fields lives in a registry
// table, and values live in a separate table. That split is what lets
// callers distinguish a field that is missing from the schema (an
// operator configuration error) from a field that simply holds no value
// yet (the normal needs-backfill case).
//
// Schema:
//
//	CREATE TABLE members (
//	    id    BIGINT PRIMARY KEY,
//	    email TEXT
//	);
//	CREATE TABLE member_field_defs (
//	    name TEXT PRIMARY KEY
//	);
//	CREATE TABLE member_field_values (
//	    member_id BIGINT NOT NULL REFERENCES members(id),
//	    field     TEXT   NOT NULL REFERENCES member_field_defs(name),
//	    value     TEXT   NOT NULL,
//	    PRIMARY KEY (member_id, field)
//	);
package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"stripelink/internal/db"
	"stripelink/internal/types"
)

// Repository is the Postgres-backed member directory.
type Repository struct {
	db db.DBTX
}

// NewRepository creates a Repository backed by the given database handle.
func NewRepository(dbtx db.DBTX) *Repository {
	return &Repository{db: dbtx}
}

// Load retrieves a member by id. Returns not_found_member when no such
// member exists.
func (r *Repository) Load(ctx context.Context, id int64) (*types.Member, error) {
	row := r.db.QueryRow(ctx, `SELECT id, COALESCE(email, '') FROM members WHERE id = $1`, id)

	var m types.Member
	if err := row.Scan(&m.ID, &m.Email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundMember, "member not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load member", err)
	}
	return &m, nil
}

// FieldDefined reports whether the named field exists in the registry.
func (r *Repository) FieldDefined(ctx context.Context, name string) (bool, error) {
	row := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM member_field_defs WHERE name = $1)`, name)

	var defined bool
	if err := row.Scan(&defined); err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check field definition", err)
	}
	return defined, nil
}

// FieldValue returns the stored value of a defined field for a member,
// or the empty string when the member has no value yet.
func (r *Repository) FieldValue(ctx context.Context, memberID int64, field string) (string, error) {
	row := r.db.QueryRow(ctx,
		`SELECT value FROM member_field_values WHERE member_id = $1 AND field = $2`,
		memberID, field,
	)

	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to read field value", err)
	}
	return value, nil
}

// SetFieldValue writes the value of a defined field for a member.
func (r *Repository) SetFieldValue(ctx context.Context, memberID int64, field, value string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO member_field_values (member_id, field, value) VALUES ($1, $2, $3)
		 ON CONFLICT (member_id, field) DO UPDATE SET value = EXCLUDED.value`,
		memberID, field, value,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to write field value", err)
	}
	return nil
}

// CandidateIDs returns the ids of members eligible for reconciliation:
// the given field is empty or absent AND the member has an email.
// This is an administrative query; no per-member access checks apply.
func (r *Repository) CandidateIDs(ctx context.Context, field string) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT m.id
		 FROM members m
		 LEFT JOIN member_field_values v ON v.member_id = m.id AND v.field = $1
		 WHERE (v.value IS NULL OR v.value = '')
		   AND m.email IS NOT NULL AND m.email <> ''
		 ORDER BY m.id`,
		field,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query candidates", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan candidate id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate candidates", err)
	}
	return ids, nil
}
