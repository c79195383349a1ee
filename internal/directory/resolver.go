package directory

import (
	"context"
	"strconv"

	"stripelink/internal/types"
)

// Loader loads a member by id.
type Loader interface {
	Load(ctx context.Context, id int64) (*types.Member, error)
}

// Resolver validates raw member references from routes and CLI arguments
// and loads the canonical member record. Validation happens here, once,
// at the boundary; downstream code only ever sees loaded members.
type Resolver struct {
	loader Loader
}

// NewResolver creates a Resolver over the given loader.
func NewResolver(loader Loader) *Resolver {
	return &Resolver{loader: loader}
}

// Resolve accepts a raw reference — a digits-only string representing a
// non-negative member id — and returns the loaded member. Any malformed
// reference or unknown id fails with not_found_member; a bad reference
// must never reach a side-effecting operation.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*types.Member, error) {
	id, ok := parseRef(raw)
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundMember, "invalid member reference", nil)
	}
	return r.loader.Load(ctx, id)
}

// parseRef accepts only non-empty, digits-only strings. Signs, spaces,
// and hex/octal forms are all rejected.
func parseRef(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
