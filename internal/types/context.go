package types

import (
	"context"
	"strings"
)

// Permission names understood by the access policy. They mirror the
// operator-facing permission labels used in the admin token store.
const (
	PermOpenCustomer       = "open stripe customer"
	PermOpenPortal         = "open stripe portal"
	PermAdministerSettings = "administer stripe settings"
)

// Actor represents the authenticated entity performing an operation:
// a member acting on their own behalf or a staff token holder carrying
// a set of granted permissions.
type Actor struct {
	MemberID    int64
	Name        string
	Permissions []string
}

// HasPermission reports whether the actor was granted the named permission.
// Comparison is case-insensitive to tolerate hand-entered grants.
func (a Actor) HasPermission(name string) bool {
	for _, p := range a.Permissions {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}

type contextKey string

const (
	actorKey     contextKey = "actor"
	requestIDKey contextKey = "request_id"
)

// WithActor stores the Actor in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor retrieves the Actor from the context.
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
