package types

import (
	"context"
	"testing"
)

func TestActorHasPermission(t *testing.T) {
	actor := Actor{
		MemberID:    7,
		Name:        "staff",
		Permissions: []string{PermOpenCustomer, "Administer Stripe Settings"},
	}

	if !actor.HasPermission(PermOpenCustomer) {
		t.Error("HasPermission(open stripe customer) = false, want true")
	}
	// Grants are matched case-insensitively.
	if !actor.HasPermission(PermAdministerSettings) {
		t.Error("HasPermission should match case-insensitively")
	}
	if actor.HasPermission(PermOpenPortal) {
		t.Error("HasPermission(open stripe portal) = true, want false")
	}
}

func TestActorContextRoundTrip(t *testing.T) {
	actor := Actor{MemberID: 42, Name: "alice"}
	ctx := WithActor(context.Background(), actor)

	got, ok := GetActor(ctx)
	if !ok {
		t.Fatal("GetActor returned ok=false for context carrying an actor")
	}
	if got.MemberID != 42 || got.Name != "alice" {
		t.Errorf("GetActor() = %+v, want %+v", got, actor)
	}

	_, ok = GetActor(context.Background())
	if ok {
		t.Error("GetActor on empty context returned ok=true")
	}
}

func TestRequestIDContextRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")

	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID() = %q, want %q", got, "req-123")
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID on empty context = %q, want empty", got)
	}
}
