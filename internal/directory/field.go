package directory

import (
	"context"

	"stripelink/internal/types"
)

// FieldStore is the subset of the directory used by the customer field
// accessor.
type FieldStore interface {
	FieldDefined(ctx context.Context, name string) (bool, error)
	FieldValue(ctx context.Context, memberID int64, field string) (string, error)
	SetFieldValue(ctx context.Context, memberID int64, field, value string) error
}

// FieldNamer resolves the configured customer field name. Satisfied by
// *settings.Resolver.
type FieldNamer interface {
	CustomerField(ctx context.Context) (string, error)
}

// CustomerField reads and writes the configured member field holding the
// Stripe customer id.
//
// Read distinguishes two absent cases: a field missing from the schema
// fails with billing_field_not_defined (an operator configuration error),
// while a defined field with no value returns the empty string (the
// normal needs-backfill case).
type CustomerField struct {
	store FieldStore
	names FieldNamer
}

// NewCustomerField creates a CustomerField accessor.
func NewCustomerField(store FieldStore, names FieldNamer) *CustomerField {
	return &CustomerField{store: store, names: names}
}

// Name returns the configured field name (with the default applied).
func (c *CustomerField) Name(ctx context.Context) (string, error) {
	return c.names.CustomerField(ctx)
}

// Read returns the stored customer id for the member, or the empty
// string when the member has none yet.
func (c *CustomerField) Read(ctx context.Context, memberID int64) (string, error) {
	field, err := c.requireDefined(ctx)
	if err != nil {
		return "", err
	}
	return c.store.FieldValue(ctx, memberID, field)
}

// Write persists the customer id on the member record.
func (c *CustomerField) Write(ctx context.Context, memberID int64, customerID string) error {
	field, err := c.requireDefined(ctx)
	if err != nil {
		return err
	}
	return c.store.SetFieldValue(ctx, memberID, field, customerID)
}

func (c *CustomerField) requireDefined(ctx context.Context) (string, error) {
	field, err := c.names.CustomerField(ctx)
	if err != nil {
		return "", err
	}
	defined, err := c.store.FieldDefined(ctx, field)
	if err != nil {
		return "", err
	}
	if !defined {
		return "", types.NewAppErrorWithDetails(
			types.ErrCodeFieldNotDefined,
			"configured customer field is not defined in the directory",
			nil,
			map[string]any{"field": field},
		)
	}
	return field, nil
}
