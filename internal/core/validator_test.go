package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stripelink/internal/types"
)

func TestValidateStruct_Valid(t *testing.T) {
	v := NewValidator(discardLogger())

	in := struct {
		Source string `validate:"required,oneof=env stored"`
	}{Source: "stored"}

	require.NoError(t, v.ValidateStruct(in))
}

func TestValidateStruct_FailureCarriesFieldDetails(t *testing.T) {
	v := NewValidator(discardLogger())

	in := struct {
		Source string `validate:"required,oneof=env stored"`
		Email  string `validate:"omitempty,email"`
	}{Source: "banana", Email: "not-an-email"}

	err := v.ValidateStruct(in)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationMissingField, appErr.Code)

	errs, ok := appErr.Details["validation_errors"].([]ValidationError)
	require.True(t, ok, "details must carry the per-field failures")
	require.Len(t, errs, 2)
	assert.Equal(t, "Source", errs[0].Field)
	assert.Equal(t, "oneof", errs[0].Tag)
	assert.Equal(t, "Email", errs[1].Field)
	assert.Equal(t, "email", errs[1].Tag)
}

func TestValidateStruct_MissingRequiredField(t *testing.T) {
	v := NewValidator(discardLogger())

	in := struct {
		Source string `validate:"required"`
	}{}

	err := v.ValidateStruct(in)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationMissingField, types.CodeOf(err))
}
