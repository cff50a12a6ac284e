package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRequest struct {
	Name  string `validate:"required,min=2,max=10"`
	Kind  string `validate:"required,oneof=percentage fixed_amount"`
	Value int64  `validate:"gte=0"`
	ID    string `validate:"omitempty,uuid"`
}

func TestValidate_Valid(t *testing.T) {
	err := Validate(testRequest{
		Name:  "Summer",
		Kind:  "percentage",
		Value: 2000,
	})

	assert.NoError(t, err)
}

func TestValidate_MissingRequired(t *testing.T) {
	err := Validate(testRequest{Kind: "percentage"})

	require.Error(t, err)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Error(), "Name")
	assert.Contains(t, valErr.Error(), "is required")
}

func TestValidate_OneOf(t *testing.T) {
	err := Validate(testRequest{Name: "Summer", Kind: "mystery"})

	require.Error(t, err)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Error(), "must be one of: percentage fixed_amount")
}

func TestValidate_InvalidUUID(t *testing.T) {
	err := Validate(testRequest{
		Name: "Summer",
		Kind: "percentage",
		ID:   "not-a-uuid",
	})

	require.Error(t, err)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Error(), "must be a valid UUID")
}

func TestValidationError_Fields(t *testing.T) {
	err := Validate(testRequest{Value: -1})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)

	fields := valErr.Fields()
	assert.Equal(t, "is required", fields["Name"])
	assert.Equal(t, "is required", fields["Kind"])
	assert.Equal(t, "must be greater than or equal to 0", fields["Value"])
}
