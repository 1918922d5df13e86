package handlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/example/storefront/internal/errors"
)

func TestValidateStructReportsJSONPaths(t *testing.T) {
	req := createOrderRequest{
		Items: []orderItemRequest{
			{ProductID: "not-a-uuid", Quantity: 0},
		},
		GuestEmail: "nope",
	}

	err := validateStruct(&req)
	require.Error(t, err)

	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.KindValidation, appErr.Kind)
	assert.Equal(t, "must be a valid id", appErr.Fields["items[0].product_id"])
	assert.Equal(t, "must be at least 1", appErr.Fields["items[0].quantity"])
	assert.Equal(t, "is required", appErr.Fields["shipping_address.full_name"])
	assert.Equal(t, "must be a valid email", appErr.Fields["guest_email"])
}

func TestValidateStructAcceptsValidRequest(t *testing.T) {
	req := createOrderRequest{
		Items: []orderItemRequest{
			{ProductID: "6f1c1d4e-2a8b-4e0a-9d43-1f5a6b7c8d9e", Quantity: 2},
		},
		ShippingAddress: addressRequest{FullName: "Ali", Phone: "+998901234567", Street: "Navoi 5"},
	}

	assert.NoError(t, validateStruct(&req))
}

func TestValidateGoogleLoginNeedsOneCredential(t *testing.T) {
	err := validateStruct(&googleLoginRequest{})
	require.Error(t, err)

	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Fields, "code")
	assert.Contains(t, appErr.Fields, "id_token")

	assert.NoError(t, validateStruct(&googleLoginRequest{IDToken: "abc"}))
	assert.NoError(t, validateStruct(&googleLoginRequest{Code: "abc"}))
}

func TestValidateOneOfMessages(t *testing.T) {
	err := validateStruct(&statusRequest{Status: "shipped"})

	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "must be one of: pending processing delivered cancelled", appErr.Fields["status"])
}
