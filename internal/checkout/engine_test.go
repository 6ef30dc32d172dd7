package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestAggregateClaimsMergesSameVariant(t *testing.T) {
	lines := []cartLine{
		{VariantID: 1, Quantity: 2, ProductName: "T-Shirt", Size: strPtr("M")},
		{VariantID: 2, Quantity: 1, ProductName: "Hoodie"},
		{VariantID: 1, Quantity: 3, ProductName: "T-Shirt", Size: strPtr("M")},
	}

	claims := aggregateClaims(lines)

	require.Len(t, claims, 2)
	// Same variant in two rows collapses into one claim with the summed
	// quantity, so the stock check sees 5, not 2 and 3 independently.
	assert.Equal(t, int64(1), claims[0].VariantID)
	assert.Equal(t, 5, claims[0].Quantity)
	assert.Equal(t, int64(2), claims[1].VariantID)
	assert.Equal(t, 1, claims[1].Quantity)
}

func TestAggregateClaimsPreservesOrder(t *testing.T) {
	lines := []cartLine{
		{VariantID: 9, Quantity: 1},
		{VariantID: 3, Quantity: 1},
		{VariantID: 7, Quantity: 1},
	}

	claims := aggregateClaims(lines)

	require.Len(t, claims, 3)
	assert.Equal(t, int64(9), claims[0].VariantID)
	assert.Equal(t, int64(3), claims[1].VariantID)
	assert.Equal(t, int64(7), claims[2].VariantID)
}

func TestInsufficientStockErrorMessage(t *testing.T) {
	err := &InsufficientStockError{
		VariantID:   42,
		ProductName: "Linen Shirt",
		Size:        "L",
		Color:       "Navy",
		Requested:   3,
		Available:   1,
	}
	assert.Equal(t, "insufficient stock for Linen Shirt (L Navy): requested 3, 1 available", err.Error())

	bare := &InsufficientStockError{ProductName: "Gift Card", Requested: 2, Available: 0}
	assert.Equal(t, "insufficient stock for Gift Card: requested 2, 0 available", bare.Error())
}

func TestTransientErrorWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := transient("commit transaction", cause)

	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "commit transaction")

	assert.False(t, IsTransient(ErrEmptyCart))
	assert.False(t, IsTransient(&InsufficientStockError{}))
	assert.False(t, IsTransient(nil))
}

func TestPlaceOrderRejectsUnknownShippingMethodBeforeStore(t *testing.T) {
	// A nil DB proves the validation happens before any transaction.
	e := &Engine{}

	_, err := e.PlaceOrder(context.Background(), 1, PlaceOrderInput{
		ShippingInfo:   ShippingInfo{Name: "A", Email: "a@b.c", Address: "1 St", City: "X", Zip: "1", Country: "NL"},
		ShippingMethod: "teleport",
	})

	assert.ErrorIs(t, err, ErrUnknownShippingMethod)
}
