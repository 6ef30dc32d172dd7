package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotal(t *testing.T) {
	tests := []struct {
		name           string
		items          []LineItem
		shippingMethod string
		couponCode     string
		want           Quote
	}{
		{
			name:           "standard shipping no coupon",
			items:          []LineItem{{UnitPrice: 10, Quantity: 2}, {UnitPrice: 5, Quantity: 1}},
			shippingMethod: ShippingStandard,
			want:           Quote{Subtotal: 25, ShippingCost: 5, Discount: 0, Total: 30},
		},
		{
			name:           "express shipping on fifty dollar subtotal",
			items:          []LineItem{{UnitPrice: 25, Quantity: 2}},
			shippingMethod: ShippingExpress,
			want:           Quote{Subtotal: 50, ShippingCost: 20, Discount: 0, Total: 70},
		},
		{
			name:           "SAVE10 coupon applies fixed deduction",
			items:          []LineItem{{UnitPrice: 25, Quantity: 2}},
			shippingMethod: ShippingStandard,
			couponCode:     "SAVE10",
			want:           Quote{Subtotal: 50, ShippingCost: 5, Discount: 10, Total: 45},
		},
		{
			name:           "coupon codes are case-insensitive",
			items:          []LineItem{{UnitPrice: 25, Quantity: 2}},
			shippingMethod: ShippingStandard,
			couponCode:     "save10",
			want:           Quote{Subtotal: 50, ShippingCost: 5, Discount: 10, Total: 45},
		},
		{
			name:           "unknown coupon silently yields zero discount",
			items:          []LineItem{{UnitPrice: 25, Quantity: 2}},
			shippingMethod: ShippingStandard,
			couponCode:     "BOGUS",
			want:           Quote{Subtotal: 50, ShippingCost: 5, Discount: 0, Total: 55},
		},
		{
			name:           "total is clamped at zero",
			items:          []LineItem{{UnitPrice: 1, Quantity: 1}},
			shippingMethod: ShippingStandard,
			couponCode:     "SAVE10",
			want:           Quote{Subtotal: 1, ShippingCost: 5, Discount: 10, Total: 0},
		},
		{
			name:           "no items still pays shipping",
			items:          nil,
			shippingMethod: ShippingStandard,
			want:           Quote{Subtotal: 0, ShippingCost: 5, Discount: 0, Total: 5},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ComputeTotal(tc.items, tc.shippingMethod, tc.couponCode)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestComputeTotalUnknownShippingMethod(t *testing.T) {
	_, err := ComputeTotal([]LineItem{{UnitPrice: 10, Quantity: 1}}, "teleport", "")
	assert.ErrorIs(t, err, ErrUnknownShippingMethod)
}

func TestComputeTotalIsDeterministic(t *testing.T) {
	items := []LineItem{{UnitPrice: 19.99, Quantity: 3}, {UnitPrice: 4.5, Quantity: 2}}

	first, err := ComputeTotal(items, ShippingExpress, "SAVE10")
	require.NoError(t, err)
	second, err := ComputeTotal(items, ShippingExpress, "SAVE10")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
