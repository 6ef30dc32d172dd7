package checkout

import "strings"

// Shipping methods accepted at checkout.
const (
	ShippingStandard = "standard"
	ShippingExpress  = "express"
)

var shippingRates = map[string]float64{
	ShippingStandard: 5.00,
	ShippingExpress:  20.00,
}

// Coupon codes and their fixed deductions. Unknown codes yield zero
// discount rather than an error: coupon entry is free-text on the
// storefront and a typo should not block checkout.
var couponDeductions = map[string]float64{
	"SAVE10": 10.00,
}

// LineItem is one priced cart line as seen by the calculator.
type LineItem struct {
	UnitPrice float64
	Quantity  int
}

// Quote is the price breakdown for an order.
type Quote struct {
	Subtotal     float64 `json:"subtotal"`
	ShippingCost float64 `json:"shippingCost"`
	Discount     float64 `json:"discount"`
	Total        float64 `json:"total"`
}

// ComputeTotal derives the full price breakdown from the line items, the
// chosen shipping method and an optional coupon code. It is a pure
// function with no side effects: PlaceOrder calls it again inside the
// transaction rather than trusting any client-submitted total.
func ComputeTotal(items []LineItem, shippingMethod, couponCode string) (Quote, error) {
	shippingCost, ok := shippingRates[shippingMethod]
	if !ok {
		return Quote{}, ErrUnknownShippingMethod
	}

	var subtotal float64
	for _, item := range items {
		subtotal += item.UnitPrice * float64(item.Quantity)
	}

	discount := couponDeductions[strings.ToUpper(couponCode)]

	total := subtotal + shippingCost - discount
	// The current fixed-deduction coupons cannot push a non-empty order
	// below zero, but a future discount model could.
	if total < 0 {
		total = 0
	}

	return Quote{
		Subtotal:     subtotal,
		ShippingCost: shippingCost,
		Discount:     discount,
		Total:        total,
	}, nil
}
