package models

import (
	"time"
)

// Order statuses. PENDING is set at placement; the rest are admin-settable.
const (
	OrderStatusPending   = "PENDING"
	OrderStatusPreparing = "PREPARING"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusFulfilled = "FULFILLED"
	OrderStatusCancelled = "CANCELLED"
)

// Order is the model for the 'orders' table. Once created it is an
// immutable historical record; only Status changes afterwards.
type Order struct {
	ID          int64   `json:"id" db:"id"`
	OrderNumber string  `json:"orderNumber" db:"order_number"`
	UserID      int64   `json:"userId" db:"user_id"`
	Status      string  `json:"status" db:"status"`
	Total       float64 `json:"total" db:"total"` // Computed at creation, never recomputed

	// Shipping / contact fields, as submitted at checkout
	Name    string `json:"name" db:"name"`
	Email   string `json:"email" db:"email"`
	Address string `json:"address" db:"address"`
	City    string `json:"city" db:"city"`
	Zip     string `json:"zip" db:"zip"`
	Country string `json:"country" db:"country"`

	ShippingMethod string `json:"shippingMethod" db:"shipping_method"`
	Metadata       string `json:"metadata,omitempty" db:"metadata"` // Free-form JSON blob

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Items []OrderItem `json:"items,omitempty" db:"-"`
}

// OrderItem is the model for the 'order_items' table. Name, color, size,
// image and price are denormalized snapshots taken at purchase time so a
// historical order never changes when the live catalog does. VariantID is
// kept for traceability only.
type OrderItem struct {
	ID        int64   `json:"id" db:"id"`
	OrderID   int64   `json:"orderId" db:"order_id"`
	VariantID int64   `json:"variantId" db:"variant_id"`
	Name      string  `json:"name" db:"name"`
	Color     *string `json:"color,omitempty" db:"color"`
	Size      *string `json:"size,omitempty" db:"size"`
	Image     *string `json:"image,omitempty" db:"image"`
	Price     float64 `json:"price" db:"price"` // Price actually charged
	Quantity  int     `json:"quantity" db:"quantity"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// OrderEvent is the message published to the order exchange after a
// successful commit.
type OrderEvent struct {
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      int64     `json:"user_id"`
	Type        string    `json:"type"` // created, status_updated
	Status      string    `json:"status"`
	Total       float64   `json:"total"`
	Occurred    time.Time `json:"occurred"`
}
