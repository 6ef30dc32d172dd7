package models

import (
	"time"
)

// Product is the model for the 'products' table.
// Nullable columns use pointers (*string, *float64) for clean JSON serialization.
type Product struct {
	ID          int64   `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Slug        string  `json:"slug" db:"-"` // Derived from Name, not stored
	Description *string `json:"description,omitempty" db:"description"`
	Details     *string `json:"details,omitempty" db:"details"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// Joins (not columns, populated manually)
	Images     []ProductImage   `json:"images,omitempty" db:"-"`
	Variants   []ProductVariant `json:"variants,omitempty" db:"-"`
	Categories []Category       `json:"categories,omitempty" db:"-"`
}

// ProductImage is the model for the 'product_images' table
type ProductImage struct {
	ID        int64     `json:"id" db:"id"`
	ProductID int64     `json:"productId" db:"product_id"`
	URL       string    `json:"url" db:"url"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// ProductVariant is the model for the 'product_variants' table.
// A variant is one purchasable color x size combination of a product,
// with its own price and stock count. Count must never go negative;
// every purchase-path decrement runs through the checkout transaction.
type ProductVariant struct {
	ID        int64    `json:"id" db:"id"`
	ProductID int64    `json:"productId" db:"product_id"`
	ColorID   *int64   `json:"colorId,omitempty" db:"color_id"`
	SizeID    *int64   `json:"sizeId,omitempty" db:"size_id"`
	Price     float64  `json:"price" db:"price"`
	OldPrice  *float64 `json:"oldPrice,omitempty" db:"old_price"` // For on-sale display
	Discount  *float64 `json:"discount,omitempty" db:"discount"`  // Percent, display only
	Count     int      `json:"count" db:"count"`                  // Stock on hand

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// Joins
	Color *Color `json:"color,omitempty" db:"-"`
	Size  *Size  `json:"size,omitempty" db:"-"`
}

// Color is the model for the 'colors' table (catalog read model)
type Color struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Size is the model for the 'sizes' table (catalog read model)
type Size struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Category is the model for the 'categories' table (catalog read model)
type Category struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}
