package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

//
// --- Cart Handlers ---
//

// getOrCreateCartID finds a user's cart or lazily creates one. Carts are
// 1:1 with users and only come into existence on the first add-to-cart.
// Helper to be used within a transaction.
func (h *Handlers) getOrCreateCartID(tx *sql.Tx, userID int64) (int64, error) {
	var cartID int64

	err := tx.QueryRow("SELECT id FROM carts WHERE user_id = ?", userID).Scan(&cartID)
	if err == nil {
		return cartID, nil
	}

	if err == sql.ErrNoRows {
		now := time.Now()
		result, err := tx.Exec("INSERT INTO carts (user_id, created_at, updated_at) VALUES (?, ?, ?)", userID, now, now)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	}

	return 0, err
}

// AddToCartInput defines the JSON for adding a variant to the cart.
type AddToCartInput struct {
	VariantID int64 `json:"variantId" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,gt=0"`
}

// AddToCart is the handler for POST /v1/cart/items.
// Adding a variant that is already in the cart merges the quantities
// into the existing row.
func (h *Handlers) AddToCart(c *gin.Context) {
	userID := c.GetInt64("userID")

	var input AddToCartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Transaction failed"})
		return
	}
	defer tx.Rollback()

	cartID, err := h.getOrCreateCartID(tx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cart initialization failed"})
		return
	}

	// Sanity check against current stock. This is advisory only; the
	// binding enforcement happens inside the checkout transaction.
	var count int
	err = tx.QueryRow("SELECT count FROM product_variants WHERE id = ?", input.VariantID).Scan(&count)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Variant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if count < input.Quantity {
		c.JSON(http.StatusConflict, gin.H{"error": "Insufficient stock"})
		return
	}

	// Upsert: same variant in the same cart merges into one row.
	_, err = tx.Exec(`
		INSERT INTO cart_items (cart_id, variant_id, quantity, created_at, updated_at)
		VALUES (?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE
			quantity = quantity + VALUES(quantity),
			updated_at = NOW()`,
		cartID, input.VariantID, input.Quantity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Commit failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Item added to cart"})
}

// CartItemResponse is one cart line joined with its variant details.
type CartItemResponse struct {
	ItemID    int64   `json:"itemId"`
	VariantID int64   `json:"variantId"`
	Name      string  `json:"name"`
	Color     *string `json:"color,omitempty"`
	Size      *string `json:"size,omitempty"`
	Image     *string `json:"image,omitempty"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	LineTotal float64 `json:"lineTotal"`
	Stock     int     `json:"stock"`
}

// GetCart is the handler for GET /v1/cart.
// It retrieves the full contents of the user's cart; a user without a
// cart gets an empty one.
func (h *Handlers) GetCart(c *gin.Context) {
	userID := c.GetInt64("userID")

	var cartID int64
	err := h.DB.QueryRow("SELECT id FROM carts WHERE user_id = ?", userID).Scan(&cartID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusOK, gin.H{
				"items":      []CartItemResponse{},
				"subtotal":   0.0,
				"totalItems": 0,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to find cart"})
		return
	}

	query := `
		SELECT
			ci.id, ci.variant_id, ci.quantity, v.price, v.count, p.name,
			col.name, s.name,
			(SELECT pi.url FROM product_images pi WHERE pi.product_id = p.id ORDER BY pi.id LIMIT 1)
		FROM cart_items ci
		JOIN product_variants v ON ci.variant_id = v.id
		JOIN products p ON v.product_id = p.id
		LEFT JOIN colors col ON v.color_id = col.id
		LEFT JOIN sizes s ON v.size_id = s.id
		WHERE ci.cart_id = ?
		ORDER BY ci.id ASC
	`
	rows, err := h.DB.Query(query, cartID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query cart items"})
		return
	}
	defer rows.Close()

	var items []CartItemResponse
	var subtotal float64
	var totalItems int

	for rows.Next() {
		var item CartItemResponse
		var color, size, image sql.NullString
		if err := rows.Scan(
			&item.ItemID, &item.VariantID, &item.Quantity, &item.Price, &item.Stock,
			&item.Name, &color, &size, &image,
		); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan cart item"})
			return
		}
		if color.Valid {
			item.Color = &color.String
		}
		if size.Valid {
			item.Size = &size.String
		}
		if image.Valid {
			item.Image = &image.String
		}

		item.LineTotal = item.Price * float64(item.Quantity)
		subtotal += item.LineTotal
		totalItems += item.Quantity

		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating cart items"})
		return
	}

	if items == nil {
		items = []CartItemResponse{}
	}

	c.JSON(http.StatusOK, gin.H{
		"items":      items,
		"subtotal":   subtotal,
		"totalItems": totalItems,
	})
}

// UpdateCartItemInput defines the JSON for updating an item's quantity.
// gte=0 allows setting quantity to 0, which is treated as a delete.
type UpdateCartItemInput struct {
	Quantity *int `json:"quantity" binding:"required,gte=0"`
}

// UpdateCartItem is the handler for PATCH /v1/cart/items/:id.
func (h *Handlers) UpdateCartItem(c *gin.Context) {
	userID := c.GetInt64("userID")
	itemID := c.Param("id")

	var input UpdateCartItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var cartID int64
	err := h.DB.QueryRow("SELECT id FROM carts WHERE user_id = ?", userID).Scan(&cartID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to find cart"})
		return
	}

	if *input.Quantity == 0 {
		h.deleteCartItem(c, cartID, itemID)
		return
	}

	// The ownership check is folded into the WHERE clause: the item must
	// belong to this user's cart.
	result, err := h.DB.Exec(`
		UPDATE cart_items
		SET quantity = ?, updated_at = ?
		WHERE id = ? AND cart_id = ?`,
		*input.Quantity, time.Now(), itemID, cartID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update item"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found in cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart item quantity updated"})
}

// DeleteCartItem is the handler for DELETE /v1/cart/items/:id.
func (h *Handlers) DeleteCartItem(c *gin.Context) {
	userID := c.GetInt64("userID")
	itemID := c.Param("id")

	var cartID int64
	err := h.DB.QueryRow("SELECT id FROM carts WHERE user_id = ?", userID).Scan(&cartID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to find cart"})
		return
	}

	h.deleteCartItem(c, cartID, itemID)
}

// deleteCartItem is a helper to DRY up the delete logic
func (h *Handlers) deleteCartItem(c *gin.Context, cartID int64, itemID string) {
	result, err := h.DB.Exec("DELETE FROM cart_items WHERE id = ? AND cart_id = ?", itemID, cartID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete item"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found in cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart item removed"})
}

// ClearCart is the handler for DELETE /v1/cart/clear.
func (h *Handlers) ClearCart(c *gin.Context) {
	userID := c.GetInt64("userID")

	var cartID int64
	err := h.DB.QueryRow("SELECT id FROM carts WHERE user_id = ?", userID).Scan(&cartID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusOK, gin.H{"message": "Cart is already empty"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to find cart"})
		return
	}

	if _, err := h.DB.Exec("DELETE FROM cart_items WHERE cart_id = ?", cartID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}
