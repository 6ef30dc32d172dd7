package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/navidizedy/NavidShop/internal/cache"
	"github.com/navidizedy/NavidShop/internal/checkout"
	"github.com/navidizedy/NavidShop/internal/events"
	"github.com/navidizedy/NavidShop/internal/middleware"
	"github.com/navidizedy/NavidShop/internal/models"
)

//
// --- Order Handlers ---
//

// PlaceOrderRequest defines the JSON checkout form. The total is never
// accepted from the client; the engine recomputes it inside the
// transaction.
type PlaceOrderRequest struct {
	Name           string                 `json:"name" binding:"required"`
	Email          string                 `json:"email" binding:"required,email"`
	Address        string                 `json:"address" binding:"required"`
	City           string                 `json:"city" binding:"required"`
	Zip            string                 `json:"zip" binding:"required"`
	Country        string                 `json:"country" binding:"required"`
	ShippingMethod string                 `json:"shippingMethod" binding:"required,oneof=standard express"`
	CouponCode     string                 `json:"couponCode"`
	Metadata       map[string]interface{} `json:"metadata"`
}

// PlaceOrder is the handler for POST /v1/orders.
// It converts the caller's cart into an order via the checkout engine,
// then fires the post-commit side effects: listing-cache invalidation
// and an order.created event. Neither side effect can fail the order.
func (h *Handlers) PlaceOrder(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middleware.RecordOrderOperation("place", ok)
	}()

	userID := c.GetInt64("userID")

	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.Checkout.PlaceOrder(c.Request.Context(), userID, checkout.PlaceOrderInput{
		ShippingInfo: checkout.ShippingInfo{
			Name:    req.Name,
			Email:   req.Email,
			Address: req.Address,
			City:    req.City,
			Zip:     req.Zip,
			Country: req.Country,
		},
		ShippingMethod: req.ShippingMethod,
		CouponCode:     req.CouponCode,
		Metadata:       req.Metadata,
	})
	if err != nil {
		var stockErr *checkout.InsufficientStockError
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
		case errors.Is(err, checkout.ErrUnknownShippingMethod):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown shipping method"})
		case errors.As(err, &stockErr):
			c.JSON(http.StatusConflict, gin.H{
				"error":     stockErr.Error(),
				"variantId": stockErr.VariantID,
				"available": stockErr.Available,
			})
		case checkout.IsTransient(err):
			log.Printf("Transient failure placing order for user %d: %v", userID, err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Order could not be placed, please retry"})
		default:
			log.Printf("Failed to place order for user %d: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to place order"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "order": order})

	// Post-commit, fire-and-forget: stock changed, so cached listings
	// are stale, and downstream consumers want to hear about the order.
	if h.Cache != nil {
		if err := h.Cache.Invalidate(c.Request.Context(), cache.KeyProducts, cache.KeyOnSaleProducts); err != nil {
			log.Printf("Failed to invalidate listing cache after order %d: %v", order.ID, err)
		}
	}
	if h.Events != nil {
		if err := h.Events.PublishOrderEvent(models.OrderEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			Type:        events.EventOrderCreated,
			Status:      order.Status,
			Total:       order.Total,
		}); err != nil {
			log.Printf("Failed to publish order created event: %v", err)
		}
	}
}

// GetMyOrders is the handler for GET /v1/orders.
// Returns the caller's orders newest first, paginated via ?page and
// ?limit (default 5), each with its snapshotted items.
func (h *Handlers) GetMyOrders(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middleware.RecordOrderOperation("list", ok)
	}()

	userID := c.GetInt64("userID")

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "5"))
	if err != nil || limit < 1 || limit > 50 {
		limit = 5
	}
	offset := (page - 1) * limit

	var totalCount int
	if err := h.DB.QueryRow("SELECT COUNT(*) FROM orders WHERE user_id = ?", userID).Scan(&totalCount); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count orders"})
		return
	}

	rows, err := h.DB.Query(`
		SELECT id, order_number, user_id, status, total, name, email, address, city, zip, country,
		       shipping_method, metadata, created_at, updated_at
		FROM orders
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		if err := scanOrder(rows, &o); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan order"})
			return
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating orders"})
		return
	}

	for i := range orders {
		items, err := h.loadOrderItems(orders[i].ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order items"})
			return
		}
		orders[i].Items = items
	}

	if orders == nil {
		orders = []models.Order{}
	}

	c.JSON(http.StatusOK, gin.H{
		"orders":     orders,
		"totalCount": totalCount,
	})
}

// GetOrderDetails is the handler for GET /v1/orders/:id.
func (h *Handlers) GetOrderDetails(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middleware.RecordOrderOperation("details", ok)
	}()

	userID := c.GetInt64("userID")

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	row := h.DB.QueryRow(`
		SELECT id, order_number, user_id, status, total, name, email, address, city, zip, country,
		       shipping_method, metadata, created_at, updated_at
		FROM orders
		WHERE id = ? AND user_id = ?`, orderID, userID)

	var o models.Order
	if err := scanOrder(row, &o); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	o.Items, err = h.loadOrderItems(o.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": o})
}

//
// --- Admin Order Handlers ---
//

// GetAllOrders is the handler for GET /v1/admin/orders.
func (h *Handlers) GetAllOrders(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middleware.RecordOrderOperation("admin_list", ok)
	}()

	rows, err := h.DB.Query(`
		SELECT id, order_number, user_id, status, total, name, email, address, city, zip, country,
		       shipping_method, metadata, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		if err := scanOrder(rows, &o); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan order"})
			return
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating orders"})
		return
	}

	for i := range orders {
		items, err := h.loadOrderItems(orders[i].ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order items"})
			return
		}
		orders[i].Items = items
	}

	if orders == nil {
		orders = []models.Order{}
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// UpdateOrderStatusInput restricts status changes to the known states.
type UpdateOrderStatusInput struct {
	Status string `json:"status" binding:"required,oneof=PENDING PREPARING SHIPPED FULFILLED CANCELLED"`
}

// UpdateOrderStatus is the handler for PATCH /v1/admin/orders/:id/status.
// Status is the only mutable field of a placed order.
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middleware.RecordOrderOperation("update_status", ok)
	}()

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var input UpdateOrderStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.DB.Exec(
		"UPDATE orders SET status = ?, updated_at = ? WHERE id = ?",
		input.Status, time.Now(), orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order status updated", "orderId": orderID})

	if h.Events != nil {
		if err := h.Events.PublishOrderEvent(models.OrderEvent{
			OrderID: orderID,
			Type:    events.EventOrderStatusUpdated,
			Status:  input.Status,
		}); err != nil {
			log.Printf("Failed to publish order status event: %v", err)
		}
	}
}

// DeleteOrder is the handler for DELETE /v1/admin/orders/:id.
// Items go first, then the order row, atomically.
func (h *Handlers) DeleteOrder(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middleware.RecordOrderOperation("delete", ok)
	}()

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Transaction failed"})
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM order_items WHERE order_id = ?", orderID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete order items"})
		return
	}

	result, err := tx.Exec("DELETE FROM orders WHERE id = ?", orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete order"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Commit failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

//
// --- Helpers ---
//

// rowScanner lets scanOrder work with both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner, o *models.Order) error {
	var metadata sql.NullString
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.Total,
		&o.Name, &o.Email, &o.Address, &o.City, &o.Zip, &o.Country,
		&o.ShippingMethod, &metadata, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return err
	}
	o.Metadata = metadata.String
	return nil
}

func (h *Handlers) loadOrderItems(orderID int64) ([]models.OrderItem, error) {
	rows, err := h.DB.Query(`
		SELECT id, order_id, variant_id, name, color, size, image, price, quantity, created_at
		FROM order_items
		WHERE order_id = ?
		ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		var color, size, image sql.NullString
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.VariantID, &item.Name,
			&color, &size, &image, &item.Price, &item.Quantity, &item.CreatedAt,
		); err != nil {
			return nil, err
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
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if items == nil {
		items = []models.OrderItem{}
	}
	return items, nil
}
