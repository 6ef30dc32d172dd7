package checkout

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/navidizedy/NavidShop/internal/models"
)

// Engine converts a user's cart into a persisted order. All stock
// mutation happens inside a single database transaction so that
// concurrent checkouts racing for the same variant serialize on the
// store's row locks rather than on any in-process synchronization.
type Engine struct {
	DB *sql.DB
}

// ShippingInfo is the contact/address block submitted with an order.
type ShippingInfo struct {
	Name    string
	Email   string
	Address string
	City    string
	Zip     string
	Country string
}

// PlaceOrderInput is everything the client supplies at checkout beyond
// its identity. The total is never part of the input; it is recomputed
// server-side inside the transaction.
type PlaceOrderInput struct {
	ShippingInfo
	ShippingMethod string
	CouponCode     string
	Metadata       map[string]interface{}
}

// cartLine is one cart row joined with its variant, product and
// optional color/size, as loaded under FOR UPDATE.
type cartLine struct {
	VariantID   int64
	Quantity    int
	Price       float64
	ProductName string
	Color       *string
	Size        *string
	Image       *string
}

// stockClaim is the per-variant decrement derived from the cart lines.
// Two cart rows referencing the same variant collapse into one claim so
// their quantities are checked against the available count together,
// not independently.
type stockClaim struct {
	VariantID   int64
	Quantity    int
	ProductName string
	Color       *string
	Size        *string
}

// PlaceOrder converts the user's cart into an order: it loads the cart
// with variant details, recomputes the total, conditionally decrements
// each variant's stock, writes the order with snapshotted items and
// clears the cart, all in one transaction. On any failure the database
// is left exactly as it was before the call.
//
// Failure taxonomy: ErrEmptyCart and ErrUnknownShippingMethod are
// validation errors; *InsufficientStockError is a business-rule abort
// naming the offending line; *TransientError wraps store failures and
// marks the whole call as safely retryable.
func (e *Engine) PlaceOrder(ctx context.Context, userID int64, in PlaceOrderInput) (*models.Order, error) {
	// Reject unknown shipping methods before touching the database.
	if _, ok := shippingRates[in.ShippingMethod]; !ok {
		return nil, ErrUnknownShippingMethod
	}

	tx, err := e.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, transient("begin transaction", err)
	}
	defer tx.Rollback() // Safety net; no-op after a successful commit

	var cartID int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM carts WHERE user_id = ?", userID).Scan(&cartID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrEmptyCart
		}
		return nil, transient("find cart", err)
	}

	lines, err := loadCartLines(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	// Recompute the price breakdown inside the transaction. The cart
	// does not freeze prices; the variant's current price is what gets
	// charged and snapshotted.
	items := make([]LineItem, len(lines))
	for i, line := range lines {
		items[i] = LineItem{UnitPrice: line.Price, Quantity: line.Quantity}
	}
	quote, err := ComputeTotal(items, in.ShippingMethod, in.CouponCode)
	if err != nil {
		return nil, err
	}

	// Conditional decrement per variant: write first, then check the
	// post-write count inside the same transaction. The FOR UPDATE locks
	// taken while loading the lines make concurrent checkouts of the
	// same variant serialize here.
	for _, claim := range aggregateClaims(lines) {
		if _, err := tx.ExecContext(ctx,
			"UPDATE product_variants SET count = count - ?, updated_at = NOW() WHERE id = ?",
			claim.Quantity, claim.VariantID,
		); err != nil {
			return nil, transient("decrement stock", err)
		}

		var remaining int
		if err := tx.QueryRowContext(ctx,
			"SELECT count FROM product_variants WHERE id = ?", claim.VariantID,
		).Scan(&remaining); err != nil {
			return nil, transient("check stock", err)
		}

		if remaining < 0 {
			return nil, &InsufficientStockError{
				VariantID:   claim.VariantID,
				ProductName: claim.ProductName,
				Color:       strOrEmpty(claim.Color),
				Size:        strOrEmpty(claim.Size),
				Requested:   claim.Quantity,
				Available:   remaining + claim.Quantity,
			}
		}
	}

	now := time.Now()
	order := &models.Order{
		OrderNumber:    uuid.New().String(),
		UserID:         userID,
		Status:         models.OrderStatusPending,
		Total:          quote.Total,
		Name:           in.Name,
		Email:          in.Email,
		Address:        in.Address,
		City:           in.City,
		Zip:            in.Zip,
		Country:        in.Country,
		ShippingMethod: in.ShippingMethod,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	metadata := make(map[string]interface{}, len(in.Metadata)+2)
	for k, v := range in.Metadata {
		metadata[k] = v
	}
	metadata["shippingMethod"] = in.ShippingMethod
	metadata["couponCode"] = in.CouponCode
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, transient("encode metadata", err)
	}
	order.Metadata = string(metaJSON)

	result, err := tx.ExecContext(ctx, `
		INSERT INTO orders
			(order_number, user_id, status, total, name, email, address, city, zip, country, shipping_method, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.OrderNumber, order.UserID, order.Status, order.Total,
		order.Name, order.Email, order.Address, order.City, order.Zip, order.Country,
		order.ShippingMethod, order.Metadata, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return nil, transient("create order", err)
	}
	orderID, err := result.LastInsertId()
	if err != nil {
		return nil, transient("get order ID", err)
	}
	order.ID = orderID

	// Snapshot each cart line into order_items. Name, color, size, image
	// and price are copied so the order's appearance survives later
	// catalog edits.
	for _, line := range lines {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO order_items
				(order_id, variant_id, name, color, size, image, price, quantity, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			orderID, line.VariantID, line.ProductName, line.Color, line.Size, line.Image,
			line.Price, line.Quantity, now,
		)
		if err != nil {
			return nil, transient("create order item", err)
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return nil, transient("get order item ID", err)
		}
		order.Items = append(order.Items, models.OrderItem{
			ID:        itemID,
			OrderID:   orderID,
			VariantID: line.VariantID,
			Name:      line.ProductName,
			Color:     line.Color,
			Size:      line.Size,
			Image:     line.Image,
			Price:     line.Price,
			Quantity:  line.Quantity,
			CreatedAt: now,
		})
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = ?", cartID); err != nil {
		return nil, transient("clear cart", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, transient("commit transaction", err)
	}

	return order, nil
}

// loadCartLines reads the cart's lines joined with variant, product and
// optional color/size details. FOR UPDATE locks the variant rows for the
// duration of the transaction so the later decrement-and-check cannot
// race another checkout.
func loadCartLines(ctx context.Context, tx *sql.Tx, cartID int64) ([]cartLine, error) {
	query := `
		SELECT
			ci.variant_id, ci.quantity, v.price, p.name,
			c.name, s.name,
			(SELECT pi.url FROM product_images pi WHERE pi.product_id = p.id ORDER BY pi.id LIMIT 1)
		FROM cart_items ci
		JOIN product_variants v ON ci.variant_id = v.id
		JOIN products p ON v.product_id = p.id
		LEFT JOIN colors c ON v.color_id = c.id
		LEFT JOIN sizes s ON v.size_id = s.id
		WHERE ci.cart_id = ?
		FOR UPDATE
	`

	rows, err := tx.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, transient("load cart items", err)
	}
	defer rows.Close()

	var lines []cartLine
	for rows.Next() {
		var line cartLine
		var color, size, image sql.NullString
		if err := rows.Scan(
			&line.VariantID, &line.Quantity, &line.Price, &line.ProductName,
			&color, &size, &image,
		); err != nil {
			return nil, transient("scan cart item", err)
		}
		line.Color = nullableString(color)
		line.Size = nullableString(size)
		line.Image = nullableString(image)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("iterate cart items", err)
	}

	return lines, nil
}

// aggregateClaims merges cart lines that reference the same variant into
// one claim per variant, preserving first-seen order. A cart should not
// normally hold the same SKU in two rows, but if it does, the combined
// quantity must be checked against the count once, not per row.
func aggregateClaims(lines []cartLine) []stockClaim {
	index := make(map[int64]int, len(lines))
	claims := make([]stockClaim, 0, len(lines))

	for _, line := range lines {
		if i, seen := index[line.VariantID]; seen {
			claims[i].Quantity += line.Quantity
			continue
		}
		index[line.VariantID] = len(claims)
		claims = append(claims, stockClaim{
			VariantID:   line.VariantID,
			Quantity:    line.Quantity,
			ProductName: line.ProductName,
			Color:       line.Color,
			Size:        line.Size,
		})
	}

	return claims
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
