package checkout

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidizedy/NavidShop/internal/models"
)

// These tests run against a throwaway MySQL database and exercise the
// engine's transactional guarantees end to end. They skip unless
// NAVIDSHOP_TEST_DSN points at a disposable schema, e.g.
//
//	NAVIDSHOP_TEST_DSN="root:navidshop@tcp(127.0.0.1:3306)/navidshop_test?parseTime=true" go test ./...
//
// Every table in that schema is dropped and recreated per test.

var testSchema = []string{
	`DROP TABLE IF EXISTS order_items`,
	`DROP TABLE IF EXISTS orders`,
	`DROP TABLE IF EXISTS cart_items`,
	`DROP TABLE IF EXISTS carts`,
	`DROP TABLE IF EXISTS product_variants`,
	`DROP TABLE IF EXISTS product_images`,
	`DROP TABLE IF EXISTS products`,
	`DROP TABLE IF EXISTS colors`,
	`DROP TABLE IF EXISTS sizes`,
	`CREATE TABLE products (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		details TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB`,
	`CREATE TABLE product_images (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		product_id BIGINT NOT NULL,
		url VARCHAR(512) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (product_id) REFERENCES products(id)
	) ENGINE=InnoDB`,
	`CREATE TABLE colors (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(64) NOT NULL
	) ENGINE=InnoDB`,
	`CREATE TABLE sizes (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(64) NOT NULL
	) ENGINE=InnoDB`,
	`CREATE TABLE product_variants (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		product_id BIGINT NOT NULL,
		color_id BIGINT NULL,
		size_id BIGINT NULL,
		price DOUBLE NOT NULL,
		old_price DOUBLE NULL,
		discount DOUBLE NULL,
		count INT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (product_id) REFERENCES products(id)
	) ENGINE=InnoDB`,
	`CREATE TABLE carts (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB`,
	`CREATE TABLE cart_items (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		cart_id BIGINT NOT NULL,
		variant_id BIGINT NOT NULL,
		quantity INT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uniq_cart_variant (cart_id, variant_id),
		FOREIGN KEY (cart_id) REFERENCES carts(id),
		FOREIGN KEY (variant_id) REFERENCES product_variants(id)
	) ENGINE=InnoDB`,
	`CREATE TABLE orders (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		order_number VARCHAR(36) NOT NULL,
		user_id BIGINT NOT NULL,
		status VARCHAR(20) NOT NULL,
		total DOUBLE NOT NULL,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		address VARCHAR(255) NOT NULL,
		city VARCHAR(128) NOT NULL,
		zip VARCHAR(32) NOT NULL,
		country VARCHAR(128) NOT NULL,
		shipping_method VARCHAR(20) NOT NULL,
		metadata TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	) ENGINE=InnoDB`,
	`CREATE TABLE order_items (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		order_id BIGINT NOT NULL,
		variant_id BIGINT NOT NULL,
		name VARCHAR(255) NOT NULL,
		color VARCHAR(64) NULL,
		size VARCHAR(64) NULL,
		image VARCHAR(512) NULL,
		price DOUBLE NOT NULL,
		quantity INT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (order_id) REFERENCES orders(id)
	) ENGINE=InnoDB`,
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("NAVIDSHOP_TEST_DSN")
	if dsn == "" {
		t.Skip("NAVIDSHOP_TEST_DSN not set; skipping database-backed engine tests")
	}

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	t.Cleanup(func() { db.Close() })

	for _, stmt := range testSchema {
		_, err := db.Exec(stmt)
		require.NoError(t, err, "schema statement failed: %s", stmt)
	}

	return db
}

// seedVariant creates a product with one image and one variant and
// returns the variant ID.
func seedVariant(t *testing.T, db *sql.DB, name string, price float64, count int) int64 {
	t.Helper()

	res, err := db.Exec("INSERT INTO products (name) VALUES (?)", name)
	require.NoError(t, err)
	productID, err := res.LastInsertId()
	require.NoError(t, err)

	_, err = db.Exec("INSERT INTO product_images (product_id, url) VALUES (?, ?)", productID, "/img/"+name+".jpg")
	require.NoError(t, err)

	res, err = db.Exec("INSERT INTO product_variants (product_id, price, count) VALUES (?, ?, ?)", productID, price, count)
	require.NoError(t, err)
	variantID, err := res.LastInsertId()
	require.NoError(t, err)

	return variantID
}

// seedCart creates a cart for the user holding one line and returns the
// cart ID.
func seedCart(t *testing.T, db *sql.DB, userID, variantID int64, quantity int) int64 {
	t.Helper()

	res, err := db.Exec("INSERT INTO carts (user_id) VALUES (?)", userID)
	require.NoError(t, err)
	cartID, err := res.LastInsertId()
	require.NoError(t, err)

	_, err = db.Exec("INSERT INTO cart_items (cart_id, variant_id, quantity) VALUES (?, ?, ?)", cartID, variantID, quantity)
	require.NoError(t, err)

	return cartID
}

func variantCount(t *testing.T, db *sql.DB, variantID int64) int {
	t.Helper()
	var count int
	require.NoError(t, db.QueryRow("SELECT count FROM product_variants WHERE id = ?", variantID).Scan(&count))
	return count
}

func tableCount(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func testShipping() ShippingInfo {
	return ShippingInfo{
		Name:    "Navid Test",
		Email:   "navid@example.com",
		Address: "1 Canal Street",
		City:    "Amsterdam",
		Zip:     "1011AB",
		Country: "Netherlands",
	}
}

func TestPlaceOrderDecrementsStockAndClearsCart(t *testing.T) {
	db := setupTestDB(t)
	e := &Engine{DB: db}

	variantID := seedVariant(t, db, "Denim Jacket", 25.00, 5)
	cartID := seedCart(t, db, 1, variantID, 2)

	order, err := e.PlaceOrder(context.Background(), 1, PlaceOrderInput{
		ShippingInfo:   testShipping(),
		ShippingMethod: ShippingStandard,
	})
	require.NoError(t, err)

	// Subtotal 50 + standard shipping 5.
	assert.Equal(t, 55.00, order.Total)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.NotEmpty(t, order.OrderNumber)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Denim Jacket", order.Items[0].Name)
	assert.Equal(t, 25.00, order.Items[0].Price)
	assert.Equal(t, 2, order.Items[0].Quantity)
	require.NotNil(t, order.Items[0].Image)
	assert.Equal(t, "/img/Denim Jacket.jpg", *order.Items[0].Image)

	assert.Equal(t, 3, variantCount(t, db, variantID))

	var remaining int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM cart_items WHERE cart_id = ?", cartID).Scan(&remaining))
	assert.Equal(t, 0, remaining, "cart must be emptied by a successful order")
}

func TestPlaceOrderInsufficientStockRollsBackEverything(t *testing.T) {
	db := setupTestDB(t)
	e := &Engine{DB: db}

	variantID := seedVariant(t, db, "Wool Scarf", 15.00, 1)
	seedCart(t, db, 1, variantID, 2)

	_, err := e.PlaceOrder(context.Background(), 1, PlaceOrderInput{
		ShippingInfo:   testShipping(),
		ShippingMethod: ShippingStandard,
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, variantID, stockErr.VariantID)
	assert.Equal(t, "Wool Scarf", stockErr.ProductName)
	assert.Equal(t, 2, stockErr.Requested)
	assert.Equal(t, 1, stockErr.Available)

	// Nothing may have been persisted.
	assert.Equal(t, 1, variantCount(t, db, variantID))
	assert.Equal(t, 0, tableCount(t, db, "orders"))
	assert.Equal(t, 0, tableCount(t, db, "order_items"))
	assert.Equal(t, 1, tableCount(t, db, "cart_items"), "cart must be untouched on failure")
}

func TestPlaceOrderConcurrentLastUnit(t *testing.T) {
	db := setupTestDB(t)
	e := &Engine{DB: db}

	variantID := seedVariant(t, db, "Limited Sneaker", 120.00, 1)
	seedCart(t, db, 1, variantID, 1)
	seedCart(t, db, 2, variantID, 1)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = e.PlaceOrder(context.Background(), int64(i+1), PlaceOrderInput{
				ShippingInfo:   testShipping(),
				ShippingMethod: ShippingExpress,
			})
		}(i)
	}
	wg.Wait()

	var successes, stockFailures int
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		var stockErr *InsufficientStockError
		if errors.As(err, &stockErr) {
			stockFailures++
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Exactly one checkout wins the last unit; the other must fail and
	// the count must end at zero, never negative.
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, stockFailures)
	assert.Equal(t, 0, variantCount(t, db, variantID))
	assert.Equal(t, 1, tableCount(t, db, "orders"))
}

func TestPlaceOrderSnapshotSurvivesCatalogEdits(t *testing.T) {
	db := setupTestDB(t)
	e := &Engine{DB: db}

	variantID := seedVariant(t, db, "Classic Tee", 20.00, 10)
	seedCart(t, db, 1, variantID, 1)

	order, err := e.PlaceOrder(context.Background(), 1, PlaceOrderInput{
		ShippingInfo:   testShipping(),
		ShippingMethod: ShippingStandard,
	})
	require.NoError(t, err)

	_, err = db.Exec("UPDATE products SET name = 'Renamed Tee'")
	require.NoError(t, err)
	_, err = db.Exec("UPDATE product_variants SET price = 99.99 WHERE id = ?", variantID)
	require.NoError(t, err)

	var name string
	var price float64
	require.NoError(t, db.QueryRow(
		"SELECT name, price FROM order_items WHERE order_id = ?", order.ID,
	).Scan(&name, &price))
	assert.Equal(t, "Classic Tee", name)
	assert.Equal(t, 20.00, price)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	db := setupTestDB(t)
	e := &Engine{DB: db}

	// No cart at all.
	_, err := e.PlaceOrder(context.Background(), 1, PlaceOrderInput{
		ShippingInfo:   testShipping(),
		ShippingMethod: ShippingStandard,
	})
	assert.ErrorIs(t, err, ErrEmptyCart)

	// A cart with zero lines behaves the same.
	_, err = db.Exec("INSERT INTO carts (user_id) VALUES (2)")
	require.NoError(t, err)
	_, err = e.PlaceOrder(context.Background(), 2, PlaceOrderInput{
		ShippingInfo:   testShipping(),
		ShippingMethod: ShippingStandard,
	})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlaceOrderUnknownCouponProceeds(t *testing.T) {
	db := setupTestDB(t)
	e := &Engine{DB: db}

	variantID := seedVariant(t, db, "Canvas Bag", 30.00, 3)
	seedCart(t, db, 1, variantID, 1)

	order, err := e.PlaceOrder(context.Background(), 1, PlaceOrderInput{
		ShippingInfo:   testShipping(),
		ShippingMethod: ShippingStandard,
		CouponCode:     "BOGUS",
	})
	require.NoError(t, err)

	// 30 + 5 shipping, no discount for the unknown code.
	assert.Equal(t, 35.00, order.Total)
	assert.Equal(t, 2, variantCount(t, db, variantID))
}

func TestPlaceOrderMultipleLines(t *testing.T) {
	db := setupTestDB(t)
	e := &Engine{DB: db}

	shirtID := seedVariant(t, db, "Oxford Shirt", 40.00, 4)
	sockID := seedVariant(t, db, "Ankle Socks", 5.00, 10)

	cartID := seedCart(t, db, 1, shirtID, 1)
	_, err := db.Exec("INSERT INTO cart_items (cart_id, variant_id, quantity) VALUES (?, ?, ?)", cartID, sockID, 3)
	require.NoError(t, err)

	order, err := e.PlaceOrder(context.Background(), 1, PlaceOrderInput{
		ShippingInfo:   testShipping(),
		ShippingMethod: ShippingExpress,
		CouponCode:     "SAVE10",
	})
	require.NoError(t, err)

	// 40 + 15 subtotal, 20 express, minus 10 coupon.
	assert.Equal(t, 65.00, order.Total)
	require.Len(t, order.Items, 2)
	assert.Equal(t, 3, variantCount(t, db, shirtID))
	assert.Equal(t, 7, variantCount(t, db, sockID))
}

func TestPlaceOrderInsufficientSecondLineRollsBackFirst(t *testing.T) {
	db := setupTestDB(t)
	e := &Engine{DB: db}

	plentyID := seedVariant(t, db, "Plain Cap", 10.00, 100)
	scarceID := seedVariant(t, db, "Rare Print", 60.00, 1)

	cartID := seedCart(t, db, 1, plentyID, 2)
	_, err := db.Exec("INSERT INTO cart_items (cart_id, variant_id, quantity) VALUES (?, ?, ?)", cartID, scarceID, 5)
	require.NoError(t, err)

	_, err = e.PlaceOrder(context.Background(), 1, PlaceOrderInput{
		ShippingInfo:   testShipping(),
		ShippingMethod: ShippingStandard,
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, scarceID, stockErr.VariantID)

	// The first line's decrement must not survive the abort.
	assert.Equal(t, 100, variantCount(t, db, plentyID))
	assert.Equal(t, 1, variantCount(t, db, scarceID))
	assert.Equal(t, 0, tableCount(t, db, "orders"))
}
