package handlers

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"

	"github.com/navidizedy/NavidShop/internal/cache"
	"github.com/navidizedy/NavidShop/internal/models"
)

//
// --- Catalog Read Handlers ---
//
// The catalog is read-only from this service's perspective: listings for
// the storefront plus a detail view. Listings are cached in Redis and
// invalidated when checkout commits a stock change.
//

// ProductListing is one product row on a storefront listing. Price is
// the cheapest variant's; OldPrice/Discount are set for on-sale rows.
type ProductListing struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Slug     string   `json:"slug"`
	Image    *string  `json:"image,omitempty"`
	Price    float64  `json:"price"`
	OldPrice *float64 `json:"oldPrice,omitempty"`
	Discount *float64 `json:"discount,omitempty"`
	InStock  bool     `json:"inStock"`
}

// GetProducts is the handler for GET /v1/products.
func (h *Handlers) GetProducts(c *gin.Context) {
	ctx := c.Request.Context()

	if h.Cache != nil {
		var cached []ProductListing
		if hit, err := h.Cache.GetJSON(ctx, cache.KeyProducts, &cached); err != nil {
			log.Printf("Listing cache read failed: %v", err)
		} else if hit {
			c.JSON(http.StatusOK, gin.H{"products": cached})
			return
		}
	}

	query := `
		SELECT p.id, p.name,
		       (SELECT pi.url FROM product_images pi WHERE pi.product_id = p.id ORDER BY pi.id LIMIT 1),
		       MIN(v.price), SUM(v.count)
		FROM products p
		JOIN product_variants v ON v.product_id = p.id
		GROUP BY p.id, p.name, p.created_at
		ORDER BY p.created_at DESC
		LIMIT 50
	`
	rows, err := h.DB.Query(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}
	defer rows.Close()

	var products []ProductListing
	for rows.Next() {
		var p ProductListing
		var image sql.NullString
		var totalStock int
		if err := rows.Scan(&p.ID, &p.Name, &image, &p.Price, &totalStock); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan product"})
			return
		}
		if image.Valid {
			p.Image = &image.String
		}
		p.Slug = slug.Make(p.Name)
		p.InStock = totalStock > 0
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating products"})
		return
	}

	if products == nil {
		products = []ProductListing{}
	}

	if h.Cache != nil {
		if err := h.Cache.SetJSON(ctx, cache.KeyProducts, products, cache.DefaultTTL); err != nil {
			log.Printf("Listing cache write failed: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

// GetOnSaleProducts is the handler for GET /v1/products/on-sale.
// A product is on sale when it has an in-stock variant with a discount;
// the listing shows that variant's pricing.
func (h *Handlers) GetOnSaleProducts(c *gin.Context) {
	ctx := c.Request.Context()

	if h.Cache != nil {
		var cached []ProductListing
		if hit, err := h.Cache.GetJSON(ctx, cache.KeyOnSaleProducts, &cached); err != nil {
			log.Printf("On-sale cache read failed: %v", err)
		} else if hit {
			c.JSON(http.StatusOK, gin.H{"products": cached})
			return
		}
	}

	// Cheapest discounted in-stock variant per product; the first row
	// per product wins below.
	query := `
		SELECT p.id, p.name,
		       (SELECT pi.url FROM product_images pi WHERE pi.product_id = p.id ORDER BY pi.id LIMIT 1),
		       v.price, v.old_price, v.discount
		FROM products p
		JOIN product_variants v ON v.product_id = p.id
		WHERE v.discount > 0 AND v.count > 0
		ORDER BY p.created_at DESC, p.id, v.price ASC
	`
	rows, err := h.DB.Query(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch on-sale products"})
		return
	}
	defer rows.Close()

	var products []ProductListing
	seen := make(map[int64]bool)
	for rows.Next() {
		var p ProductListing
		var image sql.NullString
		var oldPrice, discount sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.Name, &image, &p.Price, &oldPrice, &discount); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan product"})
			return
		}
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true

		if image.Valid {
			p.Image = &image.String
		}
		if oldPrice.Valid {
			p.OldPrice = &oldPrice.Float64
		}
		if discount.Valid {
			p.Discount = &discount.Float64
		}
		p.Slug = slug.Make(p.Name)
		p.InStock = true
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating products"})
		return
	}

	if products == nil {
		products = []ProductListing{}
	}

	if h.Cache != nil {
		if err := h.Cache.SetJSON(ctx, cache.KeyOnSaleProducts, products, cache.DefaultTTL); err != nil {
			log.Printf("On-sale cache write failed: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

// GetProduct is the handler for GET /v1/products/:id.
// Returns the full product with images and variants (color/size joined).
func (h *Handlers) GetProduct(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var p models.Product
	var description, details sql.NullString
	err = h.DB.QueryRow(`
		SELECT id, name, description, details, created_at, updated_at
		FROM products WHERE id = ?`, productID).Scan(
		&p.ID, &p.Name, &description, &details, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}
	if description.Valid {
		p.Description = &description.String
	}
	if details.Valid {
		p.Details = &details.String
	}
	p.Slug = slug.Make(p.Name)

	imgRows, err := h.DB.Query(
		"SELECT id, product_id, url, created_at FROM product_images WHERE product_id = ? ORDER BY id ASC", productID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch images"})
		return
	}
	defer imgRows.Close()
	for imgRows.Next() {
		var img models.ProductImage
		if err := imgRows.Scan(&img.ID, &img.ProductID, &img.URL, &img.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan image"})
			return
		}
		p.Images = append(p.Images, img)
	}

	varRows, err := h.DB.Query(`
		SELECT v.id, v.product_id, v.color_id, v.size_id, v.price, v.old_price, v.discount, v.count,
		       v.created_at, v.updated_at, col.name, s.name
		FROM product_variants v
		LEFT JOIN colors col ON v.color_id = col.id
		LEFT JOIN sizes s ON v.size_id = s.id
		WHERE v.product_id = ?
		ORDER BY v.id ASC`, productID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch variants"})
		return
	}
	defer varRows.Close()
	for varRows.Next() {
		var v models.ProductVariant
		var colorID, sizeID sql.NullInt64
		var oldPrice, discount sql.NullFloat64
		var colorName, sizeName sql.NullString
		if err := varRows.Scan(
			&v.ID, &v.ProductID, &colorID, &sizeID, &v.Price, &oldPrice, &discount, &v.Count,
			&v.CreatedAt, &v.UpdatedAt, &colorName, &sizeName,
		); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan variant"})
			return
		}
		if colorID.Valid {
			v.ColorID = &colorID.Int64
			if colorName.Valid {
				v.Color = &models.Color{ID: colorID.Int64, Name: colorName.String}
			}
		}
		if sizeID.Valid {
			v.SizeID = &sizeID.Int64
			if sizeName.Valid {
				v.Size = &models.Size{ID: sizeID.Int64, Name: sizeName.String}
			}
		}
		if oldPrice.Valid {
			v.OldPrice = &oldPrice.Float64
		}
		if discount.Valid {
			v.Discount = &discount.Float64
		}
		p.Variants = append(p.Variants, v)
	}

	c.JSON(http.StatusOK, gin.H{"product": p})
}
