package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/navidizedy/NavidShop/internal/config"
	"github.com/navidizedy/NavidShop/internal/handlers"
	"github.com/navidizedy/NavidShop/internal/middleware"
)

// CORSMiddleware tells the browser the storefront origin may talk to us.
func CORSMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		// Preflight OPTIONS requests get an empty 204.
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func SetupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.Default()

	router.Use(CORSMiddleware("http://localhost:3000"))
	router.Use(middleware.PrometheusMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	jwtSecret := []byte(cfg.JWTSecret)

	v1 := router.Group("/v1")
	{
		// --- Public Catalog Routes (read-only) ---
		v1.GET("/products", h.GetProducts)
		v1.GET("/products/on-sale", h.GetOnSaleProducts)
		v1.GET("/products/:id", h.GetProduct)

		// --- Protected Routes (Login Required) ---
		auth := v1.Group("/")
		auth.Use(middleware.AuthMiddleware(jwtSecret))
		{
			// --- Cart Routes ---
			auth.GET("/cart", h.GetCart)
			auth.POST("/cart/items", h.AddToCart)
			auth.PATCH("/cart/items/:id", h.UpdateCartItem)
			auth.DELETE("/cart/items/:id", h.DeleteCartItem)
			auth.DELETE("/cart/clear", h.ClearCart)

			// --- Order Routes ---
			auth.POST("/orders", h.PlaceOrder)
			auth.GET("/orders", h.GetMyOrders)
			auth.GET("/orders/:id", h.GetOrderDetails)
		}

		// --- Admin-Only Routes ---
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtSecret))
		admin.Use(middleware.AdminMiddleware())
		{
			admin.GET("/orders", h.GetAllOrders)
			admin.PATCH("/orders/:id/status", h.UpdateOrderStatus)
			admin.DELETE("/orders/:id", h.DeleteOrder)
		}
	}

	return router
}
