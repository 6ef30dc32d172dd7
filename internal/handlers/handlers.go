package handlers

import (
	"database/sql"

	"github.com/navidizedy/NavidShop/internal/cache"
	"github.com/navidizedy/NavidShop/internal/checkout"
	"github.com/navidizedy/NavidShop/internal/events"
)

// Handlers holds all dependencies for the HTTP handlers.
type Handlers struct {
	DB       *sql.DB
	Cache    *cache.Cache      // Read-side listing cache (nil disables caching)
	Events   *events.Publisher // Order event bus (nil disables publishing)
	Checkout *checkout.Engine  // Order placement engine
}
