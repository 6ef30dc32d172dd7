package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/navidizedy/NavidShop/internal/cache"
	"github.com/navidizedy/NavidShop/internal/checkout"
	"github.com/navidizedy/NavidShop/internal/config"
	"github.com/navidizedy/NavidShop/internal/database"
	"github.com/navidizedy/NavidShop/internal/events"
	"github.com/navidizedy/NavidShop/internal/handlers"
	"github.com/navidizedy/NavidShop/internal/routes"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("WARNING: Could not find or load .env file. Relying on system environment variables.")
	}

	cfg := config.LoadConfig()

	db, err := database.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	store, err := cache.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer store.Close()

	publisher, err := events.NewPublisher(cfg)
	if err != nil {
		log.Fatalf("RabbitMQ initialization failed: %v", err)
	}
	defer publisher.Close()

	if err := publisher.SetupQueues(); err != nil {
		log.Fatalf("Failed to setup RabbitMQ queues: %v", err)
	}

	go events.StartOrderConsumer(publisher.Channel, cfg, store)

	app := &handlers.Handlers{
		DB:       db,
		Cache:    store,
		Events:   publisher,
		Checkout: &checkout.Engine{DB: db},
	}

	router := routes.SetupRouter(app, cfg)

	log.Printf("Starting NavidShop API server on port %s...", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
