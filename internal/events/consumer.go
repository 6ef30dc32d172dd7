package events

import (
	"context"
	"encoding/json"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/navidizedy/NavidShop/internal/cache"
	"github.com/navidizedy/NavidShop/internal/config"
	"github.com/navidizedy/NavidShop/internal/models"
)

// StartOrderConsumer drains the order queue and the dead-letter queue.
// The in-process consumer keeps the listing cache out of the hot path:
// the HTTP handler only publishes; cache invalidation on replayed or
// externally produced events happens here.
func StartOrderConsumer(ch *amqp.Channel, cfg *config.Config, store *cache.Cache) {
	msgs, err := ch.Consume(
		cfg.OrderQueue,
		"navidshop-api", // consumer tag
		false,           // auto-ack
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,
	)
	if err != nil {
		log.Fatalf("Failed to register order consumer: %v", err)
	}

	go func() {
		for msg := range msgs {
			processOrderMessage(msg, store)
		}
	}()

	dlqMsgs, err := ch.Consume(
		cfg.DeadLetterQueue,
		"navidshop-api-dlq", // consumer tag
		false,               // auto-ack
		false,               // exclusive
		false,               // no-local
		false,               // no-wait
		nil,
	)
	if err != nil {
		log.Printf("Failed to register DLQ consumer: %v", err)
		return
	}

	go func() {
		for msg := range dlqMsgs {
			processDeadLetterMessage(msg)
		}
	}()
}

func processOrderMessage(msg amqp.Delivery, store *cache.Cache) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in message processing: %v", r)
		}
	}()

	var event models.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		log.Printf("Invalid order event payload: %s", msg.Body)
		_ = msg.Nack(false, false) // reject, do not requeue
		return
	}

	log.Printf("Processing order event: id=%d number=%s type=%s", event.OrderID, event.OrderNumber, event.Type)

	switch event.Type {
	case EventOrderCreated:
		// A committed order changed stock counts; listings are stale.
		if store != nil {
			if err := store.Invalidate(context.Background(), cache.KeyProducts, cache.KeyOnSaleProducts); err != nil {
				log.Printf("Failed to invalidate listing cache: %v", err)
			}
		}
	case EventOrderStatusUpdated:
		log.Printf("Order %d moved to status %s", event.OrderID, event.Status)
	default:
		log.Printf("Unknown order event type: %s", event.Type)
	}

	_ = msg.Ack(false)
}

func processDeadLetterMessage(msg amqp.Delivery) {
	log.Printf("Received dead letter: %s", msg.Body)
	_ = msg.Ack(false)
}
