package events

import (
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/navidizedy/NavidShop/internal/config"
	"github.com/navidizedy/NavidShop/internal/models"
)

// Event types published to the order exchange.
const (
	EventOrderCreated       = "created"
	EventOrderStatusUpdated = "status_updated"
)

// Publisher wraps the AMQP connection used to fan order events out to
// downstream consumers (fulfilment, email, cache refreshers). Publishing
// happens strictly after the database commit and is fire-and-forget: a
// publish failure never rolls an order back.
type Publisher struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Cfg     *config.Config
}

func NewPublisher(cfg *config.Config) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Publisher{
		Conn:    conn,
		Channel: ch,
		Cfg:     cfg,
	}, nil
}

// SetupQueues declares the order exchange, the main queue (dead-lettered
// into the DLQ) and the dead-letter exchange/queue pair.
func (p *Publisher) SetupQueues() error {
	if err := p.Channel.ExchangeDeclare(
		p.Cfg.OrderExchange,
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return err
	}

	if err := p.Channel.ExchangeDeclare(
		p.Cfg.DeadLetterQueue+"_exchange",
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return err
	}

	if _, err := p.Channel.QueueDeclare(
		p.Cfg.DeadLetterQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return err
	}

	if err := p.Channel.QueueBind(
		p.Cfg.DeadLetterQueue,
		p.Cfg.DeadLetterQueue, // matches x-dead-letter-routing-key below
		p.Cfg.DeadLetterQueue+"_exchange",
		false,
		nil,
	); err != nil {
		return err
	}

	if _, err := p.Channel.QueueDeclare(
		p.Cfg.OrderQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-dead-letter-exchange":    p.Cfg.DeadLetterQueue + "_exchange",
			"x-dead-letter-routing-key": p.Cfg.DeadLetterQueue,
		},
	); err != nil {
		return err
	}

	return p.Channel.QueueBind(
		p.Cfg.OrderQueue,
		"",
		p.Cfg.OrderExchange,
		false,
		nil,
	)
}

// PublishOrderEvent serializes the event as JSON and publishes it to the
// order exchange as a persistent message.
func (p *Publisher) PublishOrderEvent(event models.OrderEvent) error {
	if event.Occurred.IsZero() {
		event.Occurred = time.Now()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.Occurred,
		ContentType:  "application/json",
		Body:         body,
	}

	return p.Channel.Publish(
		p.Cfg.OrderExchange,
		"",
		false, // mandatory
		false, // immediate
		msg,
	)
}

func (p *Publisher) Close() {
	if p.Channel != nil {
		_ = p.Channel.Close()
	}
	if p.Conn != nil {
		_ = p.Conn.Close()
	}
}
