package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/venue-booking/internal/logger"
)

// dialTimeout bounds how long a committed request waits on the broker.
const dialTimeout = 5 * time.Second

// Publisher sends EventMessages to a durable queue on the default
// exchange.  A connection is dialled per message: publishing happens only
// after a status change commits, which is rare enough that a pooled
// connection is not worth its reconnect logic.
type Publisher struct {
	url         string
	queue       string
	log         *logger.Logger
	logMessages bool
}

// NewPublisher returns a Publisher for the given broker URL and queue.
// logMessages enables one info line per published message.
func NewPublisher(url, queue string, log *logger.Logger, logMessages bool) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{url: url, queue: queue, log: log, logMessages: logMessages}
}

// Publish marks the message persistent and publishes it.  Errors are
// returned unlogged; the caller decides how loud a lost message is.
func (p *Publisher) Publish(ctx context.Context, msg EventMessage) error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declare(ch, p.queue); err != nil {
		return fmt.Errorf("rabbitmq declare %s: %w", p.queue, err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", msg.Kind, err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         msg.Kind,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", msg.Kind, err)
	}
	if p.logMessages {
		p.log.Info("event message published",
			slog.String("kind", msg.Kind),
			slog.Uint64("event_id", msg.EventID),
			slog.Uint64("request_id", msg.RequestID),
		)
	}
	return nil
}

// declare ensures the durable queue exists.  Declaring is idempotent.
func declare(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	return err
}
