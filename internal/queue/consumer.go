package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/venue-booking/internal/logger"
)

const maxBackoff = 30 * time.Second

// Consumer listens on the event queue and appends one line per message to
// <dir>/events.log.
type Consumer struct {
	url   string
	queue string
	dir   string
	log   *logger.Logger
}

// NewConsumer returns a Consumer writing into dir.
func NewConsumer(url, queue, dir string, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.Nop()
	}
	return &Consumer{url: url, queue: queue, dir: dir, log: log}
}

// Run connects to the broker and consumes until ctx is cancelled.  Lost
// connections are re-dialled with exponential backoff capped at 30s.
// Messages that cannot be processed are rejected without requeue so a
// poison message cannot spin the loop.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("event consumer dial failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("event consumer loop ended; reconnecting", slog.String("error", err.Error()))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("event consumer set QoS failed", slog.String("error", err.Error()))
	}
	if err := declare(ch, c.queue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(d.Body); err != nil {
				c.log.Error("event consumer handle message failed", slog.String("error", err.Error()))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleMessage(body []byte) error {
	var msg EventMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if msg.Kind == "" || msg.EventID == 0 {
		return errors.New("message without kind or event id")
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.dir, "events.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(msg)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatLine(msg EventMessage) string {
	line := fmt.Sprintf("[%s] %s | event_id=%d | request=%s-%d | name=%q | date=%s %s | status=%s | actor=%s(%s)",
		msg.OccurredAt.UTC().Format(time.RFC3339), msg.Kind, msg.EventID, strings.ToLower(msg.Type), msg.RequestID,
		msg.Name, msg.Date, msg.StartTime, msg.Status, msg.ActorID, msg.ActorRole)
	if msg.Reason != "" {
		line += fmt.Sprintf(" | reason=%q", msg.Reason)
	}
	return line + "\n"
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
