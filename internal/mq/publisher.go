package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jrjgit/news/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения.
type MessageType string

// MessageTypeJobEnqueued — в очередь добавлена новая job.
const MessageTypeJobEnqueued MessageType = "job.enqueued"

// Message — конверт сообщения.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// JobEnqueuedPayload — payload уведомления о новой job.
type JobEnqueuedPayload struct {
	JobID string      `json:"job_id"`
	Kind  domain.Kind `json:"kind"`
}

// Publisher публикует уведомления в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// PublishJobEnqueued будит worker соответствующего вида задач.
func (p *Publisher) PublishJobEnqueued(ctx context.Context, jobID string, kind domain.Kind) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeJobEnqueued,
		Payload:   JobEnqueuedPayload{JobID: jobID, Kind: kind},
		Timestamp: time.Now(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx,
			string(ExchangeJobs),
			string(kind),
			false, false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish job.enqueued: %w", err)
		}

		p.logger.Debug("published job.enqueued", "job_id", jobID, "kind", kind)
		return nil
	})
}
