// Package mq wraps the RabbitMQ topic exchange used between the API and the worker.
package mq

import (
	"context"       // Publish deadline
	"encoding/json" // Message bodies
	"fmt"           // Error wrapping

	"github.com/google/uuid"              // Message ids
	amqp "github.com/rabbitmq/amqp091-go" // RabbitMQ client
)

// Publisher publishes JSON messages to a topic exchange
type Publisher struct {
	conn     *amqp.Connection // Broker connection
	ch       *amqp.Channel    // Channel in confirm mode
	exchange string           // Topic exchange name
}

// NewPublisher dials RabbitMQ and declares the exchange
func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// PublishJSON marshals v and publishes it as a persistent message
func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Body:         b,
	})
}

// Close closes the channel and the connection
func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
