package mq

import (
	"context" // Consumer cancellation
	"fmt"     // Error wrapping

	amqp "github.com/rabbitmq/amqp091-go" // RabbitMQ client
)

// ConsumerConfig describes the queue a consumer reads from
type ConsumerConfig struct {
	URL                string   // Broker URL
	Exchange           string   // Topic exchange to bind to
	Queue              string   // Durable queue name
	Keys               []string // Routing keys bound to the queue
	Prefetch           int      // Unacked deliveries per consumer
	DeadLetterExchange string   // Receives messages rejected without requeue; empty disables it
}

// Consumer reads deliveries from one durable queue
type Consumer struct {
	conn  *amqp.Connection // Broker connection
	ch    *amqp.Channel    // Consuming channel
	queue string           // Declared queue
}

// NewConsumer dials RabbitMQ, declares exchange, queue, bindings and the dead-letter pair
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	fail := func(step string, err error) (*Consumer, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fail("declare exchange", err)
	}
	args := amqp.Table{}
	if cfg.DeadLetterExchange != "" {
		args["x-dead-letter-exchange"] = cfg.DeadLetterExchange
		if err := ch.ExchangeDeclare(cfg.DeadLetterExchange, "topic", true, false, false, false, nil); err != nil {
			return fail("declare dlx", err)
		}
		dlq := cfg.Queue + ".dlq"
		if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
			return fail("declare dlq", err)
		}
		if err := ch.QueueBind(dlq, "#", cfg.DeadLetterExchange, false, nil); err != nil {
			return fail("bind dlq", err)
		}
	}
	q, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, args)
	if err != nil {
		return fail("declare queue", err)
	}
	for _, rk := range cfg.Keys {
		if err := ch.QueueBind(q.Name, rk, cfg.Exchange, false, nil); err != nil {
			return fail("bind "+rk, err)
		}
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fail("set qos", err)
	}
	return &Consumer{conn: conn, ch: ch, queue: q.Name}, nil
}

// Deliveries starts consuming with manual acknowledgements
func (c *Consumer) Deliveries(ctx context.Context, tag string) (<-chan amqp.Delivery, error) {
	return c.ch.ConsumeWithContext(ctx, c.queue, tag, false, false, false, false, nil)
}

// Close closes the channel and the connection
func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
