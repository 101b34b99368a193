package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultExchange = "catalog.events"

// RabbitMQ publishes to a fanout exchange. Each subscriber binds its own
// exclusive, auto-deleted queue, so every instance sees every message.
type RabbitMQ struct {
	conn     *amqp.Connection
	Channel  *amqp.Channel
	exchange string

	publishMu sync.Mutex
	closeOnce sync.Once
}

func NewRabbitMQ(uri, exchange string) (*RabbitMQ, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	rmq := &RabbitMQ{
		conn:     conn,
		Channel:  ch,
		exchange: exchange,
	}

	if err := rmq.setupExchange(); err != nil {
		rmq.Close()
		return nil, err
	}

	return rmq, nil
}

func (r *RabbitMQ) setupExchange() error {
	err := r.Channel.ExchangeDeclare(
		r.exchange, // name
		"fanout",   // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", r.exchange, err)
	}
	return nil
}

func (r *RabbitMQ) Publish(ctx context.Context, body []byte) error {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	if r.Channel.IsClosed() {
		return ErrBusClosed
	}

	return r.Channel.PublishWithContext(ctx,
		r.exchange, // exchange
		"",         // routing key, ignored by fanout
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Transient,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}

func (r *RabbitMQ) Subscribe(ctx context.Context, handler Handler) error {
	// Consumers use their own channel.
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to create consumer channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		"",    // name, server generated
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", r.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue to %s: %w", r.exchange, err)
	}

	msgs, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return ErrBusClosed
			}
			handler(ctx, msg.Body)
		}
	}
}

func (r *RabbitMQ) Close() error {
	r.closeOnce.Do(func() {
		if r.Channel != nil {
			r.Channel.Close()
		}
		if r.conn != nil {
			r.conn.Close()
		}
	})
	return nil
}
