package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

const (
	routingKeyRequested = "withdrawal.requested"
	routingKeyCompleted = "withdrawal.completed"

	dialTimeout = 10 * time.Second
)

var _ Publisher = (*AMQPPublisher)(nil)

// AMQPPublisher publishes withdrawal events to a durable topic exchange on
// RabbitMQ.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

// NewAMQPPublisher connects to the broker and declares the exchange. The dial
// is bounded so startup does not hang on an unreachable broker.
func NewAMQPPublisher(amqpURL, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp091.DialConfig(amqpURL, amqp091.Config{
		Dial: amqp091.DefaultDial(dialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()

		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) PublishWithdrawalRequested(ctx context.Context, ev WithdrawalRequested) error {
	return p.publish(ctx, routingKeyRequested, ev)
}

func (p *AMQPPublisher) PublishWithdrawalCompleted(ctx context.Context, ev WithdrawalCompleted) error {
	return p.publish(ctx, routingKeyCompleted, ev)
}

func (p *AMQPPublisher) publish(ctx context.Context, routingKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now().UTC(),
			Body:         payload,
		})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	return nil
}

func (p *AMQPPublisher) Close() error {
	cerr := p.channel.Close()

	err := p.conn.Close()
	if err != nil {
		return fmt.Errorf("close amqp connection: %w", err)
	}

	if cerr != nil {
		return fmt.Errorf("close amqp channel: %w", cerr)
	}

	return nil
}

// NewEventID tags a domain event so at-least-once consumers can deduplicate.
func NewEventID() string {
	return uuid.NewString()
}
