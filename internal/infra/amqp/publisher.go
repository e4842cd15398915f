// Package amqp publishes due reminders to RabbitMQ.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"

	"github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("amqp")

const publishTimeout = 5 * time.Second

// Publisher implements port.DueReminderPublisher over a direct exchange whose
// routing key is the queue name.
type Publisher struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	logger       *zap.Logger
}

// NewPublisher dials url and declares the exchange, queue and binding.
func NewPublisher(url, exchangeName, queueName string, logger *zap.Logger) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p := &Publisher{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger,
	}

	if err := p.setup(); err != nil {
		p.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return p, nil
}

func (p *Publisher) setup() error {
	if err := p.channel.ExchangeDeclare(
		p.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := p.channel.QueueDeclare(
		p.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := p.channel.QueueBind(p.queueName, p.queueName, p.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// EncodeReminder is the wire form of a reminder message.
func EncodeReminder(reminder *domain.DueReminder) ([]byte, error) {
	return json.Marshal(reminder)
}

// PublishDueReminder publishes a persistent JSON message.
func (p *Publisher) PublishDueReminder(ctx context.Context, reminder *domain.DueReminder) error {
	ctx, span := tracer.Start(ctx, "Publisher.PublishDueReminder")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", reminder.UserID),
		attribute.String("reminder.source", string(reminder.Source)),
	)

	body, err := EncodeReminder(reminder)
	if err != nil {
		return fmt.Errorf("marshal reminder: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchangeName, // exchange
		p.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    reminder.ID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return &domain.ErrExternalService{Service: "amqp", Err: err}
	}

	p.logger.Debug("published due reminder",
		zap.String("reminder_id", reminder.ID),
		zap.String("user_id", reminder.UserID),
		zap.String("entity_id", reminder.EntityID),
		zap.String("exchange", p.exchangeName),
	)
	return nil
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
