// Package events publishes committed transactions to RabbitMQ.
//
// Publisher is an accounting plugin: register it with accounting.WithPlugin
// and every committed transfer is sent to the configured exchange as a
// persistent JSON message. Rejected or failed transfers are not published.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xraph/accounting/id"
	"github.com/xraph/accounting/plugin"
	"github.com/xraph/accounting/transaction"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Publisher)(nil)
	_ plugin.OnTransferCompleted = (*Publisher)(nil)
	_ plugin.OnShutdown          = (*Publisher)(nil)
)

// Default routing values.
const (
	DefaultExchange   = "accounting.events"
	DefaultRoutingKey = "transaction.created"
)

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Config controls where events are published.
type Config struct {
	Exchange   string `json:"exchange"    mapstructure:"exchange"    yaml:"exchange"`
	RoutingKey string `json:"routing_key" mapstructure:"routing_key" yaml:"routing_key"`

	// DeclareExchange declares a durable topic exchange on Dial.
	DeclareExchange bool `json:"declare_exchange" mapstructure:"declare_exchange" yaml:"declare_exchange"`
}

func (c Config) withDefaults() Config {
	if c.Exchange == "" {
		c.Exchange = DefaultExchange
	}
	if c.RoutingKey == "" {
		c.RoutingKey = DefaultRoutingKey
	}
	return c
}

// TransactionCreated is the message body for a committed transaction.
type TransactionCreated struct {
	EventID        string    `json:"event_id"`
	TransactionID  string    `json:"transaction_id"`
	SenderID       string    `json:"sender_id"`
	ReceiverID     string    `json:"receiver_id"`
	Amount         int64     `json:"amount"`
	Kind           string    `json:"kind"`
	Description    string    `json:"description,omitempty"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Publisher sends committed transactions to an AMQP exchange.
type Publisher struct {
	ch     Channel
	conn   *amqp.Connection
	cfg    Config
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// NewPublisher creates a Publisher over an open channel.
func NewPublisher(ch Channel, cfg Config, opts ...Option) *Publisher {
	p := &Publisher{
		ch:     ch,
		cfg:    cfg.withDefaults(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dial connects to url, opens a channel and returns a Publisher that owns
// both. Closing happens in OnShutdown.
func Dial(url string, cfg Config, opts ...Option) (*Publisher, error) {
	cfg = cfg.withDefaults()

	conn, err := amqp.DialConfig(url, amqp.Config{
		Properties: amqp.Table{"connection_name": "accounting_publisher"},
	})
	if err != nil {
		return nil, fmt.Errorf("events: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}

	if cfg.DeclareExchange {
		if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("events: declare exchange %q: %w", cfg.Exchange, err)
		}
	}

	p := NewPublisher(ch, cfg, opts...)
	p.conn = conn
	return p, nil
}

// Name implements plugin.Plugin.
func (p *Publisher) Name() string { return "events-publisher" }

// OnTransferCompleted implements plugin.OnTransferCompleted.
func (p *Publisher) OnTransferCompleted(ctx context.Context, t *transaction.Transaction, _ time.Duration) error {
	evt := TransactionCreated{
		EventID:        id.NewEventID().String(),
		TransactionID:  t.ID.String(),
		SenderID:       t.SenderID,
		ReceiverID:     t.ReceiverID,
		Amount:         t.Amount,
		Kind:           t.Kind.String(),
		Description:    t.Description,
		IdempotencyKey: t.IdempotencyKey,
		Timestamp:      t.Timestamp,
	}

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", evt.TransactionID, err)
	}

	err = p.ch.PublishWithContext(ctx, p.cfg.Exchange, p.cfg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.EventID,
		Timestamp:    t.Timestamp,
		Type:         p.cfg.RoutingKey,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", evt.TransactionID, err)
	}

	p.logger.Debug("event published",
		"event_id", evt.EventID,
		"transaction_id", evt.TransactionID,
		"routing_key", p.cfg.RoutingKey,
	)
	return nil
}

// OnShutdown implements plugin.OnShutdown.
func (p *Publisher) OnShutdown(_ context.Context) error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
