// Package events publishes ledger events to RabbitMQ for downstream consumers
// such as payouts and analytics.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"patronage/internal/models"
	"patronage/internal/observability"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys.
const (
	DonationRecordedKey = "donation.recorded"
	RankingChangedKey   = "ranking.changed"
)

// Envelope wraps every event published on the ledger exchange.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// DonationRecorded is the payload of a donation.recorded event.
type DonationRecorded struct {
	SupportID     string    `json:"support_id"`
	PostID        uint      `json:"post_id"`
	AuthorID      uint      `json:"author_id"`
	SupporterID   uint      `json:"supporter_id"`
	Amount        int64     `json:"amount"`
	PlatformFee   int64     `json:"platform_fee"`
	AuthorEarning int64     `json:"author_earning"`
	CreatedAt     time.Time `json:"created_at"`
}

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends ledger events to a topic exchange. A Publisher without a
// channel drops events, which is how deployments without AMQP_URL run.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
	now      func() time.Time
}

// NewPublisher dials url and declares a durable topic exchange. An empty url
// yields a disabled publisher.
func NewPublisher(url, exchange string) (*Publisher, error) {
	if url == "" {
		return &Publisher{exchange: exchange, now: time.Now}, nil
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &Publisher{conn: conn, ch: ch, exchange: exchange, now: time.Now}, nil
}

func newPublisherWithChannel(ch channel, exchange string, now func() time.Time) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, now: now}
}

// Enabled reports whether events leave the process.
func (p *Publisher) Enabled() bool {
	return p != nil && p.ch != nil
}

// DonationRecorded publishes d after it has been committed to the ledger.
func (p *Publisher) DonationRecorded(ctx context.Context, d *models.Donation) error {
	return p.publish(ctx, DonationRecordedKey, DonationRecorded{
		SupportID:     d.Reference,
		PostID:        d.PostID,
		AuthorID:      d.AuthorID,
		SupporterID:   d.SupporterID,
		Amount:        d.Amount,
		PlatformFee:   d.PlatformFee,
		AuthorEarning: d.AuthorEarning,
		CreatedAt:     d.CreatedAt,
	})
}

func (p *Publisher) publish(ctx context.Context, key string, payload any) error {
	if !p.Enabled() {
		observability.LedgerEventsPublished.WithLabelValues("amqp", "skipped").Inc()
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", key, err)
	}
	env := Envelope{
		ID:         uuid.NewString(),
		Type:       key,
		OccurredAt: p.now().UTC(),
		Payload:    raw,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", key, err)
	}

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Timestamp:    env.OccurredAt,
		Type:         key,
		Body:         body,
	})
	p.mu.Unlock()

	if err != nil {
		observability.LedgerEventsPublished.WithLabelValues("amqp", "error").Inc()
		return fmt.Errorf("publish %s: %w", key, err)
	}
	observability.LedgerEventsPublished.WithLabelValues("amqp", "ok").Inc()
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
