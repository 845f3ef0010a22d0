// Package events publishes production transitions to RabbitMQ. Publishing
// is best effort: callers log failures and carry on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	TypeStarted    = "production.started"
	TypeEnded      = "production.ended"
	TypeChangeover = "production.changeover"

	DefaultQueue = "mosync.production"
)

// ProductionEvent describes one committed transition.
type ProductionEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	MoName     string    `json:"mo_name"`
	NextMoName string    `json:"next_mo_name,omitempty"`
	LeaderID   string    `json:"leader_id,omitempty"`
	AuthFirst  string    `json:"auth_first,omitempty"`
	AuthLast   string    `json:"auth_last,omitempty"`
	DoneQty    *int64    `json:"done_qty,omitempty"`
	At         string    `json:"at"` // plant-local timestamp
	Emitted    time.Time `json:"emitted"`
}

func New(typ, moName, at string) ProductionEvent {
	return ProductionEvent{
		ID:      uuid.NewString(),
		Type:    typ,
		MoName:  moName,
		At:      at,
		Emitted: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev ProductionEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, ProductionEvent) error { return nil }

// AMQP publishes each event as a persistent JSON message on a durable queue
// via the default exchange. It dials per publish; transitions are rare.
type AMQP struct {
	URL         string
	Queue       string
	DialTimeout time.Duration
}

func NewAMQP(url, queue string) *AMQP {
	if queue == "" {
		queue = DefaultQueue
	}
	return &AMQP{URL: url, Queue: queue, DialTimeout: 2 * time.Second}
}

func (p *AMQP) Publish(ctx context.Context, ev ProductionEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(p.DialTimeout)})
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	return ch.PublishWithContext(ctx, "", p.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         ev.Type,
		Timestamp:    ev.Emitted,
		Body:         body,
	})
}
