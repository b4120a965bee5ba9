// Package events publishes job lifecycle events to a RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys of lifecycle events
const (
	JobCreated           = "job.created"
	ApplicationSubmitted = "application.submitted"
	ApplicationAccepted  = "application.accepted"
	ApplicationRejected  = "application.rejected"
	JobStarted           = "job.started"
	JobCompleted         = "job.completed"
	JobCanceled          = "job.canceled"
	FundsReleased        = "funds.released"
	FundsReleaseFailed   = "funds.release_failed"
)

// Event is one lifecycle fact published after it was committed.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	JobID      uint                   `json:"job_id"`
	ActorID    uint                   `json:"actor_id"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// New stamps an event with an id and the current time.
func New(eventType string, jobID, actorID uint, data map[string]interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		JobID:      jobID,
		ActorID:    actorID,
		Data:       data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher routes each event by its type.
type RabbitPublisher struct {
	conn     *amqp.Connection
	channel  channel
	exchange string
}

// Dial connects to url and declares exchange as a durable topic exchange.
func Dial(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	p, err := NewRabbitPublisher(conn, exchange)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return p, nil
}

func NewRabbitPublisher(conn *amqp.Connection, exchange string) (*RabbitPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	return &RabbitPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx,
		p.exchange,
		ev.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.ID,
			Timestamp:    ev.OccurredAt,
			Type:         ev.Type,
			Body:         body,
		},
	)
}

func (p *RabbitPublisher) Close() error {
	err := p.channel.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
