package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/PoluyanbIch/QuizBot/internal/config"
	"github.com/PoluyanbIch/QuizBot/internal/service"
	"github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange   = "quiz.events"
	EventQuizFinished = "quiz.finished"
	contentTypeJSON   = "application/json"
	publishTimeout    = 5 * time.Second
)

// FinishedEvent is the message body published for every finished session.
type FinishedEvent struct {
	EventType  string         `json:"event_type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Report     service.Report `json:"report"`
}

// EventPublisher publishes reports to a topic exchange. With an empty URL it
// is disabled and Emit is a no-op.
type EventPublisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	enabled  bool
}

func NewEventPublisher(cfg config.EventsConfig) (*EventPublisher, error) {
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = DefaultExchange
	}
	if cfg.AMQPURL == "" {
		config.Logger.Warn("AMQP URL is empty, event publishing is disabled")
		return &EventPublisher{exchange: exchange}, nil
	}

	conn, err := amqp091.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	config.Logger.WithField("exchange", exchange).Info("Event publisher initialized")
	return &EventPublisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		enabled:  true,
	}, nil
}

func (p *EventPublisher) Enabled() bool { return p.enabled }

func (p *EventPublisher) Emit(ctx context.Context, r service.Report) error {
	if !p.enabled {
		return nil
	}
	body, err := json.Marshal(FinishedEvent{
		EventType:  EventQuizFinished,
		OccurredAt: time.Now().UTC(),
		Report:     r,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	err = p.channel.PublishWithContext(pubCtx,
		p.exchange,
		EventQuizFinished,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  contentTypeJSON,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
			Headers: amqp091.Table{
				"event_type": EventQuizFinished,
				"user_id":    r.UserID,
				"session_id": r.SessionID.String(),
			},
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	config.WithContext(ctx).WithField("session_id", r.SessionID.String()).Debug("Published quiz.finished")
	return nil
}

func (p *EventPublisher) Close() error {
	if !p.enabled {
		return nil
	}
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			return err
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
