package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type Type string

const (
	BookingCreated   Type = "booking.created"
	BookingCancelled Type = "booking.cancelled"
	BookingCompleted Type = "booking.completed"
	TutorSubmitted   Type = "tutor.submitted"
	TutorVerified    Type = "tutor.verified"
	TutorRejected    Type = "tutor.rejected"
)

// Event is handed to the notification side; delivery is not this service's concern.
type Event struct {
	Type           Type       `json:"event_type"`
	BookingID      string     `json:"booking_id,omitempty"`
	TutorProfileID string     `json:"tutor_profile_id"`
	StudentUserID  string     `json:"student_user_id,omitempty"`
	ActorUserID    string     `json:"actor_user_id,omitempty"`
	StartsAt       *time.Time `json:"starts_at,omitempty"`
	EndsAt         *time.Time `json:"ends_at,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 5 * time.Second,
		Async:        false,
	}

	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	const op = "events.KafkaPublisher.Publish"

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}

	message := kafka.Message{
		// Keying by tutor keeps each tutor's booking and verification events in order.
		Key:   []byte(event.TutorProfileID),
		Value: data,
		Time:  event.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
