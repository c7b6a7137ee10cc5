package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Event subjects published on goal progression.
const (
	SubjectDayUnlocked   = "habitix.event.day.unlocked"
	SubjectGoalCompleted = "habitix.event.goal.completed"
)

// StreamEvents is the stream that captures progression events.
const StreamEvents = "HABITIX_EVENTS"

// Event describes a progression milestone.
type Event struct {
	Type       string    `json:"type"`
	GoalID     string    `json:"goalId"`
	OwnerID    string    `json:"ownerId"`
	GoalTitle  string    `json:"goalTitle"`
	DayNumber  int       `json:"dayNumber,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher emits progression events.
type Publisher interface {
	Publish(ctx context.Context, subject string, event Event) error
}

// JetStreamPublisher publishes events to a JetStream stream.
type JetStreamPublisher struct {
	js jetstream.JetStream
}

// NewJetStreamPublisher creates a publisher over the given JetStream
// context.
func NewJetStreamPublisher(js jetstream.JetStream) *JetStreamPublisher {
	return &JetStreamPublisher{js: js}
}

// EnsureEventStream creates the progression event stream if it does not
// exist.
func EnsureEventStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamEvents,
		Description: "Habitix progression events",
		Subjects:    []string{"habitix.event.>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("create event stream: %w", err)
	}
	return nil
}

// Publish marshals the event and publishes it on the subject.
func (p *JetStreamPublisher) Publish(ctx context.Context, subject string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}
