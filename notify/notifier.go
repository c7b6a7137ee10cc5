// Package notify consumes progression events and delivers user
// notifications for them. Delivery is pluggable through the Sender
// interface; the default sender writes structured log lines.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/habitix/habitix/progress"
)

// ConsumerName is the durable consumer used by the notifier.
const ConsumerName = "habitix-notifier"

// Notification is a message delivered to a user.
type Notification struct {
	UserID string `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Sender delivers notifications.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender writes notifications to the log. It stands in for push or
// email delivery in development.
type LogSender struct {
	Logger *slog.Logger
}

// Send logs the notification.
func (s *LogSender) Send(ctx context.Context, n Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Notification",
		"user_id", n.UserID,
		"title", n.Title,
		"body", n.Body)
	return nil
}

// Notifier consumes progression events from JetStream and hands them to
// a Sender.
type Notifier struct {
	js     jetstream.JetStream
	sender Sender
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	consumer jetstream.Consumer
}

// NewNotifier creates a notifier over the given JetStream context.
func NewNotifier(js jetstream.JetStream, sender Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		js:     js,
		sender: sender,
		logger: logger,
	}
}

// Start begins consuming progression events.
func (n *Notifier) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return fmt.Errorf("notifier already running")
	}
	n.running = true

	subCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.mu.Unlock()

	stream, err := n.js.Stream(subCtx, progress.StreamEvents)
	if err != nil {
		n.rollbackStart(cancel)
		return fmt.Errorf("get stream %s: %w", progress.StreamEvents, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(subCtx, jetstream.ConsumerConfig{
		Durable:       ConsumerName,
		FilterSubject: "habitix.event.>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    3,
	})
	if err != nil {
		n.rollbackStart(cancel)
		return fmt.Errorf("create consumer: %w", err)
	}
	n.consumer = consumer

	go n.consumeLoop(subCtx)

	n.logger.Info("Notifier started",
		"stream", progress.StreamEvents,
		"consumer", ConsumerName)

	return nil
}

func (n *Notifier) rollbackStart(cancel context.CancelFunc) {
	n.mu.Lock()
	n.running = false
	n.cancel = nil
	n.mu.Unlock()
	cancel()
}

// Stop halts event consumption.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running {
		return
	}
	n.running = false
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
}

// consumeLoop continuously fetches events from the consumer.
func (n *Notifier) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := n.consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			n.logger.Debug("Fetch timeout or error", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			n.handleMessage(ctx, msg)
		}

		if msgs.Error() != nil && msgs.Error() != context.DeadlineExceeded {
			n.logger.Warn("Event fetch error", "error", msgs.Error())
		}
	}
}

// handleMessage delivers the notification for one progression event.
func (n *Notifier) handleMessage(ctx context.Context, msg jetstream.Msg) {
	var event progress.Event
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		n.logger.Error("Failed to parse event", "error", err)
		// Malformed events never become parseable; drop them.
		if err := msg.Ack(); err != nil {
			n.logger.Warn("Failed to ACK message", "error", err)
		}
		return
	}

	notification := Format(event)
	if err := n.sender.Send(ctx, notification); err != nil {
		n.logger.Warn("Failed to send notification",
			"user_id", event.OwnerID,
			"error", err)
		if err := msg.Nak(); err != nil {
			n.logger.Warn("Failed to NAK message", "error", err)
		}
		return
	}

	if err := msg.Ack(); err != nil {
		n.logger.Warn("Failed to ACK message", "error", err)
	}
}

// Format renders the user-facing notification for an event.
func Format(event progress.Event) Notification {
	switch event.Type {
	case "goal.completed":
		return Notification{
			UserID: event.OwnerID,
			Title:  "Goal completed",
			Body:   fmt.Sprintf("You finished every day of %q. Well done!", event.GoalTitle),
		}
	case "day.unlocked":
		return Notification{
			UserID: event.OwnerID,
			Title:  "New day unlocked",
			Body:   fmt.Sprintf("Day %d of %q is ready for you.", event.DayNumber, event.GoalTitle),
		}
	default:
		return Notification{
			UserID: event.OwnerID,
			Title:  "Progress update",
			Body:   fmt.Sprintf("Something happened on %q.", event.GoalTitle),
		}
	}
}
