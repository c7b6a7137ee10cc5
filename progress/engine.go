// Package progress applies task toggles to stored goals and emits the
// milestone events they produce. Saves are revision-checked; a toggle
// that loses a concurrent update is recomputed against the fresh
// document rather than overwriting it.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/habitix/habitix/goal"
	"github.com/habitix/habitix/storage"
)

// maxSaveAttempts bounds conflict retries on a single toggle.
const maxSaveAttempts = 3

// ErrForbidden is returned when a user operates on a goal they do not
// own.
var ErrForbidden = errors.New("goal belongs to another user")

// GoalStore is the persistence dependency of the engine.
type GoalStore interface {
	FetchGoal(ctx context.Context, id string) (*goal.Goal, uint64, error)
	SaveGoal(ctx context.Context, g *goal.Goal, revision uint64) (uint64, error)
	ListGoalsByOwner(ctx context.Context, ownerID string) ([]*goal.Goal, error)
}

// Engine coordinates goal progression.
type Engine struct {
	store     GoalStore
	publisher Publisher
	metrics   *Metrics
	logger    *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPublisher sets the event publisher.
func WithPublisher(p Publisher) EngineOption {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates a progression engine over the given store.
func NewEngine(store GoalStore, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ToggleTask flips a task's completion on the owner's goal and persists
// the recomputed progression state. On a revision conflict the toggle
// is reapplied to the fresh document, up to maxSaveAttempts times.
func (e *Engine) ToggleTask(ctx context.Context, ownerID, goalID string, dayNumber int, taskID string) (*goal.Goal, goal.ToggleResult, error) {
	e.metrics.incToggles()

	var lastErr error
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		g, revision, err := e.store.FetchGoal(ctx, goalID)
		if err != nil {
			return nil, goal.ToggleResult{}, fmt.Errorf("fetch goal: %w", err)
		}
		if g.OwnerID != ownerID {
			return nil, goal.ToggleResult{}, ErrForbidden
		}

		result, err := g.ToggleTask(dayNumber, taskID)
		if err != nil {
			return nil, goal.ToggleResult{}, err
		}

		if _, err := e.store.SaveGoal(ctx, g, revision); err != nil {
			if errors.Is(err, storage.ErrConflict) && attempt < maxSaveAttempts {
				e.metrics.incConflictRetries()
				e.logger.Debug("Toggle lost revision race, retrying",
					"goal_id", goalID,
					"attempt", attempt)
				lastErr = err
				continue
			}
			return nil, goal.ToggleResult{}, fmt.Errorf("save goal: %w", err)
		}

		e.publishMilestones(ctx, g, result)
		return g, result, nil
	}

	return nil, goal.ToggleResult{}, fmt.Errorf("save goal: %w", lastErr)
}

// publishMilestones emits events for any milestone the toggle crossed.
// Publish failures are logged, not returned; the toggle is already
// durable.
func (e *Engine) publishMilestones(ctx context.Context, g *goal.Goal, result goal.ToggleResult) {
	if result.UnlockedDay > 0 {
		e.metrics.incDaysUnlocked()
		e.publish(ctx, SubjectDayUnlocked, Event{
			Type:       "day.unlocked",
			GoalID:     g.ID,
			OwnerID:    g.OwnerID,
			GoalTitle:  g.Title,
			DayNumber:  result.UnlockedDay,
			OccurredAt: time.Now(),
		})
	}
	if result.GoalCompleted {
		e.metrics.incGoalsCompleted()
		e.publish(ctx, SubjectGoalCompleted, Event{
			Type:       "goal.completed",
			GoalID:     g.ID,
			OwnerID:    g.OwnerID,
			GoalTitle:  g.Title,
			OccurredAt: time.Now(),
		})
	}
}

func (e *Engine) publish(ctx context.Context, subject string, event Event) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, subject, event); err != nil {
		e.logger.Warn("Failed to publish progression event",
			"subject", subject,
			"goal_id", event.GoalID,
			"error", err)
	}
}
