package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/habitix/habitix/goal"
	"github.com/habitix/habitix/storage"
)

// ErrDayLocked is returned when proof is attached to a day the user has
// not reached yet.
var ErrDayLocked = errors.New("day is not unlocked")

// AttachProof records a proof image against an unlocked day. Conflicted
// saves are reapplied to the fresh document like toggles.
func (e *Engine) AttachProof(ctx context.Context, ownerID, goalID string, dayNumber int, imageURL string) (*goal.Goal, error) {
	if imageURL == "" {
		return nil, fmt.Errorf("image URL is required")
	}

	var lastErr error
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		g, revision, err := e.store.FetchGoal(ctx, goalID)
		if err != nil {
			return nil, fmt.Errorf("fetch goal: %w", err)
		}
		if g.OwnerID != ownerID {
			return nil, ErrForbidden
		}

		day := g.Day(dayNumber)
		if day == nil {
			return nil, goal.ErrDayNotFound
		}
		if !day.Unlocked {
			return nil, ErrDayLocked
		}

		now := time.Now()
		day.Proof = goal.Proof{
			Uploaded:   true,
			ImageURL:   &imageURL,
			UploadedAt: &now,
		}

		if _, err := e.store.SaveGoal(ctx, g, revision); err != nil {
			if errors.Is(err, storage.ErrConflict) && attempt < maxSaveAttempts {
				e.metrics.incConflictRetries()
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("save goal: %w", err)
		}
		return g, nil
	}

	return nil, fmt.Errorf("save goal: %w", lastErr)
}
