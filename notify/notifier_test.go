package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/habitix/habitix/progress"
)

func TestFormatDayUnlocked(t *testing.T) {
	n := Format(progress.Event{
		Type:      "day.unlocked",
		OwnerID:   "user-1",
		GoalTitle: "Learn Go",
		DayNumber: 4,
	})

	assert.Equal(t, "user-1", n.UserID)
	assert.Equal(t, "New day unlocked", n.Title)
	assert.Contains(t, n.Body, "Day 4")
	assert.Contains(t, n.Body, "Learn Go")
}

func TestFormatGoalCompleted(t *testing.T) {
	n := Format(progress.Event{
		Type:      "goal.completed",
		OwnerID:   "user-1",
		GoalTitle: "Learn Go",
	})

	assert.Equal(t, "Goal completed", n.Title)
	assert.Contains(t, n.Body, "Learn Go")
}

func TestFormatUnknownEventType(t *testing.T) {
	n := Format(progress.Event{
		Type:      "something.else",
		OwnerID:   "user-1",
		GoalTitle: "Learn Go",
	})

	assert.Equal(t, "Progress update", n.Title)
}

func TestLogSenderNeverFails(t *testing.T) {
	sender := &LogSender{}
	err := sender.Send(context.Background(), Notification{
		UserID: "user-1",
		Title:  "t",
		Body:   "b",
	})
	assert.NoError(t, err)
}
