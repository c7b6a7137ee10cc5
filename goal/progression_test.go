package goal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testGoal builds a goal with the given task counts per day. Day 1 is
// unlocked, the rest locked, matching a freshly generated roadmap.
func testGoal(taskCounts ...int) *Goal {
	now := time.Now()
	g := &Goal{
		ID:      "goal-1",
		OwnerID: "user-1",
		Title:   "Learn Spanish",
		Status:  StatusInProgress,
	}
	for i, count := range taskCounts {
		day := Day{
			DayNumber: i + 1,
			Unlocked:  i == 0,
		}
		for t := 0; t < count; t++ {
			day.Tasks = append(day.Tasks, Task{
				ID:        taskID(i+1, t),
				Title:     "task",
				CreatedAt: now,
			})
		}
		day.Completed = day.allTasksCompleted()
		g.Roadmap = append(g.Roadmap, day)
	}
	return g
}

func taskID(day, idx int) string {
	return string(rune('a'+day)) + "-" + string(rune('0'+idx))
}

func TestToggleTask_CompletesDayAndUnlocksNext(t *testing.T) {
	g := testGoal(3, 2, 2)

	// Complete two of three tasks: day stays incomplete, day 2 locked.
	for _, id := range []string{taskID(1, 0), taskID(1, 1)} {
		res, err := g.ToggleTask(1, id)
		require.NoError(t, err)
		assert.True(t, res.TaskCompleted)
		assert.False(t, res.DayCompleted)
		assert.Zero(t, res.UnlockedDay)
	}
	assert.False(t, g.Day(1).Completed)
	assert.False(t, g.Day(2).Unlocked)

	// Third task completes the day and unlocks day 2.
	res, err := g.ToggleTask(1, taskID(1, 2))
	require.NoError(t, err)
	assert.True(t, res.DayCompleted)
	assert.Equal(t, 2, res.UnlockedDay)
	assert.True(t, g.Day(1).Completed)
	assert.True(t, g.Day(2).Unlocked)
	assert.False(t, g.Day(3).Unlocked)
	assert.Equal(t, StatusInProgress, g.Status)
}

func TestToggleTask_IsItsOwnInverse(t *testing.T) {
	g := testGoal(2)
	id := taskID(1, 0)

	res, err := g.ToggleTask(1, id)
	require.NoError(t, err)
	assert.True(t, res.TaskCompleted)

	res, err = g.ToggleTask(1, id)
	require.NoError(t, err)
	assert.False(t, res.TaskCompleted)
	assert.False(t, g.Day(1).Tasks[0].IsCompleted)
	assert.False(t, g.Day(1).Completed)
}

func TestToggleTask_UnlockIsSticky(t *testing.T) {
	g := testGoal(1, 1)

	res, err := g.ToggleTask(1, taskID(1, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, res.UnlockedDay)
	require.True(t, g.Day(2).Unlocked)

	// Un-complete day 1: day reverts, unlock does not.
	res, err = g.ToggleTask(1, taskID(1, 0))
	require.NoError(t, err)
	assert.False(t, res.DayCompleted)
	assert.Zero(t, res.UnlockedDay)
	assert.False(t, g.Day(1).Completed)
	assert.True(t, g.Day(2).Unlocked)

	// Re-completing does not report the unlock again.
	res, err = g.ToggleTask(1, taskID(1, 0))
	require.NoError(t, err)
	assert.True(t, res.DayCompleted)
	assert.Zero(t, res.UnlockedDay)
}

func TestToggleTask_DerivesGoalStatus(t *testing.T) {
	g := testGoal(1, 1)

	_, err := g.ToggleTask(1, taskID(1, 0))
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, g.Status)

	res, err := g.ToggleTask(2, taskID(2, 0))
	require.NoError(t, err)
	assert.True(t, res.GoalCompleted)
	assert.Equal(t, StatusCompleted, g.Status)

	// Toggling a task off reverts the derived status.
	res, err = g.ToggleTask(2, taskID(2, 0))
	require.NoError(t, err)
	assert.False(t, res.GoalCompleted)
	assert.Equal(t, StatusInProgress, g.Status)
}

func TestToggleTask_ZeroTaskDayIsVacuouslyComplete(t *testing.T) {
	g := testGoal(1, 0, 1)
	require.True(t, g.Day(2).Completed, "rest day starts complete")

	// Completing day 1 unlocks day 2 even though it has no tasks.
	res, err := g.ToggleTask(1, taskID(1, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, res.UnlockedDay)
}

func TestToggleTask_LookupFailuresDoNotMutate(t *testing.T) {
	g := testGoal(2, 1)
	before := *g

	_, err := g.ToggleTask(99, taskID(1, 0))
	assert.ErrorIs(t, err, ErrDayNotFound)

	_, err = g.ToggleTask(1, "no-such-task")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	assert.Equal(t, before.Status, g.Status)
	for i := range g.Roadmap {
		assert.Equal(t, before.Roadmap[i].Completed, g.Roadmap[i].Completed)
		for j := range g.Roadmap[i].Tasks {
			assert.False(t, g.Roadmap[i].Tasks[j].IsCompleted)
		}
	}
}

func TestDeriveStatus_EmptyRoadmapNeverCompletes(t *testing.T) {
	g := &Goal{Status: StatusInProgress}
	assert.False(t, g.deriveStatus())
	assert.Equal(t, StatusInProgress, g.Status)
}
