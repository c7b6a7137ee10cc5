package goal

// ToggleResult reports the side effects of a single task toggle.
type ToggleResult struct {
	// TaskCompleted is the task's state after the toggle.
	TaskCompleted bool

	// DayCompleted is the day's derived state after the toggle.
	DayCompleted bool

	// UnlockedDay is the dayNumber that flipped from locked to unlocked
	// as a consequence of this toggle, or 0 if none did.
	UnlockedDay int

	// GoalCompleted is true when this toggle transitioned the goal's
	// status to completed.
	GoalCompleted bool
}

// ToggleTask flips the completion state of one task and rolls the
// consequences forward: the day's completed flag is recomputed, the next
// day is unlocked when the day is fully done, and the goal's status is
// re-derived. Unlocks are sticky: toggling a task back off never
// re-locks a following day.
//
// All lookups happen before any mutation, so a failed lookup leaves the
// goal untouched.
func (g *Goal) ToggleTask(dayNumber int, taskID string) (ToggleResult, error) {
	day := g.Day(dayNumber)
	if day == nil {
		return ToggleResult{}, ErrDayNotFound
	}
	task := day.task(taskID)
	if task == nil {
		return ToggleResult{}, ErrTaskNotFound
	}

	task.IsCompleted = !task.IsCompleted
	day.Completed = day.allTasksCompleted()

	res := ToggleResult{
		TaskCompleted: task.IsCompleted,
		DayCompleted:  day.Completed,
	}

	if day.Completed {
		if next := g.Day(dayNumber + 1); next != nil && !next.Unlocked {
			next.Unlocked = true
			res.UnlockedDay = next.DayNumber
		}
	}

	res.GoalCompleted = g.deriveStatus()
	return res, nil
}

// deriveStatus recomputes the goal's status from its days and reports
// whether the goal transitioned to completed on this call. A goal with
// an empty roadmap never completes.
func (g *Goal) deriveStatus() bool {
	prev := g.Status
	if len(g.Roadmap) > 0 && g.allDaysCompleted() {
		g.Status = StatusCompleted
	} else {
		g.Status = StatusInProgress
	}
	return prev != StatusCompleted && g.Status == StatusCompleted
}
