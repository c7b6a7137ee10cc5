// Package goal defines the Habitix domain model: a user's goal decomposed
// into an ordered roadmap of days, each day holding completable tasks.
// Progression rules (day completion, next-day unlock, derived goal status)
// live here as pure in-memory operations; persistence is the storage
// package's concern.
package goal

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a goal.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Goal is a user's stated objective decomposed into a multi-day roadmap.
// Title, Description and Motivation are immutable after creation; the
// roadmap is mutated only through ToggleTask and proof attachment.
type Goal struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Motivation  string    `json:"motivation"`
	HoursPerDay int       `json:"hoursPerDay"`
	DaysPerWeek int       `json:"daysPerWeek"`
	Status      Status    `json:"status"`
	Roadmap     []Day     `json:"roadmap"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Day is one ordered unit of the roadmap. DayNumber is 1-based and
// contiguous within a goal. Completed is derived state: true iff every
// task is completed (vacuously true for a day with no tasks, which
// models rest days).
type Day struct {
	DayNumber int     `json:"dayNumber"`
	Date      *string `json:"date"`
	Unlocked  bool    `json:"unlocked"`
	Completed bool    `json:"completed"`
	Tasks     []Task  `json:"tasks"`
	Proof     Proof   `json:"proof"`
}

// Task is an atomic, independently completable unit of work within a day.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	IsCompleted bool      `json:"isCompleted"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Proof is optional evidence attached to a day. It is a write-only
// artifact: nothing validates it against task completion.
type Proof struct {
	Uploaded   bool       `json:"uploaded"`
	ImageURL   *string    `json:"imageUrl"`
	UploadedAt *time.Time `json:"uploadedAt"`
}

// Lookup errors returned by ToggleTask and Day.
var (
	ErrDayNotFound  = errors.New("day not found")
	ErrTaskNotFound = errors.New("task not found")
)

// Day returns the day with the given dayNumber, or nil.
func (g *Goal) Day(dayNumber int) *Day {
	for i := range g.Roadmap {
		if g.Roadmap[i].DayNumber == dayNumber {
			return &g.Roadmap[i]
		}
	}
	return nil
}

// task returns the task with the given id within the day, or nil.
func (d *Day) task(taskID string) *Task {
	for i := range d.Tasks {
		if d.Tasks[i].ID == taskID {
			return &d.Tasks[i]
		}
	}
	return nil
}

// allTasksCompleted reports whether every task in the day is completed.
// A day with zero tasks counts as completed.
func (d *Day) allTasksCompleted() bool {
	for i := range d.Tasks {
		if !d.Tasks[i].IsCompleted {
			return false
		}
	}
	return true
}

// allDaysCompleted reports whether every day in the roadmap is completed.
func (g *Goal) allDaysCompleted() bool {
	for i := range g.Roadmap {
		if !g.Roadmap[i].Completed {
			return false
		}
	}
	return true
}
