package progress

import (
	"context"
	"fmt"

	"github.com/habitix/habitix/goal"
)

// TodayTask is a task surfaced on the daily dashboard, annotated with
// the goal and day it belongs to.
type TodayTask struct {
	GoalID    string    `json:"goalId"`
	GoalTitle string    `json:"goalTitle"`
	DayNumber int       `json:"dayNumber"`
	Task      goal.Task `json:"task"`
}

// TodaysTasks collects the tasks a user should work on for the given
// date. For each in-progress goal it picks the day scheduled for that
// date, or the first unlocked incomplete day when the roadmap carries
// no dates.
func (e *Engine) TodaysTasks(ctx context.Context, ownerID, date string) ([]TodayTask, error) {
	goals, err := e.store.ListGoalsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}

	tasks := make([]TodayTask, 0)
	for _, g := range goals {
		if g.Status == goal.StatusCompleted {
			continue
		}
		day := currentDay(g, date)
		if day == nil {
			continue
		}
		for _, task := range day.Tasks {
			tasks = append(tasks, TodayTask{
				GoalID:    g.ID,
				GoalTitle: g.Title,
				DayNumber: day.DayNumber,
				Task:      task,
			})
		}
	}

	return tasks, nil
}

// currentDay selects the day to surface for a goal. Dated roadmaps
// match on the calendar date; undated ones fall back to the first
// unlocked day that is not yet complete.
func currentDay(g *goal.Goal, date string) *goal.Day {
	for i := range g.Roadmap {
		day := &g.Roadmap[i]
		if day.Date != nil && *day.Date == date && day.Unlocked {
			return day
		}
	}
	for i := range g.Roadmap {
		day := &g.Roadmap[i]
		if day.Date == nil && day.Unlocked && !day.Completed {
			return day
		}
	}
	return nil
}
