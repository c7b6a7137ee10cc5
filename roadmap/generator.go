// Package roadmap turns a goal questionnaire into an ordered list of
// days with tasks by prompting an LLM and normalizing its JSON output
// into the domain shape. Generation is one-shot: a failed call produces
// no partial roadmap, and the same input is safe to retry.
package roadmap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/habitix/habitix/goal"
	"github.com/habitix/habitix/llm"
)

// dateLayout is the calendar date format stored on days.
const dateLayout = "2006-01-02"

// GoalDescription is the questionnaire a user answers before generation.
// Validation is deliberately permissive: empty strings pass through to
// the prompt, and non-positive numeric fields are coerced to 1.
type GoalDescription struct {
	Title         string `json:"title"`
	Duration      string `json:"duration"`
	HoursPerDay   int    `json:"hoursPerDay"`
	DaysPerWeek   int    `json:"daysPerWeek"`
	PreferredTime string `json:"preferredTime"`
	Motivation    string `json:"motivation"`
}

// Normalize coerces non-positive numeric fields to 1, preserving the
// product's lenient intake behavior.
func (d *GoalDescription) Normalize() {
	if d.HoursPerDay < 1 {
		d.HoursPerDay = 1
	}
	if d.DaysPerWeek < 1 {
		d.DaysPerWeek = 1
	}
}

// Completer is the LLM dependency of the generator.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Generator converts goal descriptions into roadmaps.
type Generator struct {
	client      Completer
	capability  llm.Capability
	temperature float64
	maxTokens   int
	startDate   *time.Time
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithCapability overrides the registry capability used for generation.
func WithCapability(cap llm.Capability) Option {
	return func(g *Generator) {
		g.capability = cap
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float64) Option {
	return func(g *Generator) {
		g.temperature = temp
	}
}

// WithMaxTokens limits the completion length.
func WithMaxTokens(n int) Option {
	return func(g *Generator) {
		g.maxTokens = n
	}
}

// WithStartDate schedules consecutive calendar dates onto the generated
// days, starting at the given date. Without it, days carry no date.
func WithStartDate(start time.Time) Option {
	return func(g *Generator) {
		g.startDate = &start
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// NewGenerator creates a roadmap generator backed by the given client.
func NewGenerator(client Completer, opts ...Option) *Generator {
	g := &Generator{
		client:      client,
		capability:  llm.CapabilityRoadmap,
		temperature: 0.7,
		maxTokens:   4096,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// generatedDay is the wire shape the model is asked to produce.
type generatedDay struct {
	DayNumber int `json:"dayNumber"`
	Tasks     []struct {
		Title string `json:"title"`
	} `json:"tasks"`
}

// Generate produces a fresh roadmap for the described goal. Day 1 comes
// back unlocked, every other day locked, all tasks incomplete. A failed
// or unparseable LLM reply yields a *GenerationError and no roadmap.
func (g *Generator) Generate(ctx context.Context, desc GoalDescription) ([]goal.Day, error) {
	desc.Normalize()

	temp := g.temperature
	resp, err := g.client.Complete(ctx, llm.Request{
		Capability:  g.capability,
		Messages:    []llm.Message{{Role: "user", Content: buildPrompt(desc)}},
		Temperature: &temp,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return nil, &GenerationError{Reason: "LLM completion failed", Err: err}
	}
	if resp.Content == "" {
		return nil, &GenerationError{Reason: "LLM returned no content"}
	}

	g.logger.Debug("Roadmap response received",
		"model", resp.Model,
		"tokens_used", resp.Usage.TotalTokens)

	days, err := g.parseRoadmap(resp.Content)
	if err != nil {
		return nil, err
	}

	g.logger.Info("Roadmap generated",
		"title", desc.Title,
		"days", len(days),
		"model", resp.Model)

	return days, nil
}

// parseRoadmap extracts the JSON array from the reply and normalizes it
// into domain days.
func (g *Generator) parseRoadmap(content string) ([]goal.Day, error) {
	jsonContent := llm.ExtractJSONArray(content)
	if jsonContent == "" {
		return nil, &GenerationError{Reason: "no JSON array in LLM response"}
	}

	var generated []generatedDay
	if err := json.Unmarshal([]byte(jsonContent), &generated); err != nil {
		return nil, &GenerationError{Reason: "malformed roadmap JSON", Err: err}
	}
	if len(generated) == 0 {
		return nil, &GenerationError{Reason: "empty roadmap"}
	}

	now := g.now()
	days := make([]goal.Day, len(generated))
	for i, gd := range generated {
		// Renumber sequentially; model-assigned numbers are not trusted
		// to be contiguous.
		day := goal.Day{
			DayNumber: i + 1,
			Unlocked:  i == 0,
			Completed: false,
			Proof:     goal.Proof{Uploaded: false},
		}
		if g.startDate != nil {
			date := g.startDate.AddDate(0, 0, i).Format(dateLayout)
			day.Date = &date
		}
		for _, gt := range gd.Tasks {
			if gt.Title == "" {
				continue
			}
			day.Tasks = append(day.Tasks, goal.Task{
				ID:          uuid.New().String(),
				Title:       gt.Title,
				IsCompleted: false,
				CreatedAt:   now,
			})
		}
		days[i] = day
	}

	return days, nil
}

// buildPrompt renders the coach prompt for a goal description.
func buildPrompt(desc GoalDescription) string {
	return fmt.Sprintf(`You're a productivity and goal-setting coach. Create a detailed day-by-day roadmap for achieving the following goal.

Goal: %s
Desired duration: %s
Days per week: %d
Work time per day: %d hours
Preferred time of day: %s
Motivation: %s

Return a JSON array where each item represents one day of the roadmap. Each day should include:
- "dayNumber": number (1-based)
- "tasks": an array of 3-5 small actionable task objects with "title"

Example format:
[
  {
    "dayNumber": 1,
    "tasks": [
      { "title": "Read 10 pages of X" },
      { "title": "Summarize notes" }
    ]
  }
]
ONLY RETURN JSON. Do not include explanations.`,
		desc.Title, desc.Duration, desc.DaysPerWeek, desc.HoursPerDay, desc.PreferredTime, desc.Motivation)
}
