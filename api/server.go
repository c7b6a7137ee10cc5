// Package api exposes the HTTP surface: goal CRUD and roadmap
// generation, task toggling, the daily dashboard, proof uploads,
// personas, and persona chat. Handlers resolve the acting user through
// an Authenticator; no identity is ever assumed.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/habitix/habitix/chat"
	"github.com/habitix/habitix/goal"
	"github.com/habitix/habitix/progress"
	"github.com/habitix/habitix/roadmap"
)

// ErrUnauthenticated is returned by Authenticators when no identity can
// be established for a request.
var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator resolves the acting user from a request.
type Authenticator interface {
	Authenticate(r *http.Request) (userID string, err error)
}

// HeaderAuthenticator trusts an identity header set by an upstream
// gateway that has already verified the session.
type HeaderAuthenticator struct {
	Header string
}

// Authenticate returns the user ID carried in the configured header.
func (a *HeaderAuthenticator) Authenticate(r *http.Request) (string, error) {
	header := a.Header
	if header == "" {
		header = "X-User-ID"
	}
	userID := strings.TrimSpace(r.Header.Get(header))
	if userID == "" {
		return "", ErrUnauthenticated
	}
	return userID, nil
}

// GoalStore is the goal persistence surface the API needs.
type GoalStore interface {
	CreateGoal(ctx context.Context, g *goal.Goal) (uint64, error)
	FetchGoal(ctx context.Context, id string) (*goal.Goal, uint64, error)
	ListGoalsByOwner(ctx context.Context, ownerID string) ([]*goal.Goal, error)
	CountGoals(ctx context.Context, ownerID string) (int, error)
	DeleteGoal(ctx context.Context, id string) error
}

// PersonaStore is the persona persistence surface the API needs.
type PersonaStore interface {
	CreatePersona(ctx context.Context, p *chat.Persona) error
	GetPersona(ctx context.Context, id string) (*chat.Persona, error)
	UpdatePersona(ctx context.Context, p *chat.Persona) error
	ListPersonasByOwner(ctx context.Context, ownerID string) ([]*chat.Persona, error)
	DeletePersona(ctx context.Context, id string) error
}

// Progression applies task toggles and related day operations.
type Progression interface {
	ToggleTask(ctx context.Context, ownerID, goalID string, dayNumber int, taskID string) (*goal.Goal, goal.ToggleResult, error)
	AttachProof(ctx context.Context, ownerID, goalID string, dayNumber int, imageURL string) (*goal.Goal, error)
	TodaysTasks(ctx context.Context, ownerID, date string) ([]progress.TodayTask, error)
}

// RoadmapGenerator produces roadmaps for new goals.
type RoadmapGenerator interface {
	Generate(ctx context.Context, desc roadmap.GoalDescription) ([]goal.Day, error)
}

// ChatService runs persona conversations.
type ChatService interface {
	Reply(ctx context.Context, ownerID, personaID, message string) (*chat.Message, error)
}

// Server holds the API dependencies.
type Server struct {
	goals       GoalStore
	personas    PersonaStore
	progression Progression
	generator   RoadmapGenerator
	chat        ChatService
	auth        Authenticator
	logger      *slog.Logger
	metrics     *serverMetrics
}

// serverMetrics counts HTTP activity per route.
type serverMetrics struct {
	requests *prometheus.CounterVec
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &serverMetrics{
		requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "habitix_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "status"}),
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAuthenticator overrides the identity source.
func WithAuthenticator(auth Authenticator) ServerOption {
	return func(s *Server) {
		s.auth = auth
	}
}

// WithMetricsRegisterer registers HTTP counters with the given
// registerer instead of the default one.
func WithMetricsRegisterer(reg prometheus.Registerer) ServerOption {
	return func(s *Server) {
		s.metrics = newServerMetrics(reg)
	}
}

// NewServer creates an API server.
func NewServer(goals GoalStore, personas PersonaStore, progression Progression, generator RoadmapGenerator, chatSvc ChatService, opts ...ServerOption) *Server {
	s := &Server{
		goals:       goals,
		personas:    personas,
		progression: progression,
		generator:   generator,
		chat:        chatSvc,
		auth:        &HeaderAuthenticator{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = newServerMetrics(nil)
	}
	return s
}
