package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/habitix/habitix/chat"
	"github.com/habitix/habitix/goal"
	"github.com/habitix/habitix/progress"
	"github.com/habitix/habitix/roadmap"
	"github.com/habitix/habitix/storage"
)

// maxRequestBodySize limits POST body sizes to prevent DoS.
const maxRequestBodySize = 1 << 20 // 1 MB

// RegisterHTTPHandlers registers all API handlers under the given prefix.
// The prefix should be the path segment without a trailing slash (e.g. "api").
// Handlers are registered as:
//
//	GET    <prefix>/goals
//	POST   <prefix>/goals
//	GET    <prefix>/goals/count
//	PATCH  <prefix>/goals/toggle-task
//	GET    <prefix>/goals/{id}
//	DELETE <prefix>/goals/{id}
//	POST   <prefix>/goals/{id}/days/{n}/proof
//	GET    <prefix>/tasks/today
//	GET    <prefix>/personas
//	POST   <prefix>/personas
//	PUT    <prefix>/personas/{id}
//	DELETE <prefix>/personas/{id}
//	POST   <prefix>/chat/{personaId}
func (s *Server) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	// Normalise: ensure leading slash and trailing slash.
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}

	mux.HandleFunc(prefix+"goals", s.handleGoals)
	mux.HandleFunc(prefix+"goals/count", s.handleGoalCount)
	mux.HandleFunc(prefix+"goals/toggle-task", s.handleToggleTask)
	mux.HandleFunc(prefix+"goals/", s.handleGoalByID(prefix))
	mux.HandleFunc(prefix+"tasks/today", s.handleTodaysTasks)
	mux.HandleFunc(prefix+"personas", s.handlePersonas)
	mux.HandleFunc(prefix+"personas/", s.handlePersonaByID(prefix))
	mux.HandleFunc(prefix+"chat/", s.handleChat(prefix))
}

// ----------------------------------------------------------------------------
// GET/POST /api/goals
// ----------------------------------------------------------------------------

// CreateGoalRequest is the request body for POST /api/goals.
type CreateGoalRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Duration      string `json:"duration"`
	HoursPerDay   int    `json:"hoursPerDay"`
	DaysPerWeek   int    `json:"daysPerWeek"`
	PreferredTime string `json:"preferredTime,omitempty"`
	Motivation    string `json:"motivation,omitempty"`
}

func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listGoals(w, r)
	case http.MethodPost:
		s.createGoal(w, r)
	default:
		s.writeError(w, "goals", http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) listGoals(w http.ResponseWriter, r *http.Request) {
	const route = "goals"
	userID, ok := s.authenticate(w, r, route)
	if !ok {
		return
	}

	goals, err := s.goals.ListGoalsByOwner(r.Context(), userID)
	if err != nil {
		s.logger.Error("Failed to list goals", "user_id", userID, "error", err)
		s.writeError(w, route, http.StatusInternalServerError, "Failed to list goals")
		return
	}
	if goals == nil {
		goals = []*goal.Goal{}
	}

	s.writeJSON(w, route, http.StatusOK, goals)
}

func (s *Server) createGoal(w http.ResponseWriter, r *http.Request) {
	const route = "goals"
	userID, ok := s.authenticate(w, r, route)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req CreateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, route, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == "" {
		s.writeError(w, route, http.StatusBadRequest, "title is required")
		return
	}

	days, err := s.generator.Generate(r.Context(), roadmap.GoalDescription{
		Title:         req.Title,
		Duration:      req.Duration,
		HoursPerDay:   req.HoursPerDay,
		DaysPerWeek:   req.DaysPerWeek,
		PreferredTime: req.PreferredTime,
		Motivation:    req.Motivation,
	})
	if err != nil {
		s.logger.Error("Roadmap generation failed",
			"user_id", userID,
			"title", req.Title,
			"error", err)
		s.writeError(w, route, http.StatusBadGateway, "Roadmap generation failed")
		return
	}

	g := &goal.Goal{
		OwnerID:     userID,
		Title:       req.Title,
		Description: req.Description,
		Motivation:  req.Motivation,
		HoursPerDay: req.HoursPerDay,
		DaysPerWeek: req.DaysPerWeek,
		Roadmap:     days,
	}
	if _, err := s.goals.CreateGoal(r.Context(), g); err != nil {
		s.logger.Error("Failed to store goal", "user_id", userID, "error", err)
		s.writeError(w, route, http.StatusInternalServerError, "Failed to store goal")
		return
	}

	s.logger.Info("Goal created",
		"goal_id", g.ID,
		"user_id", userID,
		"days", len(g.Roadmap))

	s.writeJSON(w, route, http.StatusCreated, g)
}

// ----------------------------------------------------------------------------
// GET /api/goals/count
// ----------------------------------------------------------------------------

func (s *Server) handleGoalCount(w http.ResponseWriter, r *http.Request) {
	const route = "goals/count"
	if r.Method != http.MethodGet {
		s.writeError(w, route, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := s.authenticate(w, r, route)
	if !ok {
		return
	}

	count, err := s.goals.CountGoals(r.Context(), userID)
	if err != nil {
		s.logger.Error("Failed to count goals", "user_id", userID, "error", err)
		s.writeError(w, route, http.StatusInternalServerError, "Failed to count goals")
		return
	}

	s.writeJSON(w, route, http.StatusOK, map[string]int{"count": count})
}

// ----------------------------------------------------------------------------
// PATCH /api/goals/toggle-task
// ----------------------------------------------------------------------------

// ToggleTaskRequest is the request body for PATCH /api/goals/toggle-task.
type ToggleTaskRequest struct {
	GoalID    string `json:"goalId"`
	DayNumber int    `json:"dayNumber"`
	TaskID    string `json:"taskId"`
}

// ToggleTaskResponse reports the updated goal and the toggle's side
// effects.
type ToggleTaskResponse struct {
	Goal          *goal.Goal `json:"goal"`
	TaskCompleted bool       `json:"taskCompleted"`
	DayCompleted  bool       `json:"dayCompleted"`
	UnlockedDay   int        `json:"unlockedDay,omitempty"`
	GoalCompleted bool       `json:"goalCompleted"`
}

func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	const route = "goals/toggle-task"
	if r.Method != http.MethodPatch {
		s.writeError(w, route, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := s.authenticate(w, r, route)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req ToggleTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, route, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.GoalID == "" || req.TaskID == "" || req.DayNumber < 1 {
		s.writeError(w, route, http.StatusBadRequest, "goalId, dayNumber and taskId are required")
		return
	}

	g, result, err := s.progression.ToggleTask(r.Context(), userID, req.GoalID, req.DayNumber, req.TaskID)
	if err != nil {
		s.writeDomainError(w, route, err, "Failed to toggle task")
		return
	}

	s.writeJSON(w, route, http.StatusOK, ToggleTaskResponse{
		Goal:          g,
		TaskCompleted: result.TaskCompleted,
		DayCompleted:  result.DayCompleted,
		UnlockedDay:   result.UnlockedDay,
		GoalCompleted: result.GoalCompleted,
	})
}

// ----------------------------------------------------------------------------
// /api/goals/{id} and /api/goals/{id}/days/{n}/proof
// ----------------------------------------------------------------------------

// ProofRequest is the request body for POST .../days/{n}/proof.
type ProofRequest struct {
	ImageURL string `json:"imageUrl"`
}

func (s *Server) handleGoalByID(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const route = "goals/{id}"
		rest := strings.TrimPrefix(r.URL.Path, prefix+"goals/")
		parts := strings.Split(strings.Trim(rest, "/"), "/")

		switch {
		case len(parts) == 1 && parts[0] != "":
			s.goalDetail(w, r, parts[0])
		case len(parts) == 4 && parts[1] == "days" && parts[3] == "proof":
			s.attachProof(w, r, parts[0], parts[2])
		default:
			s.writeError(w, route, http.StatusNotFound, "Not found")
		}
	}
}

func (s *Server) goalDetail(w http.ResponseWriter, r *http.Request, goalID string) {
	const route = "goals/{id}"
	userID, ok := s.authenticate(w, r, route)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		g, _, err := s.goals.FetchGoal(r.Context(), goalID)
		if err != nil {
			s.writeDomainError(w, route, err, "Failed to fetch goal")
			return
		}
		if g.OwnerID != userID {
			s.writeError(w, route, http.StatusForbidden, "Forbidden")
			return
		}
		s.writeJSON(w, route, http.StatusOK, g)

	case http.MethodDelete:
		g, _, err := s.goals.FetchGoal(r.Context(), goalID)
		if err != nil {
			s.writeDomainError(w, route, err, "Failed to fetch goal")
			return
		}
		if g.OwnerID != userID {
			s.writeError(w, route, http.StatusForbidden, "Forbidden")
			return
		}
		if err := s.goals.DeleteGoal(r.Context(), goalID); err != nil {
			s.writeDomainError(w, route, err, "Failed to delete goal")
			return
		}
		s.writeJSON(w, route, http.StatusOK, map[string]bool{"deleted": true})

	default:
		s.writeError(w, route, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) attachProof(w http.ResponseWriter, r *http.Request, goalID, dayPart string) {
	const route = "goals/{id}/days/{n}/proof"
	if r.Method != http.MethodPost {
		s.writeError(w, route, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := s.authenticate(w, r, route)
	if !ok {
		return
	}

	dayNumber, err := strconv.Atoi(dayPart)
	if err != nil || dayNumber < 1 {
		s.writeError(w, route, http.StatusBadRequest, "invalid day number")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req ProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, route, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ImageURL == "" {
		s.writeError(w, route, http.StatusBadRequest, "imageUrl is required")
		return
	}

	g, err := s.progression.AttachProof(r.Context(), userID, goalID, dayNumber, req.ImageURL)
	if err != nil {
		s.writeDomainError(w, route, err, "Failed to attach proof")
		return
	}

	s.writeJSON(w, route, http.StatusOK, g)
}

// ----------------------------------------------------------------------------
// GET /api/tasks/today
// ----------------------------------------------------------------------------

func (s *Server) handleTodaysTasks(w http.ResponseWriter, r *http.Request) {
	const route = "tasks/today"
	if r.Method != http.MethodGet {
		s.writeError(w, route, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := s.authenticate(w, r, route)
	if !ok {
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		s.writeError(w, route, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	tasks, err := s.progression.TodaysTasks(r.Context(), userID, date)
	if err != nil {
		s.logger.Error("Failed to collect today's tasks", "user_id", userID, "error", err)
		s.writeError(w, route, http.StatusInternalServerError, "Failed to collect tasks")
		return
	}
	if tasks == nil {
		tasks = []progress.TodayTask{}
	}

	s.writeJSON(w, route, http.StatusOK, tasks)
}

// ----------------------------------------------------------------------------
// Personas
// ----------------------------------------------------------------------------

// PersonaRequest is the request body for persona create and update.
type PersonaRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	AvatarEmoji  string `json:"avatarEmoji,omitempty"`
	SystemPrompt string `json:"systemPrompt"`
}

func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	const route = "personas"
	userID, ok := s.authenticate(w, r, route)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		personas, err := s.personas.ListPersonasByOwner(r.Context(), userID)
		if err != nil {
			s.logger.Error("Failed to list personas", "user_id", userID, "error", err)
			s.writeError(w, route, http.StatusInternalServerError, "Failed to list personas")
			return
		}
		if personas == nil {
			personas = []*chat.Persona{}
		}
		s.writeJSON(w, route, http.StatusOK, personas)

	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req PersonaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, route, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Name == "" || req.SystemPrompt == "" {
			s.writeError(w, route, http.StatusBadRequest, "name and systemPrompt are required")
			return
		}

		p := &chat.Persona{
			OwnerID:      userID,
			Name:         req.Name,
			Description:  req.Description,
			AvatarEmoji:  req.AvatarEmoji,
			SystemPrompt: req.SystemPrompt,
		}
		if err := s.personas.CreatePersona(r.Context(), p); err != nil {
			s.logger.Error("Failed to create persona", "user_id", userID, "error", err)
			s.writeError(w, route, http.StatusInternalServerError, "Failed to create persona")
			return
		}
		s.writeJSON(w, route, http.StatusCreated, p)

	default:
		s.writeError(w, route, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handlePersonaByID(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const route = "personas/{id}"
		personaID := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix+"personas/"), "/")
		if personaID == "" || strings.Contains(personaID, "/") {
			s.writeError(w, route, http.StatusNotFound, "Not found")
			return
		}

		userID, ok := s.authenticate(w, r, route)
		if !ok {
			return
		}

		p, err := s.personas.GetPersona(r.Context(), personaID)
		if err != nil {
			s.writeDomainError(w, route, err, "Failed to fetch persona")
			return
		}
		if p.OwnerID != userID {
			s.writeError(w, route, http.StatusForbidden, "Forbidden")
			return
		}

		switch r.Method {
		case http.MethodGet:
			s.writeJSON(w, route, http.StatusOK, p)

		case http.MethodPut:
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
			var req PersonaRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				s.writeError(w, route, http.StatusBadRequest, "Invalid request body")
				return
			}
			if req.Name != "" {
				p.Name = req.Name
			}
			if req.Description != "" {
				p.Description = req.Description
			}
			if req.AvatarEmoji != "" {
				p.AvatarEmoji = req.AvatarEmoji
			}
			if req.SystemPrompt != "" {
				p.SystemPrompt = req.SystemPrompt
			}
			if err := s.personas.UpdatePersona(r.Context(), p); err != nil {
				s.logger.Error("Failed to update persona", "persona_id", personaID, "error", err)
				s.writeError(w, route, http.StatusInternalServerError, "Failed to update persona")
				return
			}
			s.writeJSON(w, route, http.StatusOK, p)

		case http.MethodDelete:
			if err := s.personas.DeletePersona(r.Context(), personaID); err != nil {
				s.writeDomainError(w, route, err, "Failed to delete persona")
				return
			}
			s.writeJSON(w, route, http.StatusOK, map[string]bool{"deleted": true})

		default:
			s.writeError(w, route, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// ----------------------------------------------------------------------------
// POST /api/chat/{personaId}
// ----------------------------------------------------------------------------

// ChatRequest is the request body for POST /api/chat/{personaId}.
type ChatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const route = "chat/{personaId}"
		if r.Method != http.MethodPost {
			s.writeError(w, route, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		personaID := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix+"chat/"), "/")
		if personaID == "" || strings.Contains(personaID, "/") {
			s.writeError(w, route, http.StatusNotFound, "Not found")
			return
		}

		userID, ok := s.authenticate(w, r, route)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, route, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Message == "" {
			s.writeError(w, route, http.StatusBadRequest, "message is required")
			return
		}

		reply, err := s.chat.Reply(r.Context(), userID, personaID, req.Message)
		if err != nil {
			s.writeDomainError(w, route, err, "Chat failed")
			return
		}

		s.writeJSON(w, route, http.StatusOK, reply)
	}
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

// authenticate resolves the acting user or writes a 401 response.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, route string) (string, bool) {
	userID, err := s.auth.Authenticate(r)
	if err != nil {
		s.writeError(w, route, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	return userID, true
}

// writeDomainError maps domain errors to HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, route string, err error, fallback string) {
	var genErr *roadmap.GenerationError
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, chat.ErrNotFound),
		errors.Is(err, goal.ErrDayNotFound),
		errors.Is(err, goal.ErrTaskNotFound):
		s.writeError(w, route, http.StatusNotFound, "Not found")
	case errors.Is(err, progress.ErrForbidden), errors.Is(err, chat.ErrForbidden):
		s.writeError(w, route, http.StatusForbidden, "Forbidden")
	case errors.Is(err, storage.ErrConflict),
		errors.Is(err, chat.ErrConflict),
		errors.Is(err, progress.ErrDayLocked):
		s.writeError(w, route, http.StatusConflict, err.Error())
	case errors.As(err, &genErr):
		s.writeError(w, route, http.StatusBadGateway, "Roadmap generation failed")
	default:
		s.logger.Error("Request failed", "route", route, "error", err)
		s.writeError(w, route, http.StatusInternalServerError, fallback)
	}
}

// writeJSON marshals v as JSON and writes it with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, route string, status int, v any) {
	s.metrics.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", "route", route, "error", err)
	}
}

// writeError writes a JSON error body with the given status code.
func (s *Server) writeError(w http.ResponseWriter, route string, status int, msg string) {
	s.metrics.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		s.logger.Warn("Failed to encode error response", "route", route, "error", err)
	}
}
