package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/habitix/habitix/llm"
)

// historyLimit caps how many prior messages are replayed to the model.
const historyLimit = 20

// maxSaveAttempts bounds thread save retries after a lost revision race.
const maxSaveAttempts = 3

// Store is the persistence dependency of the chat service. Lookup
// misses surface as ErrNotFound and lost revision races as ErrConflict.
type Store interface {
	GetPersona(ctx context.Context, id string) (*Persona, error)
	FetchThread(ctx context.Context, ownerID, personaID string) (*Thread, uint64, error)
	SaveThread(ctx context.Context, th *Thread, revision uint64) (uint64, error)
}

// Completer is the LLM dependency of the chat service.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Service runs persona conversations.
type Service struct {
	store  Store
	client Completer
	logger *slog.Logger
	now    func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a chat service.
func NewService(store Store, client Completer, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		client: client,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reply sends a user message to a persona and returns the assistant
// reply. Both turns are appended to the user's thread with that
// persona.
func (s *Service) Reply(ctx context.Context, ownerID, personaID, message string) (*Message, error) {
	if message == "" {
		return nil, fmt.Errorf("message is required")
	}

	persona, err := s.store.GetPersona(ctx, personaID)
	if err != nil {
		return nil, fmt.Errorf("get persona: %w", err)
	}
	if persona.OwnerID != ownerID {
		return nil, ErrForbidden
	}

	thread, revision, err := s.store.FetchThread(ctx, ownerID, personaID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("fetch thread: %w", err)
		}
		thread = &Thread{OwnerID: ownerID, PersonaID: personaID}
		revision = 0
	}

	resp, err := s.client.Complete(ctx, llm.Request{
		Capability: llm.CapabilityChat,
		Messages:   buildMessages(persona, thread, message),
	})
	if err != nil {
		return nil, fmt.Errorf("persona completion: %w", err)
	}
	if resp.Content == "" {
		return nil, fmt.Errorf("persona returned no content")
	}

	now := s.now()
	userTurn := Message{Role: "user", Content: message, CreatedAt: now}
	reply := Message{Role: "assistant", Content: resp.Content, CreatedAt: now}

	if err := s.appendTurns(ctx, thread, revision, userTurn, reply); err != nil {
		// Reply was produced; losing the history write is logged but
		// not fatal to the conversation.
		s.logger.Warn("Failed to persist chat turns",
			"persona_id", personaID,
			"error", err)
	}

	s.logger.Debug("Persona replied",
		"persona_id", personaID,
		"model", resp.Model,
		"tokens_used", resp.Usage.TotalTokens)

	return &reply, nil
}

// appendTurns saves the new turns, reapplying them to a fresh thread
// snapshot after a lost revision race.
func (s *Service) appendTurns(ctx context.Context, thread *Thread, revision uint64, turns ...Message) error {
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		thread.Messages = append(thread.Messages, turns...)
		_, err := s.store.SaveThread(ctx, thread, revision)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) || attempt == maxSaveAttempts {
			return err
		}

		fresh, rev, fetchErr := s.store.FetchThread(ctx, thread.OwnerID, thread.PersonaID)
		if fetchErr != nil {
			return fetchErr
		}
		thread = fresh
		revision = rev
	}
	return nil
}

// buildMessages assembles the completion request: system prompt, the
// recent history window, then the new user message.
func buildMessages(persona *Persona, thread *Thread, message string) []llm.Message {
	history := thread.Messages
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: persona.SystemPrompt})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: message})
	return messages
}
