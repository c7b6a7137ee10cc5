// Package storage persists goals, personas, and chat threads in NATS KV.
// Goal and thread writes are revision-checked: callers pass the revision
// they read, and a stale revision surfaces as ErrConflict instead of
// silently overwriting a concurrent update.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/habitix/habitix/chat"
	"github.com/habitix/habitix/goal"
)

// Bucket names for each document type.
const (
	BucketGoals    = "HABITIX_GOALS"
	BucketPersonas = "HABITIX_PERSONAS"
	BucketThreads  = "HABITIX_THREADS"
)

// Store provides document storage operations backed by NATS KV.
type Store struct {
	goals    jetstream.KeyValue
	personas jetstream.KeyValue
	threads  jetstream.KeyValue
}

// NewStore creates a new Store with the given JetStream context.
// It creates the necessary KV buckets if they don't exist.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	goals, err := getOrCreateBucket(ctx, js, BucketGoals)
	if err != nil {
		return nil, fmt.Errorf("create goals bucket: %w", err)
	}

	personas, err := getOrCreateBucket(ctx, js, BucketPersonas)
	if err != nil {
		return nil, fmt.Errorf("create personas bucket: %w", err)
	}

	threads, err := getOrCreateBucket(ctx, js, BucketThreads)
	if err != nil {
		return nil, fmt.Errorf("create threads bucket: %w", err)
	}

	return &Store{
		goals:    goals,
		personas: personas,
		threads:  threads,
	}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("Habitix %s storage", strings.ToLower(strings.TrimPrefix(name, "HABITIX_"))),
		History:     5, // Keep last 5 revisions
	})
}

// CreateGoal stores a new goal, assigning its ID and creation time.
// It returns the revision of the stored document.
func (s *Store) CreateGoal(ctx context.Context, g *goal.Goal) (uint64, error) {
	if g.OwnerID == "" {
		return 0, fmt.Errorf("goal owner is required")
	}

	g.ID = uuid.New().String()
	g.CreatedAt = time.Now()
	if g.Status == "" {
		g.Status = goal.StatusInProgress
	}

	data, err := json.Marshal(g)
	if err != nil {
		return 0, fmt.Errorf("marshal goal: %w", err)
	}

	rev, err := s.goals.Create(ctx, g.ID, data)
	if err != nil {
		return 0, fmt.Errorf("store goal: %w", err)
	}

	return rev, nil
}

// FetchGoal retrieves a goal by ID along with the revision that a
// subsequent SaveGoal must present.
func (s *Store) FetchGoal(ctx context.Context, id string) (*goal.Goal, uint64, error) {
	entry, err := s.goals.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("get goal: %w", err)
	}

	var g goal.Goal
	if err := json.Unmarshal(entry.Value(), &g); err != nil {
		return nil, 0, fmt.Errorf("unmarshal goal: %w", err)
	}

	return &g, entry.Revision(), nil
}

// SaveGoal writes a goal back, requiring the revision from the fetch
// that produced it. A stale revision returns ErrConflict.
func (s *Store) SaveGoal(ctx context.Context, g *goal.Goal, revision uint64) (uint64, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return 0, fmt.Errorf("marshal goal: %w", err)
	}

	rev, err := s.goals.Update(ctx, g.ID, data, revision)
	if err != nil {
		if isConflict(err) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("save goal: %w", err)
	}

	return rev, nil
}

// ListGoalsByOwner returns all goals belonging to the given owner.
func (s *Store) ListGoalsByOwner(ctx context.Context, ownerID string) ([]*goal.Goal, error) {
	keys, err := s.goals.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list goal keys: %w", err)
	}

	goals := make([]*goal.Goal, 0, len(keys))
	for _, key := range keys {
		entry, err := s.goals.Get(ctx, key)
		if err != nil {
			continue // Skip entries that fail to load
		}
		var g goal.Goal
		if err := json.Unmarshal(entry.Value(), &g); err != nil {
			continue
		}
		if g.OwnerID == ownerID {
			goals = append(goals, &g)
		}
	}

	return goals, nil
}

// CountGoals returns the number of goals belonging to the given owner.
func (s *Store) CountGoals(ctx context.Context, ownerID string) (int, error) {
	goals, err := s.ListGoalsByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return len(goals), nil
}

// DeleteGoal removes a goal by ID.
func (s *Store) DeleteGoal(ctx context.Context, id string) error {
	if err := s.goals.Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete goal: %w", err)
	}
	return nil
}

// CreatePersona stores a new persona, assigning its ID and timestamps.
func (s *Store) CreatePersona(ctx context.Context, p *chat.Persona) error {
	p.ID = uuid.New().String()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal persona: %w", err)
	}

	if _, err := s.personas.Create(ctx, p.ID, data); err != nil {
		return fmt.Errorf("store persona: %w", err)
	}

	return nil
}

// GetPersona retrieves a persona by ID. A miss returns
// chat.ErrNotFound, the sentinel of the chat Store contract.
func (s *Store) GetPersona(ctx context.Context, id string) (*chat.Persona, error) {
	entry, err := s.personas.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, chat.ErrNotFound
		}
		return nil, fmt.Errorf("get persona: %w", err)
	}

	var p chat.Persona
	if err := json.Unmarshal(entry.Value(), &p); err != nil {
		return nil, fmt.Errorf("unmarshal persona: %w", err)
	}

	return &p, nil
}

// UpdatePersona writes an existing persona back.
func (s *Store) UpdatePersona(ctx context.Context, p *chat.Persona) error {
	p.UpdatedAt = time.Now()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal persona: %w", err)
	}

	if _, err := s.personas.Put(ctx, p.ID, data); err != nil {
		return fmt.Errorf("update persona: %w", err)
	}

	return nil
}

// ListPersonasByOwner returns all personas belonging to the given owner.
func (s *Store) ListPersonasByOwner(ctx context.Context, ownerID string) ([]*chat.Persona, error) {
	keys, err := s.personas.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list persona keys: %w", err)
	}

	personas := make([]*chat.Persona, 0, len(keys))
	for _, key := range keys {
		entry, err := s.personas.Get(ctx, key)
		if err != nil {
			continue
		}
		var p chat.Persona
		if err := json.Unmarshal(entry.Value(), &p); err != nil {
			continue
		}
		if p.OwnerID == ownerID {
			personas = append(personas, &p)
		}
	}

	return personas, nil
}

// DeletePersona removes a persona by ID.
func (s *Store) DeletePersona(ctx context.Context, id string) error {
	if err := s.personas.Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return chat.ErrNotFound
		}
		return fmt.Errorf("delete persona: %w", err)
	}
	return nil
}

// threadKey derives the KV key for a user's thread with a persona.
// One thread per user/persona pair. An ID containing the separator
// would collide with another pair's key, so it is rejected.
func threadKey(ownerID, personaID string) (string, error) {
	if strings.Contains(ownerID, ".") || strings.Contains(personaID, ".") {
		return "", fmt.Errorf("thread ids must not contain '.'")
	}
	return ownerID + "." + personaID, nil
}

// FetchThread retrieves the thread between a user and a persona along
// with its revision. A missing thread returns chat.ErrNotFound; callers
// start a fresh one with revision 0.
func (s *Store) FetchThread(ctx context.Context, ownerID, personaID string) (*chat.Thread, uint64, error) {
	key, err := threadKey(ownerID, personaID)
	if err != nil {
		return nil, 0, err
	}
	entry, err := s.threads.Get(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return nil, 0, chat.ErrNotFound
		}
		return nil, 0, fmt.Errorf("get thread: %w", err)
	}

	var th chat.Thread
	if err := json.Unmarshal(entry.Value(), &th); err != nil {
		return nil, 0, fmt.Errorf("unmarshal thread: %w", err)
	}

	return &th, entry.Revision(), nil
}

// SaveThread writes a thread back at the given revision. Revision 0
// creates the thread; a stale revision returns chat.ErrConflict.
func (s *Store) SaveThread(ctx context.Context, th *chat.Thread, revision uint64) (uint64, error) {
	key, err := threadKey(th.OwnerID, th.PersonaID)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	if th.ID == "" {
		th.ID = uuid.New().String()
		th.CreatedAt = now
	}
	th.UpdatedAt = now

	data, err := json.Marshal(th)
	if err != nil {
		return 0, fmt.Errorf("marshal thread: %w", err)
	}

	if revision == 0 {
		rev, err := s.threads.Create(ctx, key, data)
		if err != nil {
			if isConflict(err) || isKeyExists(err) {
				return 0, chat.ErrConflict
			}
			return 0, fmt.Errorf("store thread: %w", err)
		}
		return rev, nil
	}

	rev, err := s.threads.Update(ctx, key, data, revision)
	if err != nil {
		if isConflict(err) {
			return 0, chat.ErrConflict
		}
		return 0, fmt.Errorf("save thread: %w", err)
	}

	return rev, nil
}

// isNotFound checks if an error indicates a key was not found.
func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "key not found")
}

// isConflict checks if an error indicates a lost revision race.
func isConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "wrong last sequence")
}

// isKeyExists checks if an error indicates a create hit an existing key.
func isKeyExists(err error) bool {
	return err != nil && strings.Contains(err.Error(), "key exists")
}
