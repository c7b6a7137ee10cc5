package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitix/habitix/chat"
	"github.com/habitix/habitix/goal"
)

func TestThreadKey(t *testing.T) {
	key, err := threadKey("user-1", "persona-2")
	require.NoError(t, err)
	assert.Equal(t, "user-1.persona-2", key)

	// The separator inside an ID would collide with another pair's key.
	_, err = threadKey("user-1.persona", "2")
	assert.Error(t, err)
	_, err = threadKey("user-1", "persona.2")
	assert.Error(t, err)
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, isNotFound(errors.New("nats: key not found")))
	assert.False(t, isNotFound(errors.New("nats: timeout")))
	assert.False(t, isNotFound(nil))

	assert.True(t, isConflict(errors.New("nats: wrong last sequence: 4")))
	assert.False(t, isConflict(errors.New("nats: key not found")))
	assert.False(t, isConflict(nil))

	assert.True(t, isKeyExists(errors.New("nats: key exists")))
	assert.False(t, isKeyExists(nil))
}

// testStore connects to a live NATS server when HABITIX_NATS_URL is
// set, skipping otherwise.
func testStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("HABITIX_NATS_URL")
	if url == "" {
		t.Skip("HABITIX_NATS_URL not set; skipping integration test")
	}

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	store, err := NewStore(context.Background(), js)
	require.NoError(t, err)
	return store
}

func TestGoalLifecycle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	g := &goal.Goal{
		OwnerID: "itest-owner",
		Title:   "Learn Go",
		Roadmap: []goal.Day{
			{DayNumber: 1, Unlocked: true, Tasks: []goal.Task{
				{ID: "t1", Title: "Install toolchain", CreatedAt: time.Now()},
			}},
		},
	}

	rev, err := store.CreateGoal(ctx, g)
	require.NoError(t, err)
	require.NotEmpty(t, g.ID)
	assert.Equal(t, goal.StatusInProgress, g.Status)

	defer func() {
		require.NoError(t, store.DeleteGoal(ctx, g.ID))
	}()

	fetched, fetchedRev, err := store.FetchGoal(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, rev, fetchedRev)
	assert.Equal(t, g.Title, fetched.Title)
	require.Len(t, fetched.Roadmap, 1)
	assert.True(t, fetched.Roadmap[0].Unlocked)

	fetched.Roadmap[0].Tasks[0].IsCompleted = true
	newRev, err := store.SaveGoal(ctx, fetched, fetchedRev)
	require.NoError(t, err)
	assert.Greater(t, newRev, fetchedRev)

	// Writing with the stale revision loses the race.
	_, err = store.SaveGoal(ctx, fetched, fetchedRev)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestFetchGoalNotFound(t *testing.T) {
	store := testStore(t)

	_, _, err := store.FetchGoal(context.Background(), "nonexistent-goal")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListGoalsByOwnerFiltersOthers(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	mine := &goal.Goal{OwnerID: "itest-list-owner", Title: "Mine"}
	theirs := &goal.Goal{OwnerID: "itest-other-owner", Title: "Theirs"}

	_, err := store.CreateGoal(ctx, mine)
	require.NoError(t, err)
	_, err = store.CreateGoal(ctx, theirs)
	require.NoError(t, err)

	defer func() {
		_ = store.DeleteGoal(ctx, mine.ID)
		_ = store.DeleteGoal(ctx, theirs.ID)
	}()

	goals, err := store.ListGoalsByOwner(ctx, "itest-list-owner")
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, "Mine", goals[0].Title)

	count, err := store.CountGoals(ctx, "itest-list-owner")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestThreadLifecycle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	th := &chat.Thread{
		OwnerID:   "itest-chat-owner",
		PersonaID: "itest-persona",
		Messages: []chat.Message{
			{Role: "user", Content: "hello", CreatedAt: time.Now()},
		},
	}

	_, _, err := store.FetchThread(ctx, th.OwnerID, th.PersonaID)
	require.ErrorIs(t, err, chat.ErrNotFound)

	rev, err := store.SaveThread(ctx, th, 0)
	require.NoError(t, err)
	require.NotEmpty(t, th.ID)

	defer func() {
		key, keyErr := threadKey(th.OwnerID, th.PersonaID)
		require.NoError(t, keyErr)
		_ = store.threads.Delete(ctx, key)
	}()

	fetched, fetchedRev, err := store.FetchThread(ctx, th.OwnerID, th.PersonaID)
	require.NoError(t, err)
	assert.Equal(t, rev, fetchedRev)
	require.Len(t, fetched.Messages, 1)

	// Creating again at revision 0 conflicts with the existing thread.
	_, err = store.SaveThread(ctx, &chat.Thread{
		OwnerID:   th.OwnerID,
		PersonaID: th.PersonaID,
	}, 0)
	assert.ErrorIs(t, err, chat.ErrConflict)

	fetched.Messages = append(fetched.Messages, chat.Message{
		Role: "assistant", Content: "hi", CreatedAt: time.Now(),
	})
	_, err = store.SaveThread(ctx, fetched, fetchedRev)
	require.NoError(t, err)
}

func TestGetPersonaNotFound(t *testing.T) {
	store := testStore(t)

	_, err := store.GetPersona(context.Background(), "nonexistent-persona")
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestPersonaLifecycle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	p := &chat.Persona{
		OwnerID:      "itest-persona-owner",
		Name:         "Drill Sergeant",
		SystemPrompt: "You are a strict coach.",
	}

	require.NoError(t, store.CreatePersona(ctx, p))
	require.NotEmpty(t, p.ID)

	defer func() {
		require.NoError(t, store.DeletePersona(ctx, p.ID))
	}()

	fetched, err := store.GetPersona(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Drill Sergeant", fetched.Name)

	fetched.Description = "tough love"
	require.NoError(t, store.UpdatePersona(ctx, fetched))

	personas, err := store.ListPersonasByOwner(ctx, "itest-persona-owner")
	require.NoError(t, err)
	require.Len(t, personas, 1)
	assert.Equal(t, "tough love", personas[0].Description)
}
