package progress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitix/habitix/goal"
)

func TestAttachProofOnUnlockedDay(t *testing.T) {
	store := newFakeStore(twoDayGoal())
	engine := NewEngine(store)

	g, err := engine.AttachProof(context.Background(), "user-1", "g1", 1, "https://img.example/proof.jpg")
	require.NoError(t, err)

	day := g.Day(1)
	assert.True(t, day.Proof.Uploaded)
	require.NotNil(t, day.Proof.ImageURL)
	assert.Equal(t, "https://img.example/proof.jpg", *day.Proof.ImageURL)
	require.NotNil(t, day.Proof.UploadedAt)

	stored := store.goals["g1"]
	assert.True(t, stored.Roadmap[0].Proof.Uploaded)
}

func TestAttachProofRejectsLockedDay(t *testing.T) {
	store := newFakeStore(twoDayGoal())
	engine := NewEngine(store)

	_, err := engine.AttachProof(context.Background(), "user-1", "g1", 2, "https://img.example/proof.jpg")
	assert.ErrorIs(t, err, ErrDayLocked)
}

func TestAttachProofRejectsForeignGoal(t *testing.T) {
	store := newFakeStore(twoDayGoal())
	engine := NewEngine(store)

	_, err := engine.AttachProof(context.Background(), "intruder", "g1", 1, "https://img.example/proof.jpg")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAttachProofRequiresURL(t *testing.T) {
	store := newFakeStore(twoDayGoal())
	engine := NewEngine(store)

	_, err := engine.AttachProof(context.Background(), "user-1", "g1", 1, "")
	assert.Error(t, err)
}

func TestAttachProofUnknownDay(t *testing.T) {
	store := newFakeStore(twoDayGoal())
	engine := NewEngine(store)

	_, err := engine.AttachProof(context.Background(), "user-1", "g1", 9, "https://img.example/proof.jpg")
	assert.ErrorIs(t, err, goal.ErrDayNotFound)
}
