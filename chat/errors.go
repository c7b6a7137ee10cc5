package chat

import "errors"

// Sentinel errors of the chat Store contract and the Service.
var (
	// ErrNotFound is returned when a persona or thread does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a thread save loses a revision race.
	// Callers should re-fetch and retry.
	ErrConflict = errors.New("revision conflict")

	// ErrForbidden is returned when a user addresses a persona they do
	// not own.
	ErrForbidden = errors.New("persona belongs to another user")
)
