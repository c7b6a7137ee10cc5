package storage

import "errors"

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a save loses a revision race. Callers
// should re-fetch and retry.
var ErrConflict = errors.New("revision conflict")
