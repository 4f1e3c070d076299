// Package logbackend implements the pluggable durable/ephemeral store
// for resolved entries: a heap-backed, queryable version history, and
// an append-only file backend.
package logbackend

import "fmt"

// ErrNotFound is returned by Query when no write has happened for id.
var ErrNotFound = fmt.Errorf("logbackend: not found")

// Writable is the write half of the LogBackend contract. Multiple
// writes for the same id are allowed and form a version history; the
// latest write wins on read. Write must be total — it never refuses a
// well-formed call under normal operation.
type Writable interface {
	Write(id uint64, content []byte) error
}

// Queryable is the read half. The interface stays separate from
// Writable so a write-only backend can satisfy Writable alone; it is
// then not a LogBackend, which requires both halves.
type Queryable interface {
	Query(id uint64) ([]byte, error)
}

// LogBackend is the full contract: a backend that supports both halves.
type LogBackend interface {
	Writable
	Queryable
}
