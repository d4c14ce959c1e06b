// Package storage provides the durable slot the vector store persists into.
//
// A Slot is a single named blob in some durable medium. The store serializes
// its whole document collection into one blob and writes it through on every
// mutation, so the slot only ever needs Load and Save. Two implementations
// are provided:
//
//   - FileSlot: one JSON file on disk, guarded by an advisory file lock so
//     two processes sharing the slot cannot interleave writes.
//   - SQLiteSlot: a row in a local SQLite database, schema managed by
//     embedded migrations.
package storage

import (
	"context"
	"errors"
)

// ErrSlotNotFound indicates the slot has never been written.
// Callers treat this as an empty store, not a failure.
var ErrSlotNotFound = errors.New("storage: slot not found")

// Slot is a single named durable blob.
// Implementations must be safe for concurrent use within one process.
type Slot interface {
	// Load returns the current contents of the slot.
	// Returns ErrSlotNotFound if the slot has never been saved.
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the contents of the slot.
	Save(ctx context.Context, blob []byte) error

	// Close releases any resources held by the slot.
	Close() error
}
