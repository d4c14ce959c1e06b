package storage

import (
	"context"
	"sync"
)

// MemorySlot keeps the blob in process memory only. Used in tests and for
// ephemeral runs where persistence is not wanted.
type MemorySlot struct {
	mu    sync.Mutex
	blob  []byte
	saved bool
}

// NewMemorySlot creates an empty in-memory slot.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

// Load returns the current blob, or ErrSlotNotFound before the first Save.
func (s *MemorySlot) Load(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.saved {
		return nil, ErrSlotNotFound
	}
	out := make([]byte, len(s.blob))
	copy(out, s.blob)
	return out, nil
}

// Save replaces the current blob.
func (s *MemorySlot) Save(_ context.Context, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = make([]byte, len(blob))
	copy(s.blob, blob)
	s.saved = true
	return nil
}

// Close is a no-op.
func (*MemorySlot) Close() error { return nil }
