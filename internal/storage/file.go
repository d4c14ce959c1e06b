package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is the polling interval while waiting for the advisory lock.
const lockRetryDelay = 25 * time.Millisecond

// FileSlot stores the blob as a single file on disk.
//
// Writes go to a temporary file in the same directory followed by a rename,
// so a crash mid-write never leaves a torn blob behind. An advisory lock
// (sidecar .lock file) serializes access between processes sharing the slot;
// the last writer wins, which matches the best-effort persistence policy of
// the store.
type FileSlot struct {
	path string
	lock *flock.Flock
}

// NewFileSlot creates a file-backed slot at path, creating parent
// directories as needed.
func NewFileSlot(path string) (*FileSlot, error) {
	if path == "" {
		return nil, fmt.Errorf("storage: file slot path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("storage: create slot directory: %w", err)
	}
	return &FileSlot{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Load reads the current blob.
func (s *FileSlot) Load(ctx context.Context) ([]byte, error) {
	if _, err := s.lock.TryRLockContext(ctx, lockRetryDelay); err != nil {
		return nil, fmt.Errorf("storage: acquire read lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("storage: read slot: %w", err)
	}
	return data, nil
}

// Save atomically replaces the blob.
func (s *FileSlot) Save(ctx context.Context, blob []byte) error {
	if _, err := s.lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return fmt.Errorf("storage: acquire write lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return fmt.Errorf("storage: write slot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("storage: replace slot: %w", err)
	}
	return nil
}

// Close releases the lock file handle.
func (s *FileSlot) Close() error {
	return s.lock.Close()
}
