// Package vectorstore implements the durable similarity store behind the
// support assistant's knowledge base.
//
// Documents are held in memory and searched with an exact linear scan over
// cosine similarity. That is O(n·d) per query and deliberate: the knowledge
// base is tens to low hundreds of documents. This is not a scalable index
// and must not be treated as one — larger corpora need a real ANN index,
// which is a different system.
//
// Every mutation writes the full collection through to a storage.Slot as one
// JSON blob. Persistence is best effort: a failed write is logged and the
// in-memory state stays ahead of the durable copy. The store is a cache of
// derived data (embeddings can be rebuilt from the content source), not a
// source of truth.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/voyago/voyago/internal/log"
	"github.com/voyago/voyago/internal/storage"
)

// Store is a durable, queryable collection of embedded documents.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	mu     sync.RWMutex
	docs   []Document
	slot   storage.Slot
	logger log.Logger
}

// New creates a Store persisting into slot. Call Load to pull in previously
// persisted documents before first use.
func New(slot storage.Slot, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		slot:   slot,
		logger: logger,
	}
}

// Load replaces the in-memory collection with the persisted one.
// A missing or corrupt blob leaves the store empty; only slot I/O failures
// other than "not found" are reported.
func (s *Store) Load(ctx context.Context) error {
	blob, err := s.slot.Load(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSlotNotFound) {
			return nil
		}
		return fmt.Errorf("vectorstore: load slot: %w", err)
	}

	var docs []Document
	if err := json.Unmarshal(blob, &docs); err != nil {
		// Corrupt blob: start empty. A format change requires wiping the
		// slot, there is no migration.
		s.logger.Warn("discarding corrupt persisted store", "error", err)
		docs = nil
	}

	s.mu.Lock()
	s.docs = docs
	s.mu.Unlock()

	s.logger.Debug("loaded persisted store", "documents", len(docs))
	return nil
}

// Upsert inserts doc, replacing any existing document with the same ID.
// The metadata timestamp is stamped with the current time, overwriting any
// caller-supplied value. The full collection is written through to the slot;
// persistence failures are logged, never returned.
func (s *Store) Upsert(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("vectorstore: document ID is required")
	}
	if len(doc.Embedding) == 0 {
		return fmt.Errorf("vectorstore: document %q has an empty embedding", doc.ID)
	}
	if doc.Metadata.Content == "" {
		return fmt.Errorf("vectorstore: document %q has no content", doc.ID)
	}

	doc.Metadata.Timestamp = time.Now().UTC()

	s.mu.Lock()
	kept := s.docs[:0]
	for _, d := range s.docs {
		if d.ID != doc.ID {
			kept = append(kept, d)
		}
	}
	s.docs = append(kept, doc)
	s.persistLocked(ctx)
	s.mu.Unlock()

	return nil
}

// Query returns the k stored documents most similar to vector, ordered by
// descending cosine similarity. Ties keep insertion order. If fewer than k
// documents exist, all are returned. The store is never mutated by a query.
func (s *Store) Query(vector []float32, k int) ([]Result, error) {
	if k < 1 {
		return nil, fmt.Errorf("vectorstore: k must be >= 1, got %d", k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]Result, 0, len(s.docs))
	for _, doc := range s.docs {
		results = append(results, Result{
			Document:   copyDocument(doc),
			Similarity: cosineSimilarity(vector, doc.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// List returns a snapshot of all documents. Mutating the returned slice or
// its embeddings does not affect the store.
func (s *Store) List() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Document, len(s.docs))
	for i, doc := range s.docs {
		out[i] = copyDocument(doc)
	}
	return out
}

// Clear removes all documents and persists the empty collection.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.docs = nil
	s.persistLocked(ctx)
	s.mu.Unlock()
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Stats returns the total document count and a per-type breakdown.
// Documents without a type tag are counted under "unknown".
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byType := make(map[string]int)
	for _, doc := range s.docs {
		tag := doc.Metadata.Type
		if tag == "" {
			tag = typeUnknown
		}
		byType[tag]++
	}

	return Stats{
		TotalDocuments: len(s.docs),
		ByType:         byType,
	}
}

// persistLocked writes the collection through to the slot. Callers hold the
// write lock. Failure does not roll back the in-memory mutation: under
// storage pressure the store is allowed to drift ahead of its durable copy.
func (s *Store) persistLocked(ctx context.Context) {
	blob, err := json.Marshal(s.docs)
	if err != nil {
		s.logger.Error("failed to encode store for persistence", "error", err)
		return
	}
	if err := s.slot.Save(ctx, blob); err != nil {
		s.logger.Error("failed to persist store", "error", err, "documents", len(s.docs))
	}
}

// copyDocument deep-copies doc so callers cannot alias the stored embedding.
func copyDocument(doc Document) Document {
	embedding := make([]float32, len(doc.Embedding))
	copy(embedding, doc.Embedding)
	doc.Embedding = embedding
	return doc
}
