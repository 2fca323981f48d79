package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"patentrag/internal/domain"
	"patentrag/internal/embedding"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
// Re-ingesting an existing passage id replaces the entry in place.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	entries   []domain.IndexedEntry
	byID      map[string]int
}

// NewStorage creates an empty store; the dimension is fixed by the first ingest.
func NewStorage() *Storage { return &Storage{byID: make(map[string]int)} }

// Ingest adds entries keyed by passage id.
func (s *Storage) Ingest(_ context.Context, entries []domain.IndexedEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dim := s.dimension
	for _, e := range entries {
		if dim == 0 {
			dim = len(e.Vector)
		}
		if len(e.Vector) != dim || dim == 0 {
			return fmt.Errorf("memory store: vector dimension mismatch: got %d, want %d", len(e.Vector), dim)
		}
	}
	s.dimension = dim
	for _, e := range entries {
		if i, ok := s.byID[e.PassageID]; ok {
			s.entries[i] = e
			continue
		}
		s.byID[e.PassageID] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	return nil
}

// Query returns the k most similar entries, most similar first. Ties keep
// insertion order.
func (s *Storage) Query(_ context.Context, vector domain.Vector, k int) ([]domain.RetrievalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 || len(s.entries) == 0 {
		return nil, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("memory store: query dimension %d, index dimension %d", len(vector), s.dimension)
	}
	results := make([]domain.RetrievalResult, len(s.entries))
	for i, e := range s.entries {
		results[i] = domain.RetrievalResult{
			PassageID:  e.PassageID,
			Text:       e.Text,
			Similarity: embedding.Similarity(vector, e.Vector),
			Metadata:   e.Metadata,
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// GetByID looks up a single entry.
func (s *Storage) GetByID(_ context.Context, passageID string) (domain.IndexedEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[passageID]
	if !ok {
		return domain.IndexedEntry{}, false, nil
	}
	return s.entries[i], true, nil
}

// Stats returns the number of stored entries.
func (s *Storage) Stats(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// DeleteDocument drops every entry of documentID, keeping the order of the rest.
func (s *Storage) DeleteDocument(_ context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if e.Metadata.DocumentID == documentID {
			delete(s.byID, e.PassageID)
			removed++
			continue
		}
		s.byID[e.PassageID] = len(kept)
		kept = append(kept, e)
	}
	clear(s.entries[len(kept):])
	s.entries = kept
	return removed, nil
}

// Reset empties the store.
func (s *Storage) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.byID = make(map[string]int)
	s.dimension = 0
	return nil
}

// Close is a no-op.
func (s *Storage) Close() error { return nil }

var (
	_ domain.Index  = (*Storage)(nil)
	_ domain.Pruner = (*Storage)(nil)
)
