package meta

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemStore is an in-memory Store for tests and single-slide tooling.
type MemStore struct {
	mu     sync.RWMutex
	slides map[string]SlideInfo
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{slides: make(map[string]SlideInfo)}
}

// Put inserts or replaces a slide record.
func (s *MemStore) Put(info SlideInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slides[info.ID] = info
}

// Slide fetches one slide's metadata.
func (s *MemStore) Slide(ctx context.Context, id string) (*SlideInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.slides[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSlideNotFound, id)
	}
	cp := info
	return &cp, nil
}

// ListIDs returns all slide identifiers, sorted.
func (s *MemStore) ListIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.slides))
	for id := range s.slides {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
