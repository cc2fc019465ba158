package memory

import (
	"context"
	"sort"
	"sync"

	"customer-segment-lab/internal/storage"
)

// IngestionProgressStore is an in-memory implementation of storage.IngestionProgressStore.
type IngestionProgressStore struct {
	mu   sync.RWMutex
	data map[string]*storage.IngestionProgress // keyed by source
}

// NewIngestionProgressStore creates a new in-memory ingestion progress store.
func NewIngestionProgressStore() *IngestionProgressStore {
	return &IngestionProgressStore{
		data: make(map[string]*storage.IngestionProgress),
	}
}

// Get returns progress for a source.
func (s *IngestionProgressStore) Get(_ context.Context, source string) (*storage.IngestionProgress, error) {
	if source == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[source]
	if !exists {
		return nil, storage.ErrNotFound
	}
	stored := *p
	return &stored, nil
}

// Mark records a loaded source.
func (s *IngestionProgressStore) Mark(_ context.Context, p *storage.IngestionProgress) error {
	if p == nil || p.Source == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.Source]; exists {
		return storage.ErrDuplicateKey
	}
	stored := *p
	s.data[p.Source] = &stored
	return nil
}

// List returns all loaded sources ordered by source name.
func (s *IngestionProgressStore) List(_ context.Context) ([]*storage.IngestionProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.IngestionProgress, 0, len(s.data))
	for _, p := range s.data {
		stored := *p
		result = append(result, &stored)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Source < result[j].Source
	})
	return result, nil
}

var _ storage.IngestionProgressStore = (*IngestionProgressStore)(nil)
