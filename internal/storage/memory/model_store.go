package memory

import (
	"context"
	"sync"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/storage"
)

// ModelStore is an in-memory implementation of storage.ModelStore.
type ModelStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.ClusterModel // keyed by model_id
	latest string
}

// NewModelStore creates a new in-memory model store.
func NewModelStore() *ModelStore {
	return &ModelStore{
		data: make(map[string]*domain.ClusterModel),
	}
}

// Insert adds a new model. Returns ErrDuplicateKey if model_id exists.
func (s *ModelStore) Insert(_ context.Context, m *domain.ClusterModel) error {
	if m == nil || m.ModelID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[m.ModelID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[m.ModelID] = cloneModel(m)

	if cur, ok := s.data[s.latest]; !ok || !m.FittedAt.Before(cur.FittedAt) {
		s.latest = m.ModelID
	}
	return nil
}

// GetByID retrieves a model by its ID. Returns ErrNotFound if not exists.
func (s *ModelStore) GetByID(_ context.Context, modelID string) (*domain.ClusterModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.data[modelID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneModel(m), nil
}

// GetLatest retrieves the most recently fitted model.
func (s *ModelStore) GetLatest(_ context.Context) (*domain.ClusterModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.data[s.latest]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneModel(m), nil
}

var _ storage.ModelStore = (*ModelStore)(nil)
