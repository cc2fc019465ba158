package memory

import (
	"context"
	"sort"
	"sync"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/storage"
)

type assignmentKey struct {
	modelID    string
	customerID string
}

// AssignmentStore is an in-memory implementation of storage.AssignmentStore.
type AssignmentStore struct {
	mu   sync.RWMutex
	data map[assignmentKey]*domain.ClusterAssignment
}

// NewAssignmentStore creates a new in-memory assignment store.
func NewAssignmentStore() *AssignmentStore {
	return &AssignmentStore{
		data: make(map[assignmentKey]*domain.ClusterAssignment),
	}
}

// InsertBulk adds assignments atomically. Fails entire batch on any duplicate.
func (s *AssignmentStore) InsertBulk(_ context.Context, assignments []*domain.ClusterAssignment) error {
	if len(assignments) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[assignmentKey]struct{}, len(assignments))
	for _, a := range assignments {
		if a == nil || a.ModelID == "" || a.CustomerID == "" {
			return storage.ErrInvalidInput
		}
		key := assignmentKey{a.ModelID, a.CustomerID}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, a := range assignments {
		copy := *a
		s.data[assignmentKey{a.ModelID, a.CustomerID}] = &copy
	}
	return nil
}

// GetByModelID retrieves all assignments of a model, ordered by customer_id ASC.
func (s *AssignmentStore) GetByModelID(_ context.Context, modelID string) ([]*domain.ClusterAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ClusterAssignment
	for key, a := range s.data {
		if key.modelID == modelID {
			copy := *a
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CustomerID < result[j].CustomerID
	})
	return result, nil
}

// GetByCustomer retrieves one assignment. Returns ErrNotFound if not exists.
func (s *AssignmentStore) GetByCustomer(_ context.Context, modelID, customerID string) (*domain.ClusterAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[assignmentKey{modelID, customerID}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *a
	return &copy, nil
}

var _ storage.AssignmentStore = (*AssignmentStore)(nil)
