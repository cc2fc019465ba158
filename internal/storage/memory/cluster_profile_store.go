package memory

import (
	"context"
	"sort"
	"sync"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/storage"
)

type profileKey struct {
	modelID   string
	clusterID int
}

// ClusterProfileStore is an in-memory implementation of storage.ClusterProfileStore.
type ClusterProfileStore struct {
	mu   sync.RWMutex
	data map[profileKey]*domain.ClusterProfile
}

// NewClusterProfileStore creates a new in-memory cluster profile store.
func NewClusterProfileStore() *ClusterProfileStore {
	return &ClusterProfileStore{
		data: make(map[profileKey]*domain.ClusterProfile),
	}
}

// InsertBulk adds profiles atomically. Fails entire batch on any duplicate.
func (s *ClusterProfileStore) InsertBulk(_ context.Context, profiles []*domain.ClusterProfile) error {
	if len(profiles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[profileKey]struct{}, len(profiles))
	for _, p := range profiles {
		if p == nil || p.ModelID == "" {
			return storage.ErrInvalidInput
		}
		key := profileKey{p.ModelID, p.ClusterID}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range profiles {
		s.data[profileKey{p.ModelID, p.ClusterID}] = cloneProfile(p)
	}
	return nil
}

// GetByModelID retrieves all profiles of a model, ordered by cluster_id ASC.
func (s *ClusterProfileStore) GetByModelID(_ context.Context, modelID string) ([]*domain.ClusterProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ClusterProfile
	for key, p := range s.data {
		if key.modelID == modelID {
			result = append(result, cloneProfile(p))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ClusterID < result[j].ClusterID
	})
	return result, nil
}

var _ storage.ClusterProfileStore = (*ClusterProfileStore)(nil)
