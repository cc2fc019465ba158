package memory

import (
	"context"
	"sort"
	"sync"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/storage"
)

type qualityKey struct {
	runID string
	fold  int
}

// QualityReportStore is an in-memory implementation of storage.QualityReportStore.
type QualityReportStore struct {
	mu   sync.RWMutex
	data map[qualityKey]*domain.QualityReport
}

// NewQualityReportStore creates a new in-memory quality report store.
func NewQualityReportStore() *QualityReportStore {
	return &QualityReportStore{
		data: make(map[qualityKey]*domain.QualityReport),
	}
}

// InsertBulk adds reports atomically. Fails entire batch on any duplicate (run_id, fold).
func (s *QualityReportStore) InsertBulk(_ context.Context, reports []*domain.QualityReport) error {
	if len(reports) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[qualityKey]struct{}, len(reports))
	for _, r := range reports {
		if r == nil || r.RunID == "" {
			return storage.ErrInvalidInput
		}
		key := qualityKey{r.RunID, r.Fold}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range reports {
		s.data[qualityKey{r.RunID, r.Fold}] = cloneQualityReport(r)
	}
	return nil
}

// GetByRunID retrieves all reports of a run, ordered by fold ASC.
func (s *QualityReportStore) GetByRunID(_ context.Context, runID string) ([]*domain.QualityReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.QualityReport
	for key, r := range s.data {
		if key.runID == runID {
			result = append(result, cloneQualityReport(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Fold < result[j].Fold
	})
	return result, nil
}

var _ storage.QualityReportStore = (*QualityReportStore)(nil)
