// Package prediction estimates the next purchase of a customer from the
// customer's cluster and recent history.
package prediction

import (
	"fmt"
	"sync/atomic"

	"customer-segment-lab/internal/domain"
)

// Snapshot is the immutable state predictions read: a fitted model, its
// profiles, and the customers of its train and test partitions.
type Snapshot struct {
	Model     *domain.ClusterModel
	Profiles  []domain.ClusterProfile // indexed by cluster id
	Quality   domain.QualityMetrics
	customers map[string]*domain.Customer
}

// NewSnapshot bundles a model with its profiles. Only customers listed in the
// split partitions are predictable. Customers are copied.
func NewSnapshot(model *domain.ClusterModel, profiles []domain.ClusterProfile, customers []domain.Customer, split domain.SplitResult) (*Snapshot, error) {
	if model == nil {
		return nil, domain.ErrModelNotFitted
	}
	if len(profiles) != model.K {
		return nil, fmt.Errorf("snapshot: %d profiles for k=%d", len(profiles), model.K)
	}
	for i, p := range profiles {
		if p.ClusterID != i {
			return nil, fmt.Errorf("snapshot: profile %d has cluster id %d", i, p.ClusterID)
		}
	}

	members := make(map[string]struct{}, len(split.Train)+len(split.Test))
	for _, id := range split.Train {
		members[id] = struct{}{}
	}
	for _, id := range split.Test {
		members[id] = struct{}{}
	}

	byID := make(map[string]*domain.Customer, len(members))
	for i := range customers {
		if _, ok := members[customers[i].ID]; !ok {
			continue
		}
		c := customers[i]
		c.Transactions = c.SortedTransactions()
		byID[c.ID] = &c
	}

	return &Snapshot{
		Model:     model,
		Profiles:  append([]domain.ClusterProfile(nil), profiles...),
		customers: byID,
	}, nil
}

// WithQuality attaches the model's quality metrics.
func (s *Snapshot) WithQuality(q domain.QualityMetrics) *Snapshot {
	s.Quality = q
	return s
}

// Customer returns a known customer.
func (s *Snapshot) Customer(id string) (*domain.Customer, bool) {
	c, ok := s.customers[id]
	return c, ok
}

// CustomerCount returns the number of predictable customers.
func (s *Snapshot) CustomerCount() int {
	return len(s.customers)
}

// Registry publishes snapshots by replacement. Readers holding an older
// snapshot keep a consistent view.
type Registry struct {
	current atomic.Pointer[Snapshot]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Publish makes s the current snapshot. s must not be modified afterwards.
func (r *Registry) Publish(s *Snapshot) {
	r.current.Store(s)
}

// Current returns the latest published snapshot, or nil before the first fit.
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}
