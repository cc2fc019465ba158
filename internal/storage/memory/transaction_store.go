package memory

import (
	"context"
	"sort"
	"sync"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Transaction // keyed by transaction id
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[string]*domain.Transaction),
	}
}

// InsertBulk adds multiple transactions atomically. Fails entire batch on any duplicate.
func (s *TransactionStore) InsertBulk(_ context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(txs))
	for _, t := range txs {
		if t == nil || t.ID == "" || t.CustomerID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[t.ID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[t.ID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[t.ID] = struct{}{}
	}

	for _, t := range txs {
		s.data[t.ID] = cloneTransaction(t)
	}
	return nil
}

// GetByCustomerID retrieves all transactions of a customer, ordered by timestamp ASC, id ASC.
func (s *TransactionStore) GetByCustomerID(_ context.Context, customerID string) ([]*domain.Transaction, error) {
	return s.filter(func(t *domain.Transaction) bool { return t.CustomerID == customerID }), nil
}

// GetByMerchantID retrieves all transactions at a merchant.
func (s *TransactionStore) GetByMerchantID(_ context.Context, merchantID string) ([]*domain.Transaction, error) {
	return s.filter(func(t *domain.Transaction) bool { return t.MerchantID == merchantID }), nil
}

// ListCustomerIDs returns all customer ids in lexical order.
func (s *TransactionStore) ListCustomerIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, t := range s.data {
		seen[t.CustomerID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// GetAll retrieves all transactions.
func (s *TransactionStore) GetAll(_ context.Context) ([]*domain.Transaction, error) {
	return s.filter(func(*domain.Transaction) bool { return true }), nil
}

// filter returns copies of matching transactions ordered by customer_id, timestamp, id.
func (s *TransactionStore) filter(match func(*domain.Transaction) bool) []*domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, t := range s.data {
		if match(t) {
			result = append(result, cloneTransaction(t))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CustomerID != result[j].CustomerID {
			return result[i].CustomerID < result[j].CustomerID
		}
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.Before(result[j].Timestamp)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

var _ storage.TransactionStore = (*TransactionStore)(nil)
