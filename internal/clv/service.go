package clv

import (
	"context"
	"fmt"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/normalization"
	"customer-segment-lab/internal/storage"
)

// Service answers merchant queries from a transaction store.
type Service struct {
	store  storage.TransactionStore
	scorer *Scorer
}

// NewService creates a store-backed CLV service.
func NewService(store storage.TransactionStore, scorer *Scorer) *Service {
	return &Service{store: store, scorer: scorer}
}

// Insights loads only the merchant's transactions and aggregates them.
func (s *Service) Insights(ctx context.Context, merchant string) (domain.MerchantInsights, error) {
	merchantID := normalization.MerchantID(merchant)
	txs, err := s.store.GetByMerchantID(ctx, merchantID)
	if err != nil {
		return domain.MerchantInsights{}, fmt.Errorf("load merchant %s: %w", merchantID, err)
	}
	return s.scorer.Insights(groupByCustomer(txs), merchantID), nil
}

// Prospects loads all customers and ranks non-customers of merchant.
func (s *Service) Prospects(ctx context.Context, merchant string) ([]domain.ProspectRecord, error) {
	customers, err := storage.LoadCustomers(ctx, s.store)
	if err != nil {
		return nil, err
	}
	return s.scorer.SimilarProspects(customers, merchant), nil
}

func groupByCustomer(txs []*domain.Transaction) []domain.Customer {
	idx := make(map[string]int)
	var customers []domain.Customer
	for _, t := range txs {
		i, ok := idx[t.CustomerID]
		if !ok {
			i = len(customers)
			idx[t.CustomerID] = i
			customers = append(customers, domain.Customer{ID: t.CustomerID})
		}
		customers[i].Transactions = append(customers[i].Transactions, *t)
	}
	domain.SortCustomers(customers)
	return customers
}
