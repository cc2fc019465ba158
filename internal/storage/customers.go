package storage

import (
	"context"
	"fmt"

	"customer-segment-lab/internal/domain"
)

// LoadCustomers groups all stored transactions by customer.
// Customers are ordered by id and transactions by timestamp.
func LoadCustomers(ctx context.Context, store TransactionStore) ([]domain.Customer, error) {
	txs, err := store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	byID := make(map[string]int)
	var customers []domain.Customer
	for _, t := range txs {
		idx, ok := byID[t.CustomerID]
		if !ok {
			idx = len(customers)
			byID[t.CustomerID] = idx
			customers = append(customers, domain.Customer{ID: t.CustomerID})
		}
		customers[idx].Transactions = append(customers[idx].Transactions, *t)
	}

	domain.SortCustomers(customers)
	for i := range customers {
		customers[i].Transactions = customers[i].SortedTransactions()
	}
	return customers, nil
}
