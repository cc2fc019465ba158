package normalization

import (
	"context"
	"encoding/json"
	"fmt"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/storage"
)

// Runner normalizes raw records and persists the accepted transactions.
type Runner struct {
	normalizer *Normalizer
	txStore    storage.TransactionStore
}

// NewRunner creates a new normalization runner.
func NewRunner(normalizer *Normalizer, txStore storage.TransactionStore) *Runner {
	return &Runner{normalizer: normalizer, txStore: txStore}
}

// NormalizeCustomer processes one customer's raw records.
// Steps:
//  1. Normalize each record, dropping bad ones
//  2. Store accepted transactions in a single batch
//
// A batch with no accepted records stores nothing and is not an error.
func (r *Runner) NormalizeCustomer(ctx context.Context, customerID string, records []json.RawMessage) (NormalizeStats, error) {
	txs, stats := r.normalizer.NormalizeBatch(customerID, records)
	if len(txs) == 0 {
		return stats, nil
	}

	batch := make([]*domain.Transaction, len(txs))
	for i := range txs {
		batch[i] = &txs[i]
	}
	if err := r.txStore.InsertBulk(ctx, batch); err != nil {
		return stats, fmt.Errorf("store transactions for %s: %w", customerID, err)
	}
	return stats, nil
}
