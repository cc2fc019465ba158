package storage

import (
	"context"

	"customer-segment-lab/internal/domain"
)

// TransactionStore provides access to normalized customer transactions.
type TransactionStore interface {
	// InsertBulk adds multiple transactions atomically. Fails entire batch on any duplicate id.
	InsertBulk(ctx context.Context, txs []*domain.Transaction) error

	// GetByCustomerID retrieves all transactions of a customer, ordered by timestamp ASC, id ASC.
	GetByCustomerID(ctx context.Context, customerID string) ([]*domain.Transaction, error)

	// GetByMerchantID retrieves all transactions at a merchant, ordered by customer_id, timestamp.
	GetByMerchantID(ctx context.Context, merchantID string) ([]*domain.Transaction, error)

	// ListCustomerIDs returns all customer ids in lexical order.
	ListCustomerIDs(ctx context.Context) ([]string, error)

	// GetAll retrieves all transactions, ordered by customer_id, timestamp, id.
	GetAll(ctx context.Context) ([]*domain.Transaction, error)
}

// ModelStore provides access to fitted cluster models.
type ModelStore interface {
	// Insert adds a new model. Returns ErrDuplicateKey if model_id exists.
	Insert(ctx context.Context, m *domain.ClusterModel) error

	// GetByID retrieves a model by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, modelID string) (*domain.ClusterModel, error)

	// GetLatest retrieves the most recently fitted model. Returns ErrNotFound if none exist.
	GetLatest(ctx context.Context) (*domain.ClusterModel, error)
}

// AssignmentStore provides access to customer cluster assignments.
type AssignmentStore interface {
	// InsertBulk adds assignments atomically. Fails entire batch on any duplicate (model_id, customer_id).
	InsertBulk(ctx context.Context, assignments []*domain.ClusterAssignment) error

	// GetByModelID retrieves all assignments of a model, ordered by customer_id ASC.
	GetByModelID(ctx context.Context, modelID string) ([]*domain.ClusterAssignment, error)

	// GetByCustomer retrieves one assignment. Returns ErrNotFound if not exists.
	GetByCustomer(ctx context.Context, modelID, customerID string) (*domain.ClusterAssignment, error)
}

// ClusterProfileStore provides access to cluster profile snapshots.
type ClusterProfileStore interface {
	// InsertBulk adds profiles atomically. Fails entire batch on any duplicate (model_id, cluster_id).
	InsertBulk(ctx context.Context, profiles []*domain.ClusterProfile) error

	// GetByModelID retrieves all profiles of a model, ordered by cluster_id ASC.
	GetByModelID(ctx context.Context, modelID string) ([]*domain.ClusterProfile, error)
}

// QualityReportStore provides access to clustering quality records.
type QualityReportStore interface {
	// InsertBulk adds reports atomically. Fails entire batch on any duplicate (run_id, fold).
	InsertBulk(ctx context.Context, reports []*domain.QualityReport) error

	// GetByRunID retrieves all reports of a run, ordered by fold ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.QualityReport, error)
}
