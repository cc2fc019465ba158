package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/storage"
)

// AssignmentStore implements storage.AssignmentStore using PostgreSQL.
type AssignmentStore struct {
	pool *Pool
}

// NewAssignmentStore creates a new AssignmentStore.
func NewAssignmentStore(pool *Pool) *AssignmentStore {
	return &AssignmentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AssignmentStore = (*AssignmentStore)(nil)

// InsertBulk adds assignments atomically. Fails entire batch on any duplicate (model_id, customer_id).
func (s *AssignmentStore) InsertBulk(ctx context.Context, assignments []*domain.ClusterAssignment) (err error) {
	if len(assignments) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("insert_assignments", start, err) }(time.Now())

	const query = `
		INSERT INTO cluster_assignments (model_id, customer_id, cluster_id, distance)
		VALUES ($1, $2, $3, $4)
	`
	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, a := range assignments {
			if a == nil || a.ModelID == "" || a.CustomerID == "" {
				return storage.ErrInvalidInput
			}
			if _, err := tx.Exec(ctx, query, a.ModelID, a.CustomerID, a.ClusterID, a.Distance); err != nil {
				return translate("insert assignment in bulk", err)
			}
		}
		return nil
	})
}

// GetByModelID retrieves all assignments of a model, ordered by customer_id ASC.
func (s *AssignmentStore) GetByModelID(ctx context.Context, modelID string) (result []*domain.ClusterAssignment, err error) {
	defer func(start time.Time) { observe("get_assignments_by_model", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT model_id, customer_id, cluster_id, distance
		FROM cluster_assignments
		WHERE model_id = $1
		ORDER BY customer_id ASC
	`, modelID)
	if err != nil {
		return nil, fmt.Errorf("get assignments by model: %w", err)
	}
	defer rows.Close()

	result = []*domain.ClusterAssignment{}
	for rows.Next() {
		var a domain.ClusterAssignment
		if err := rows.Scan(&a.ModelID, &a.CustomerID, &a.ClusterID, &a.Distance); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		result = append(result, &a)
	}
	return result, rows.Err()
}

// GetByCustomer retrieves one assignment. Returns ErrNotFound if not exists.
func (s *AssignmentStore) GetByCustomer(ctx context.Context, modelID, customerID string) (a *domain.ClusterAssignment, err error) {
	defer func(start time.Time) { observe("get_assignment_by_customer", start, err) }(time.Now())

	a = &domain.ClusterAssignment{}
	err = s.pool.QueryRow(ctx, `
		SELECT model_id, customer_id, cluster_id, distance
		FROM cluster_assignments
		WHERE model_id = $1 AND customer_id = $2
	`, modelID, customerID).Scan(&a.ModelID, &a.CustomerID, &a.ClusterID, &a.Distance)
	if err != nil {
		return nil, translate("get assignment by customer", err)
	}
	return a, nil
}
