package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/storage"
)

// ModelStore implements storage.ModelStore using PostgreSQL.
// The full model is kept as JSONB; key columns are duplicated for querying.
type ModelStore struct {
	pool *Pool
}

// NewModelStore creates a new ModelStore.
func NewModelStore(pool *Pool) *ModelStore {
	return &ModelStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ModelStore = (*ModelStore)(nil)

// Insert adds a new model. Returns ErrDuplicateKey if model_id exists.
func (s *ModelStore) Insert(ctx context.Context, m *domain.ClusterModel) (err error) {
	if m == nil || m.ModelID == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("insert_model", start, err) }(time.Now())

	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode model %s: %w", m.ModelID, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO cluster_models (model_id, k, seed, inertia, fitted_at, body)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ModelID, m.K, int64(m.Seed), m.Inertia, m.FittedAt, body)
	if err != nil {
		return translate("insert model", err)
	}
	return nil
}

// GetByID retrieves a model by its ID. Returns ErrNotFound if not exists.
func (s *ModelStore) GetByID(ctx context.Context, modelID string) (*domain.ClusterModel, error) {
	return s.get(ctx, "get_model_by_id", `
		SELECT body FROM cluster_models WHERE model_id = $1
	`, modelID)
}

// GetLatest retrieves the most recently fitted model. Returns ErrNotFound if none exist.
func (s *ModelStore) GetLatest(ctx context.Context) (*domain.ClusterModel, error) {
	return s.get(ctx, "get_latest_model", `
		SELECT body FROM cluster_models
		ORDER BY fitted_at DESC, created_at DESC, model_id DESC
		LIMIT 1
	`)
}

func (s *ModelStore) get(ctx context.Context, operation, query string, args ...any) (m *domain.ClusterModel, err error) {
	defer func(start time.Time) { observe(operation, start, err) }(time.Now())

	var body []byte
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&body); err != nil {
		return nil, translate(operation, err)
	}

	m = &domain.ClusterModel{}
	if err := json.Unmarshal(body, m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return m, nil
}
