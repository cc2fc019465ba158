package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"customer-segment-lab/internal/storage"
)

// IngestionProgressStore is a PostgreSQL implementation of storage.IngestionProgressStore.
type IngestionProgressStore struct {
	pool *Pool
}

// NewIngestionProgressStore creates a new PostgreSQL ingestion progress store.
func NewIngestionProgressStore(pool *Pool) *IngestionProgressStore {
	return &IngestionProgressStore{pool: pool}
}

// Compile-time interface check.
var _ storage.IngestionProgressStore = (*IngestionProgressStore)(nil)

// Get returns progress for a source. Returns ErrNotFound if the source was never loaded.
func (s *IngestionProgressStore) Get(ctx context.Context, source string) (*storage.IngestionProgress, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT source, checksum, customer_id, loaded, dropped, loaded_at
		FROM ingestion_progress
		WHERE source = $1
	`, source)

	p, err := scanProgress(row)
	if err != nil {
		return nil, translate("get ingestion progress", err)
	}
	return p, nil
}

// Mark records a loaded source. Returns ErrDuplicateKey if the source was already marked.
func (s *IngestionProgressStore) Mark(ctx context.Context, p *storage.IngestionProgress) error {
	if p == nil || p.Source == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingestion_progress (source, checksum, customer_id, loaded, dropped, loaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.Source, p.Checksum, p.CustomerID, p.Loaded, p.Dropped, p.LoadedAt)
	if err != nil {
		return translate("mark ingestion progress", err)
	}
	return nil
}

// List returns all loaded sources ordered by source name.
func (s *IngestionProgressStore) List(ctx context.Context) ([]*storage.IngestionProgress, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT source, checksum, customer_id, loaded, dropped, loaded_at
		FROM ingestion_progress
		ORDER BY source ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list ingestion progress: %w", err)
	}
	defer rows.Close()

	result := []*storage.IngestionProgress{}
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func scanProgress(row pgx.Row) (*storage.IngestionProgress, error) {
	var p storage.IngestionProgress
	err := row.Scan(&p.Source, &p.Checksum, &p.CustomerID, &p.Loaded, &p.Dropped, &p.LoadedAt)
	if err != nil {
		return nil, err
	}
	p.LoadedAt = p.LoadedAt.UTC()
	return &p, nil
}
