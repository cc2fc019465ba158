package storage

import (
	"context"
	"time"
)

// IngestionProgress records one corpus source that has been loaded.
type IngestionProgress struct {
	Source     string    // corpus file name relative to the corpus root
	Checksum   string    // SHA256 of file contents
	CustomerID string    // customer the file was attributed to
	Loaded     int       // transactions stored
	Dropped    int       // records rejected by normalization
	LoadedAt   time.Time // when the file was ingested
}

// IngestionProgressStore provides persistence for ingestion state.
// This enables re-running ingestion over a corpus without duplicating transactions.
type IngestionProgressStore interface {
	// Get returns progress for a source. Returns ErrNotFound if the source was never loaded.
	Get(ctx context.Context, source string) (*IngestionProgress, error)

	// Mark records a loaded source. Returns ErrDuplicateKey if the source was already marked.
	Mark(ctx context.Context, p *IngestionProgress) error

	// List returns all loaded sources ordered by source name.
	List(ctx context.Context) ([]*IngestionProgress, error)
}
