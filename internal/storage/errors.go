package storage

import (
	"errors"
	"fmt"

	"customer-segment-lab/internal/domain"
)

// Store errors. Every store is append-only: a record, once written, is never
// rewritten, so a second insert of the same key is an error, not an update.
var (
	// ErrNotFound is returned when a requested record does not exist.
	// It matches domain.ErrNotFound.
	ErrNotFound = fmt.Errorf("stored record %w", domain.ErrNotFound)

	// ErrDuplicateKey is returned when a model, assignment, profile or
	// transaction with the same key is already stored.
	ErrDuplicateKey = errors.New("duplicate key: record already stored")

	// ErrInvalidInput is returned when a record is missing its key fields.
	ErrInvalidInput = errors.New("invalid input: missing key field")
)
