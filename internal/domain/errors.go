package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for segmentation operations.
var (
	// ErrNotFound indicates an unknown customer or merchant.
	ErrNotFound = errors.New("not found")

	// ErrModelNotFitted indicates a prediction was requested before any fit.
	ErrModelNotFitted = errors.New("model not fitted")

	// ErrInsufficientData indicates too few customers or transactions for a stage.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrDataError indicates a malformed input record.
	ErrDataError = errors.New("data error")
)

// InsufficientDataError carries the counts that failed a stage precondition.
type InsufficientDataError struct {
	Stage    string
	Required int
	Actual   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: need %d, have %d", e.Stage, e.Required, e.Actual)
}

// Is reports whether target is ErrInsufficientData.
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// NotFoundError identifies the missing entity.
type NotFoundError struct {
	Kind string // "customer" | "merchant"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// DataError describes why a record was rejected.
type DataError struct {
	RecordID string
	Reason   string
}

func (e *DataError) Error() string {
	if e.RecordID == "" {
		return "data error: " + e.Reason
	}
	return fmt.Sprintf("data error in record %s: %s", e.RecordID, e.Reason)
}

// Is reports whether target is ErrDataError.
func (e *DataError) Is(target error) bool {
	return target == ErrDataError
}
