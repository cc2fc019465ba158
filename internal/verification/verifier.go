// Package verification replays stored cluster assignments against their model
// and reports divergences.
package verification

import (
	"context"
	"math"

	"customer-segment-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string // field name
	Expected any    // stored value
	Actual   any    // replayed value
}

// VerificationResult contains the result of verifying one customer's assignment.
type VerificationResult struct {
	CustomerID  string
	Match       bool
	Divergences []FieldDivergence
}

// VerificationReport contains results for a whole model.
type VerificationReport struct {
	ModelID              string
	TotalAssignments     int
	MatchedAssignments   int
	DivergentAssignments int
	Results              []VerificationResult // in stored order
}

// Verifier checks that stored assignments are reproducible.
type Verifier interface {
	// VerifyCustomer replays one customer's stored assignment.
	VerifyCustomer(ctx context.Context, modelID, customerID string) (*VerificationResult, error)

	// VerifyModel replays every stored assignment of a model.
	VerifyModel(ctx context.Context, modelID string) (*VerificationReport, error)
}

// CompareAssignments compares two assignments and returns divergences.
// Uses FloatTolerance for the distance.
func CompareAssignments(stored, replayed *domain.ClusterAssignment) []FieldDivergence {
	var divergences []FieldDivergence

	if stored.ModelID != replayed.ModelID {
		divergences = append(divergences, FieldDivergence{
			Field:    "ModelID",
			Expected: stored.ModelID,
			Actual:   replayed.ModelID,
		})
	}

	if stored.CustomerID != replayed.CustomerID {
		divergences = append(divergences, FieldDivergence{
			Field:    "CustomerID",
			Expected: stored.CustomerID,
			Actual:   replayed.CustomerID,
		})
	}

	if stored.ClusterID != replayed.ClusterID {
		divergences = append(divergences, FieldDivergence{
			Field:    "ClusterID",
			Expected: stored.ClusterID,
			Actual:   replayed.ClusterID,
		})
	}

	if !floatEquals(stored.Distance, replayed.Distance) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Distance",
			Expected: stored.Distance,
			Actual:   replayed.Distance,
		})
	}

	return divergences
}

// CompareProfileSizes checks stored profile sizes against the stored assignments.
func CompareProfileSizes(profiles []*domain.ClusterProfile, assignments []*domain.ClusterAssignment) []FieldDivergence {
	counts := make(map[int]int)
	for _, a := range assignments {
		counts[a.ClusterID]++
	}

	var divergences []FieldDivergence
	for _, p := range profiles {
		if p.Size != counts[p.ClusterID] {
			divergences = append(divergences, FieldDivergence{
				Field:    "ClusterProfile.Size",
				Expected: p.Size,
				Actual:   counts[p.ClusterID],
			})
		}
	}
	return divergences
}

// floatEquals compares floats within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
