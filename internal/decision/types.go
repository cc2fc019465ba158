// Package decision gates publication of a fitted segmentation model.
package decision

import (
	"errors"
	"fmt"
)

// Decision represents the publication result for a model.
type Decision string

const (
	DecisionPublish          Decision = "PUBLISH"
	DecisionHold             Decision = "HOLD"
	DecisionInsufficientData Decision = "INSUFFICIENT_DATA"
)

// Thresholds are the publication criteria.
type Thresholds struct {
	MinSilhouette     float64 `yaml:"min_silhouette"`      // holdout silhouette
	MinHoldoutRatio   float64 `yaml:"min_holdout_ratio"`   // holdout / training silhouette
	MaxSilhouetteStd  float64 `yaml:"max_silhouette_std"`  // across cross-validation folds
	MinClusterShare   float64 `yaml:"min_cluster_share"`   // percent of customers in the smallest cluster
	MaxDaviesBouldin  float64 `yaml:"max_davies_bouldin"`  // holdout
	RequireCrossCheck bool    `yaml:"require_cross_check"` // fail stability when cross-validation did not run
}

// DefaultThresholds returns the standard publication criteria.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSilhouette:    0.25,
		MinHoldoutRatio:  0.8,
		MaxSilhouetteStd: 0.1,
		MinClusterShare:  2,
		MaxDaviesBouldin: 1.5,
	}
}

// DecisionInput contains the quality figures of one fitted model.
type DecisionInput struct {
	ModelID string
	K       int

	TrainSilhouette      *float64
	HoldoutSilhouette    *float64
	HoldoutDaviesBouldin *float64

	// Cross-validation; nil when not run or undefined in every fold
	CVSilhouetteStd *float64
	CVFolds         int

	// Segment sizes
	SmallestClusterShare float64 // percent
	EmptyClusters        int
}

// Validation errors
var (
	ErrEmptyModelID      = errors.New("model_id is empty")
	ErrInvalidK          = errors.New("k must be at least 2")
	ErrInvalidShare      = errors.New("smallest cluster share must be in [0, 100]")
	ErrNegativeEmpty     = errors.New("empty cluster count must be non-negative")
	ErrInvalidThresholds = errors.New("invalid thresholds")
)

// Validate checks that the input is well-formed.
func (in *DecisionInput) Validate() error {
	if in == nil {
		return errors.New("decision input is nil")
	}
	if in.ModelID == "" {
		return ErrEmptyModelID
	}
	if in.K < 2 {
		return fmt.Errorf("%w: got %d", ErrInvalidK, in.K)
	}
	if in.SmallestClusterShare < 0 || in.SmallestClusterShare > 100 {
		return fmt.Errorf("%w: got %.2f", ErrInvalidShare, in.SmallestClusterShare)
	}
	if in.EmptyClusters < 0 {
		return ErrNegativeEmpty
	}
	return nil
}

// Validate checks threshold ranges.
func (t Thresholds) Validate() error {
	if t.MinHoldoutRatio < 0 || t.MaxSilhouetteStd < 0 || t.MaxDaviesBouldin < 0 {
		return fmt.Errorf("%w: ratios and maxima must be non-negative", ErrInvalidThresholds)
	}
	if t.MinClusterShare < 0 || t.MinClusterShare > 100 {
		return fmt.Errorf("%w: min_cluster_share must be in [0, 100], got %g", ErrInvalidThresholds, t.MinClusterShare)
	}
	if t.MinSilhouette < -1 || t.MinSilhouette > 1 {
		return fmt.Errorf("%w: min_silhouette must be in [-1, 1], got %g", ErrInvalidThresholds, t.MinSilhouette)
	}
	return nil
}

// CriterionResult represents pass/fail for one criterion.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// DecisionResult contains the final decision with checklist.
type DecisionResult struct {
	Decision     Decision
	ModelID      string
	Criteria     []CriterionResult // publication criteria
	HoldTriggers []CriterionResult // Pass=false means triggered
}
