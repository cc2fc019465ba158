package decision

import (
	"errors"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/reporting"
)

// ErrNoModel is returned when the report has no fitted model.
var ErrNoModel = errors.New("report has no model")

// ErrMissingHoldout is returned when the report has no holdout quality record.
// A model without holdout evaluation cannot be gated.
var ErrMissingHoldout = errors.New("missing holdout quality record")

// Builder constructs DecisionInput from Report.
type Builder struct{}

// NewBuilder creates a new decision input builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build creates DecisionInput from a segmentation report.
// Training and holdout figures come from the quality rows, stability from the
// cross-validation summary and segment sizes from the cluster rows.
func (b *Builder) Build(report *reporting.Report) (*DecisionInput, error) {
	if report == nil || report.ModelID == "" {
		return nil, ErrNoModel
	}

	input := &DecisionInput{
		ModelID: report.ModelID,
		K:       report.K,
	}

	var haveHoldout bool
	for _, q := range report.Quality {
		switch q.Partition {
		case reporting.PartitionTrain:
			input.TrainSilhouette = q.Silhouette
		case reporting.PartitionHoldout:
			haveHoldout = true
			input.HoldoutSilhouette = q.Silhouette
			input.HoldoutDaviesBouldin = q.DaviesBouldin
		}
	}
	if !haveHoldout {
		return nil, ErrMissingHoldout
	}

	for _, m := range report.CrossValidation {
		if m.Metric != domain.MetricSilhouette {
			continue
		}
		input.CVFolds = m.Folds
		if m.Defined > 0 {
			std := m.Std
			input.CVSilhouetteStd = &std
		}
	}

	// Clusters missing from the profile table have no customers
	input.EmptyClusters = report.K - len(report.Clusters)
	for i, c := range report.Clusters {
		if c.Size == 0 {
			input.EmptyClusters++
		}
		if i == 0 || c.Share < input.SmallestClusterShare {
			input.SmallestClusterShare = c.Share
		}
	}
	if input.EmptyClusters > 0 {
		input.SmallestClusterShare = 0
	}
	if input.EmptyClusters < 0 {
		input.EmptyClusters = 0
	}

	if err := input.Validate(); err != nil {
		return nil, err
	}
	return input, nil
}
