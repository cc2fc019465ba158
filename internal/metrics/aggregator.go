package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/storage"
)

// ErrNoFolds is returned when no fold results are available for aggregation.
var ErrNoFolds = errors.New("no folds available for aggregation")

// metricExtractors lists summarized metrics in report order.
var metricExtractors = []struct {
	name string
	get  func(m domain.QualityMetrics) *float64
}{
	{domain.MetricSilhouette, func(m domain.QualityMetrics) *float64 { return m.Silhouette }},
	{domain.MetricCalinskiHarabasz, func(m domain.QualityMetrics) *float64 { return m.CalinskiHarabasz }},
	{domain.MetricDaviesBouldin, func(m domain.QualityMetrics) *float64 { return m.DaviesBouldin }},
	{domain.MetricInertia, func(m domain.QualityMetrics) *float64 { return Ptr(m.Inertia) }},
	{domain.MetricAvgInterCluster, func(m domain.QualityMetrics) *float64 { return m.AvgInterClusterDistance }},
	{domain.MetricMinInterCluster, func(m domain.QualityMetrics) *float64 { return m.MinInterClusterDistance }},
}

// MetricNames returns summarized metric names in report order.
func MetricNames() []string {
	names := make([]string, len(metricExtractors))
	for i, e := range metricExtractors {
		names[i] = e.name
	}
	return names
}

// SummarizeFolds computes mean and population stddev per metric.
// Undefined (nil) values are excluded; a metric undefined in every fold
// reports Defined == 0.
func SummarizeFolds(folds []domain.FoldResult) map[string]domain.MetricSummary {
	out := make(map[string]domain.MetricSummary, len(metricExtractors))
	for _, e := range metricExtractors {
		var values []float64
		for _, f := range folds {
			if v := e.get(f.Metrics); v != nil {
				values = append(values, *v)
			}
		}
		mean := Mean(values)
		out[e.name] = domain.MetricSummary{
			Mean:    mean,
			Std:     PopulationStddev(values, mean),
			Defined: len(values),
		}
	}
	return out
}

// Aggregator persists quality metrics of fits and cross-validation runs.
type Aggregator struct {
	qualityStore storage.QualityReportStore
	clock        func() time.Time
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(qualityStore storage.QualityReportStore) *Aggregator {
	return &Aggregator{
		qualityStore: qualityStore,
		clock:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock for deterministic timestamps.
func (a *Aggregator) WithClock(clock func() time.Time) *Aggregator {
	a.clock = clock
	return a
}

// RecordFit stores the training-fit and held-out quality of a model.
func (a *Aggregator) RecordFit(ctx context.Context, runID string, model *domain.ClusterModel, train, holdout domain.QualityMetrics) error {
	now := a.clock()
	reports := []*domain.QualityReport{
		{RunID: runID, ModelID: model.ModelID, Fold: domain.FoldTrainFit, K: model.K, Metrics: train, RecordedAt: now},
		{RunID: runID, ModelID: model.ModelID, Fold: domain.FoldHoldout, K: model.K, Metrics: holdout, RecordedAt: now},
	}
	if err := a.qualityStore.InsertBulk(ctx, reports); err != nil {
		return fmt.Errorf("record fit quality: %w", err)
	}
	return nil
}

// RecordCrossValidation stores every fold of a run and returns the summary.
// Returns ErrNoFolds if cv has no folds.
func (a *Aggregator) RecordCrossValidation(ctx context.Context, runID, modelID string, cv *domain.CrossValidationResult) (map[string]domain.MetricSummary, error) {
	if cv == nil || len(cv.Folds) == 0 {
		return nil, ErrNoFolds
	}

	folds := make([]domain.FoldResult, len(cv.Folds))
	copy(folds, cv.Folds)
	sort.Slice(folds, func(i, j int) bool { return folds[i].Fold < folds[j].Fold })

	now := a.clock()
	reports := make([]*domain.QualityReport, 0, len(folds))
	for _, f := range folds {
		reports = append(reports, &domain.QualityReport{
			RunID:      runID,
			ModelID:    modelID,
			Fold:       f.Fold,
			K:          f.K,
			Metrics:    f.Metrics,
			RecordedAt: now,
		})
	}
	if err := a.qualityStore.InsertBulk(ctx, reports); err != nil {
		return nil, fmt.Errorf("record fold quality: %w", err)
	}

	return SummarizeFolds(folds), nil
}

// LoadRun reloads persisted fold reports of a run and summarizes them.
func (a *Aggregator) LoadRun(ctx context.Context, runID string) (map[string]domain.MetricSummary, error) {
	reports, err := a.qualityStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	var folds []domain.FoldResult
	for _, r := range reports {
		if r.Fold < 0 {
			continue
		}
		folds = append(folds, domain.FoldResult{Fold: r.Fold, K: r.K, Metrics: r.Metrics})
	}
	if len(folds) == 0 {
		return nil, ErrNoFolds
	}
	return SummarizeFolds(folds), nil
}
