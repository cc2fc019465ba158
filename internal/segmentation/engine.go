// Package segmentation composes feature extraction, scaling, cluster-count
// selection and k-means into fit and evaluate stages.
package segmentation

import (
	"context"
	"fmt"
	"time"

	"customer-segment-lab/internal/clustering"
	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/features"
	"customer-segment-lab/internal/idhash"
	"customer-segment-lab/internal/scaling"
)

// MinFitCustomers is the smallest population a model can be fit on.
const MinFitCustomers = 2

// Config controls a fit.
type Config struct {
	Selection clustering.SelectionConfig `yaml:"selection"`
	KMeans    clustering.Options          `yaml:"kmeans"`
	Workers   int                         `yaml:"workers"` // extraction and trial parallelism; 0 means unbounded
	FixedK    int                         `yaml:"fixed_k"` // 0 selects k automatically
}

// DefaultConfig returns the standard fit configuration.
func DefaultConfig() Config {
	return Config{
		Selection: clustering.DefaultSelectionConfig(),
		KMeans:    clustering.DefaultOptions(),
	}
}

// FitResult is the output of the fit stage.
type FitResult struct {
	Model       *domain.ClusterModel
	Assignments []domain.ClusterAssignment
	Vectors     []domain.CustomerVector // raw, in customer order
	Trials      []domain.SelectionTrial
	Quality     domain.QualityMetrics
}

// Engine runs fit and evaluate stages.
type Engine struct {
	cfg   Config
	clock func() time.Time
}

// NewEngine creates an engine with the given configuration.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:   cfg,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock for deterministic FittedAt values.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Fit builds a new model from customers. Customers without transactions are
// excluded. The returned model is never modified afterwards.
func (e *Engine) Fit(ctx context.Context, customers []domain.Customer) (*FitResult, error) {
	schema := features.FitSchema(customers)

	vectors, err := features.ExtractAll(ctx, customers, schema, e.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("extract features: %w", err)
	}
	if len(vectors) < MinFitCustomers {
		return nil, &domain.InsufficientDataError{Stage: "fit", Required: MinFitCustomers, Actual: len(vectors)}
	}

	raw := make([]domain.FeatureVector, len(vectors))
	ids := make([]string, len(vectors))
	for i, cv := range vectors {
		raw[i] = cv.Vector
		ids[i] = cv.CustomerID
	}

	scaler, err := scaling.Fit(raw)
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	points, err := scaling.TransformAll(scaler, raw)
	if err != nil {
		return nil, fmt.Errorf("scale features: %w", err)
	}

	k := e.cfg.FixedK
	var trials []domain.SelectionTrial
	if k <= 0 {
		selection := e.cfg.Selection
		selection.KMeans = e.cfg.KMeans
		if selection.Workers == 0 {
			selection.Workers = e.cfg.Workers
		}
		k, trials, err = clustering.SelectK(ctx, points, selection)
		if err != nil {
			return nil, fmt.Errorf("select k: %w", err)
		}
	}

	res, err := clustering.KMeans(points, k, e.cfg.KMeans)
	if err != nil {
		return nil, fmt.Errorf("kmeans k=%d: %w", k, err)
	}

	model := &domain.ClusterModel{
		ModelID:   idhash.ComputeModelID(e.cfg.KMeans.Seed, k, schema.Categories, schema.Instruments, ids),
		K:         k,
		Centroids: res.Centroids,
		Scaler:    scaler,
		Schema:    schema,
		Seed:      e.cfg.KMeans.Seed,
		Inertia:   res.Inertia,
		FittedAt:  e.clock(),
	}

	assignments := make([]domain.ClusterAssignment, len(points))
	for i, p := range points {
		assignments[i] = domain.ClusterAssignment{
			ModelID:    model.ModelID,
			CustomerID: ids[i],
			ClusterID:  res.Labels[i],
			Distance:   clustering.Distance(p, res.Centroids[res.Labels[i]]),
		}
	}

	return &FitResult{
		Model:       model,
		Assignments: assignments,
		Vectors:     vectors,
		Trials:      trials,
		Quality:     clustering.Evaluate(points, res.Labels, res.Centroids),
	}, nil
}

// Evaluate assigns customers to an existing model and scores the assignment.
// The model's schema and scaler are applied unchanged.
func (e *Engine) Evaluate(ctx context.Context, model *domain.ClusterModel, customers []domain.Customer) ([]domain.ClusterAssignment, domain.QualityMetrics, error) {
	if model == nil {
		return nil, domain.QualityMetrics{}, domain.ErrModelNotFitted
	}

	vectors, err := features.ExtractAll(ctx, customers, model.Schema, e.cfg.Workers)
	if err != nil {
		return nil, domain.QualityMetrics{}, fmt.Errorf("extract features: %w", err)
	}
	if len(vectors) == 0 {
		return nil, domain.QualityMetrics{}, &domain.InsufficientDataError{Stage: "evaluate", Required: 1, Actual: 0}
	}

	assignments := make([]domain.ClusterAssignment, len(vectors))
	points := make([][]float64, len(vectors))
	labels := make([]int, len(vectors))
	for i, cv := range vectors {
		scaled, err := scaling.Transform(model.Scaler, cv.Vector)
		if err != nil {
			return nil, domain.QualityMetrics{}, fmt.Errorf("scale %s: %w", cv.CustomerID, err)
		}
		id, dist := clustering.Nearest(model.Centroids, scaled)
		points[i] = scaled
		labels[i] = id
		assignments[i] = domain.ClusterAssignment{
			ModelID:    model.ModelID,
			CustomerID: cv.CustomerID,
			ClusterID:  id,
			Distance:   dist,
		}
	}

	return assignments, clustering.Evaluate(points, labels, model.Centroids), nil
}
