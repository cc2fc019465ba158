// Package scaling standardizes feature vectors with parameters fit on a training population.
package scaling

import (
	"errors"
	"fmt"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/metrics"
)

// ErrDimensionMismatch is returned when a vector does not match the scaler width.
var ErrDimensionMismatch = errors.New("vector dimension does not match scaler")

// Fit computes per-feature mean and population standard deviation.
// A constant feature gets scale 1 so it maps to 0.
func Fit(vectors []domain.FeatureVector) (domain.ScalerState, error) {
	if len(vectors) == 0 {
		return domain.ScalerState{}, &domain.InsufficientDataError{Stage: "scaler fit", Required: 1, Actual: 0}
	}

	dim := len(vectors[0])
	state := domain.ScalerState{
		Center: make([]float64, dim),
		Scale:  make([]float64, dim),
	}

	column := make([]float64, len(vectors))
	for j := 0; j < dim; j++ {
		for i, v := range vectors {
			if len(v) != dim {
				return domain.ScalerState{}, fmt.Errorf("vector %d: %w", i, ErrDimensionMismatch)
			}
			column[i] = v[j]
		}
		mean := metrics.Mean(column)
		std := metrics.PopulationStddev(column, mean)
		if std == 0 {
			std = 1
		}
		state.Center[j] = mean
		state.Scale[j] = std
	}
	return state, nil
}

// Transform returns (v - center) / scale as a new slice.
func Transform(state domain.ScalerState, v domain.FeatureVector) ([]float64, error) {
	if len(v) != len(state.Center) {
		return nil, ErrDimensionMismatch
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = (x - state.Center[i]) / state.Scale[i]
	}
	return out, nil
}

// InverseTransform maps a scaled point back to raw feature space.
func InverseTransform(state domain.ScalerState, scaled []float64) (domain.FeatureVector, error) {
	if len(scaled) != len(state.Center) {
		return nil, ErrDimensionMismatch
	}
	out := make(domain.FeatureVector, len(scaled))
	for i, x := range scaled {
		out[i] = x*state.Scale[i] + state.Center[i]
	}
	return out, nil
}

// TransformAll scales a batch of vectors.
func TransformAll(state domain.ScalerState, vectors []domain.FeatureVector) ([][]float64, error) {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		scaled, err := Transform(state, v)
		if err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}
