package clustering

import (
	"fmt"
	"math"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/scaling"
)

// Predict assigns a raw feature vector to the nearest centroid of model.
// It only reads model and is safe for concurrent use.
func Predict(model *domain.ClusterModel, v domain.FeatureVector) (int, float64, error) {
	if model == nil || len(model.Centroids) == 0 {
		return 0, 0, domain.ErrModelNotFitted
	}
	if len(v) != model.Schema.Dim() {
		return 0, 0, fmt.Errorf("predict: got %d features, model expects %d: %w",
			len(v), model.Schema.Dim(), scaling.ErrDimensionMismatch)
	}
	scaled, err := scaling.Transform(model.Scaler, v)
	if err != nil {
		return 0, 0, fmt.Errorf("predict: %w", err)
	}
	id, sq := nearestSquared(model.Centroids, scaled)
	return id, math.Sqrt(sq), nil
}

// Nearest returns the closest centroid to a scaled point and the distance.
func Nearest(centroids [][]float64, scaled []float64) (int, float64) {
	id, sq := nearestSquared(centroids, scaled)
	return id, math.Sqrt(sq)
}
