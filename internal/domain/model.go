package domain

import "time"

// ScalerState holds per-feature centering and scaling parameters.
type ScalerState struct {
	Center []float64 `json:"center"`
	Scale  []float64 `json:"scale"` // never zero
}

// ClusterModel is an immutable fitted segmentation model.
// A refit produces a new value with a new ModelID.
type ClusterModel struct {
	ModelID   string        `json:"model_id"` // deterministic hash of the fit inputs
	K         int           `json:"k"`
	Centroids [][]float64   `json:"centroids"` // in scaled space
	Scaler    ScalerState   `json:"scaler"`
	Schema    FeatureSchema `json:"schema"`
	Seed      uint64        `json:"seed"`
	Inertia   float64       `json:"inertia"`
	FittedAt  time.Time     `json:"fitted_at"`
}

// ClusterAssignment maps a customer to a cluster of a specific model.
type ClusterAssignment struct {
	ModelID    string
	CustomerID string
	ClusterID  int
	Distance   float64 // Euclidean distance to the centroid in scaled space
}
