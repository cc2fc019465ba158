package domain

import "time"

// QualityMetrics scores one clustering. Undefined metrics are nil.
type QualityMetrics struct {
	Silhouette              *float64 `json:"silhouette"`
	CalinskiHarabasz        *float64 `json:"calinski_harabasz"`
	DaviesBouldin           *float64 `json:"davies_bouldin"`
	Inertia                 float64  `json:"inertia"`
	ClusterSizes            []int    `json:"cluster_sizes"`
	AvgInterClusterDistance *float64 `json:"avg_inter_cluster_distance"`
	MinInterClusterDistance *float64 `json:"min_inter_cluster_distance"`
}

// SelectionTrial records the scores of one candidate k.
type SelectionTrial struct {
	K                int
	Silhouette       float64
	CalinskiHarabasz float64
	DaviesBouldin    float64
	Inertia          float64
	Composite        float64
}

// SplitResult partitions customer ids into train and test sets.
type SplitResult struct {
	Train []string
	Test  []string
}

// FoldResult holds held-out quality for one cross-validation fold.
type FoldResult struct {
	Fold      int
	K         int
	TrainSize int
	TestSize  int
	TestIDs   []string
	Metrics   QualityMetrics
}

// MetricSummary is the mean and population standard deviation of a metric
// across folds where it was defined.
type MetricSummary struct {
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	Defined int     `json:"defined"` // folds contributing a value
}

// CrossValidationResult aggregates all folds of a run.
type CrossValidationResult struct {
	Folds   []FoldResult
	Summary map[string]MetricSummary // keyed by metric name
}

// Metric names used in summaries and persisted reports.
const (
	MetricSilhouette       = "silhouette"
	MetricCalinskiHarabasz = "calinski_harabasz"
	MetricDaviesBouldin    = "davies_bouldin"
	MetricInertia          = "inertia"
	MetricAvgInterCluster  = "avg_inter_cluster_distance"
	MetricMinInterCluster  = "min_inter_cluster_distance"
)

// Reserved QualityReport.Fold values for non-fold records.
const (
	FoldTrainFit = -1 // quality of the fit on the training partition
	FoldHoldout  = -2 // quality of the test partition under the fitted model
)

// QualityReport is a persisted quality record. Fold is a cross-validation
// fold index or one of the reserved negative values.
type QualityReport struct {
	RunID      string
	ModelID    string
	Fold       int
	K          int
	Metrics    QualityMetrics
	RecordedAt time.Time
}
