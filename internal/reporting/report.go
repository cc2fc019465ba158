package reporting

import "time"

// Report represents the segmentation report of one run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	ModelID     string
	K           int

	ExecutiveSummary ExecutiveSummary

	// Data Summary
	DataSummary DataSummary

	// Data Quality (sufficiency checks)
	DataQuality DataQualitySection

	// Cluster-count selection trials, ordered by k
	Selection []SelectionRow

	// Segments, ordered by cluster_id
	Clusters []ClusterRow

	// Quality of the training fit, the holdout and every fold
	Quality []QualityRow

	// Cross-validation summary, in metric report order
	CrossValidation []MetricSummaryRow

	// Merchant CLV summaries, in request order
	Merchants []MerchantRow

	// Per-customer assignments, ordered by customer_id (CSV only)
	Assignments []AssignmentRow

	// Non-fatal run errors
	RunErrors []string

	Reproducibility      ReproducibilityMetadata
	DecisionChecklistRef string
}

// ExecutiveSummary is the headline of a report.
type ExecutiveSummary struct {
	Customers           int
	K                   int
	HoldoutSilhouette   *float64
	LargestSegment      string
	LargestSegmentShare float64 // percent
	DataPeriodStart     time.Time
	DataPeriodEnd       time.Time
	Decision            string
}

// DataQualitySection contains data sufficiency checks and integrity errors.
type DataQualitySection struct {
	SufficiencyChecks []SufficiencyCheckRow
	IntegrityErrors   []string
	AllChecksPassed   bool
}

// SufficiencyCheckRow represents one sufficiency criterion.
type SufficiencyCheckRow struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// DataSummary describes the stored corpus.
type DataSummary struct {
	Customers        int
	Transactions     int
	Merchants        int
	TotalSpend       float64
	FirstTransaction time.Time
	LastTransaction  time.Time
	TrainCustomers   int
	TestCustomers    int
}

// SelectionRow is one candidate k.
type SelectionRow struct {
	K                int
	Silhouette       float64
	CalinskiHarabasz float64
	DaviesBouldin    float64
	Inertia          float64
	Composite        float64
	Selected         bool
}

// ClusterRow summarizes one segment.
type ClusterRow struct {
	ClusterID        int
	Label            string
	Size             int
	Share            float64 // percent of assigned customers
	MeanAmount       float64
	TopCategory      string
	TopCategoryShare float64 // fraction of cluster transactions
	TopPayment       string
	PeakTiming       string
	NextBrand        string
}

// Partition names used in quality and assignment rows.
const (
	PartitionTrain   = "train"
	PartitionHoldout = "holdout"
	PartitionFold    = "fold"
)

// QualityRow is one persisted quality record.
type QualityRow struct {
	Partition        string
	Fold             int // fold index, or a reserved negative value
	K                int
	Silhouette       *float64
	CalinskiHarabasz *float64
	DaviesBouldin    *float64
	Inertia          float64
	MinInterCluster  *float64
}

// MetricSummaryRow is the cross-validation summary of one metric.
type MetricSummaryRow struct {
	Metric  string
	Mean    float64
	Std     float64
	Defined int
	Folds   int
}

// MerchantRow summarizes merchant CLV insights.
type MerchantRow struct {
	MerchantID     string
	Customers      int
	Revenue        float64
	AvgTicket      float64
	MonthlyFreq    float64
	RetentionRate  float64
	ChurnRate      float64
	AvgGapDays     float64
	TopCustomerID  string
	TopCustomerCLV float64
}

// AssignmentRow is one customer's segment.
type AssignmentRow struct {
	CustomerID string
	ClusterID  int
	Label      string
	Distance   float64
	Partition  string // train, holdout, or empty when unknown
}

// ReproducibilityMetadata identifies the inputs of a report.
type ReproducibilityMetadata struct {
	ReportTimestamp  time.Time
	GeneratorVersion string
	DataVersion      string // short hash of the corpus
	ModelID          string
	Seed             uint64
	CommitHash       string
	ReplayCommand    string
}
