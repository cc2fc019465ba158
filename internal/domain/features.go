package domain

// Fixed leading positions of a FeatureVector.
const (
	FeatureAvgAmount = iota
	FeatureMaxAmount
	FeatureMinAmount
	FeatureStdAmount
	FeatureFrequency
	FeatureWeekendRatio
	FeatureMorningRatio
	FeatureAfternoonRatio
	FeatureEveningRatio

	// FixedFeatureCount is the number of features preceding the category ratios.
	FixedFeatureCount
)

// FixedFeatureNames lists names of the fixed features in vector order.
var FixedFeatureNames = []string{
	"avg_transaction",
	"max_transaction",
	"min_transaction",
	"std_transaction",
	"transaction_frequency",
	"weekend_ratio",
	"morning_ratio",
	"afternoon_ratio",
	"evening_ratio",
}

// FeatureSchema is the closed vocabulary a model was fit with.
// Both slices are lexically sorted and never grow after fit.
type FeatureSchema struct {
	Categories  []string `json:"categories"`
	Instruments []string `json:"instruments"`
}

// Dim returns the feature vector length for this schema.
func (s FeatureSchema) Dim() int {
	return FixedFeatureCount + len(s.Categories) + len(s.Instruments)
}

// CategoryOffset returns the vector position of the first category ratio.
func (s FeatureSchema) CategoryOffset() int {
	return FixedFeatureCount
}

// InstrumentOffset returns the vector position of the first instrument ratio.
func (s FeatureSchema) InstrumentOffset() int {
	return FixedFeatureCount + len(s.Categories)
}

// FeatureNames returns a name for every vector position.
func (s FeatureSchema) FeatureNames() []string {
	names := make([]string, 0, s.Dim())
	names = append(names, FixedFeatureNames...)
	for _, c := range s.Categories {
		names = append(names, "cat_"+c)
	}
	for _, i := range s.Instruments {
		names = append(names, "pay_"+i)
	}
	return names
}

// FeatureVector is the behavioral fingerprint of one customer.
type FeatureVector []float64

// CustomerVector pairs a customer id with its extracted vector.
type CustomerVector struct {
	CustomerID string
	Vector     FeatureVector
}
