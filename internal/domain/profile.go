package domain

// TimingDistribution is expressed in percent and sums to 100 when any timing data exists.
type TimingDistribution struct {
	Weekend   float64 `json:"weekend"`
	Morning   float64 `json:"morning"`
	Afternoon float64 `json:"afternoon"`
	Evening   float64 `json:"evening"`
}

// Timing bucket names, in tie-break order.
const (
	TimingWeekend   = "weekend"
	TimingMorning   = "morning"
	TimingAfternoon = "afternoon"
	TimingEvening   = "evening"
)

// Largest returns the name of the largest bucket. Ties resolve in declaration order.
func (t TimingDistribution) Largest() string {
	best, bestVal := TimingWeekend, t.Weekend
	for _, c := range []struct {
		name string
		val  float64
	}{
		{TimingMorning, t.Morning},
		{TimingAfternoon, t.Afternoon},
		{TimingEvening, t.Evening},
	} {
		if c.val > bestVal {
			best, bestVal = c.name, c.val
		}
	}
	return best
}

// ClusterProfile summarizes one cluster. Rebuilt from assignments and raw
// transactions on every request.
type ClusterProfile struct {
	ModelID               string             `json:"model_id"`
	ClusterID             int                `json:"cluster_id"`
	Size                  int                `json:"size"`
	PopulationShare       float64            `json:"percentage"` // percent of assigned customers
	MeanFeatureValues     map[string]float64 `json:"mean_features"`
	CategoryDistribution  map[string]float64 `json:"category_distribution"` // share of transactions, sums to 1
	PaymentDistribution   map[string]float64 `json:"payment_distribution"`  // share of payment splits, sums to 1
	TimingDistribution    TimingDistribution `json:"timing"`
	MeanTransactionAmount float64            `json:"avg_transaction_amount"`
	DominantNextBrand     string             `json:"next_brand"`
	Label                 string             `json:"label"`
}
