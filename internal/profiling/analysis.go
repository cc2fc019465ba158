package profiling

import "customer-segment-lab/internal/domain"

// topCategoryCount is the number of categories listed per cluster summary.
const topCategoryCount = 3

// ClusterSummary is the read-only view of one cluster.
type ClusterSummary struct {
	Label                string                    `json:"label"`
	Size                 int                       `json:"size"`
	Percentage           float64                   `json:"percentage"`
	AvgTransactionAmount float64                   `json:"avg_transaction_amount"`
	Timing               domain.TimingDistribution `json:"timing"`
	TopCategories        []string                  `json:"top_categories"`
	NextBrand            string                    `json:"next_brand"`
}

// Analysis is the read-only cluster analysis of one model.
type Analysis struct {
	ModelID          string                 `json:"model_id"`
	Clusters         map[int]ClusterSummary `json:"clusters"`
	Silhouette       *float64               `json:"silhouette"`
	CalinskiHarabasz *float64               `json:"calinski_harabasz"`
	DaviesBouldin    *float64               `json:"davies_bouldin"`
}

// Analyze combines profiles with the quality metrics of the same model.
func Analyze(modelID string, profiles []domain.ClusterProfile, quality domain.QualityMetrics) Analysis {
	out := Analysis{
		ModelID:          modelID,
		Clusters:         make(map[int]ClusterSummary, len(profiles)),
		Silhouette:       quality.Silhouette,
		CalinskiHarabasz: quality.CalinskiHarabasz,
		DaviesBouldin:    quality.DaviesBouldin,
	}
	for _, p := range profiles {
		top := RankShares(p.CategoryDistribution)
		if len(top) > topCategoryCount {
			top = top[:topCategoryCount]
		}
		out.Clusters[p.ClusterID] = ClusterSummary{
			Label:                p.Label,
			Size:                 p.Size,
			Percentage:           p.PopulationShare,
			AvgTransactionAmount: p.MeanTransactionAmount,
			Timing:               p.TimingDistribution,
			TopCategories:        top,
			NextBrand:            p.DominantNextBrand,
		}
	}
	return out
}
