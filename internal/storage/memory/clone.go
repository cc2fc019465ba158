package memory

import "customer-segment-lab/internal/domain"

// cloneTransaction returns a deep copy so callers cannot mutate stored data.
func cloneTransaction(t *domain.Transaction) *domain.Transaction {
	c := *t
	c.LineItems = append([]domain.LineItem(nil), t.LineItems...)
	c.PaymentSplits = make([]domain.PaymentSplit, len(t.PaymentSplits))
	for i, p := range t.PaymentSplits {
		c.PaymentSplits[i] = p
		if p.Amount != nil {
			amount := *p.Amount
			c.PaymentSplits[i].Amount = &amount
		}
	}
	return &c
}

func cloneModel(m *domain.ClusterModel) *domain.ClusterModel {
	c := *m
	c.Centroids = make([][]float64, len(m.Centroids))
	for i, row := range m.Centroids {
		c.Centroids[i] = append([]float64(nil), row...)
	}
	c.Scaler = domain.ScalerState{
		Center: append([]float64(nil), m.Scaler.Center...),
		Scale:  append([]float64(nil), m.Scaler.Scale...),
	}
	c.Schema = domain.FeatureSchema{
		Categories:  append([]string(nil), m.Schema.Categories...),
		Instruments: append([]string(nil), m.Schema.Instruments...),
	}
	return &c
}

func cloneProfile(p *domain.ClusterProfile) *domain.ClusterProfile {
	c := *p
	c.MeanFeatureValues = cloneMap(p.MeanFeatureValues)
	c.CategoryDistribution = cloneMap(p.CategoryDistribution)
	c.PaymentDistribution = cloneMap(p.PaymentDistribution)
	return &c
}

func cloneQualityReport(r *domain.QualityReport) *domain.QualityReport {
	c := *r
	c.Metrics.ClusterSizes = append([]int(nil), r.Metrics.ClusterSizes...)
	c.Metrics.Silhouette = cloneFloat(r.Metrics.Silhouette)
	c.Metrics.CalinskiHarabasz = cloneFloat(r.Metrics.CalinskiHarabasz)
	c.Metrics.DaviesBouldin = cloneFloat(r.Metrics.DaviesBouldin)
	c.Metrics.AvgInterClusterDistance = cloneFloat(r.Metrics.AvgInterClusterDistance)
	c.Metrics.MinInterClusterDistance = cloneFloat(r.Metrics.MinInterClusterDistance)
	return &c
}

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
