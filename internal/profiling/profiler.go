// Package profiling aggregates per-cluster statistics and derives cluster labels.
package profiling

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/features"
	"customer-segment-lab/internal/metrics"
	"customer-segment-lab/internal/normalization"
)

// Label thresholds.
const (
	HighValueAmount    = 100.0
	MidRangeAmount     = 50.0
	FrequentPerDay     = 2.0
	RegularPerDay      = 1.0
	LargeClusterSize   = 40
	MediumClusterSize  = 20
	fallbackCategory   = "General"
	labelSeparator     = " "
	timingPercentTotal = 100.0
)

// titleCase builds a fresh Caser per call; Casers are not safe for concurrent use.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

type clusterAccumulator struct {
	size         int
	vectorSums   []float64
	categories   map[string]int
	instruments  map[string]int
	amounts      []float64
	merchantTx   map[string]int
	merchantAmt  map[string]float64
	transactions int
	splits       int
}

// Build computes a profile for every cluster of model from its assignments
// and the raw transactions of the assigned customers. Customers without
// transactions are skipped. Profiles are ordered by cluster id.
func Build(model *domain.ClusterModel, assignments []domain.ClusterAssignment, customers []domain.Customer) ([]domain.ClusterProfile, error) {
	if model == nil {
		return nil, domain.ErrModelNotFitted
	}

	byID := make(map[string]*domain.Customer, len(customers))
	for i := range customers {
		byID[customers[i].ID] = &customers[i]
	}

	acc := make([]*clusterAccumulator, model.K)
	for i := range acc {
		acc[i] = &clusterAccumulator{
			vectorSums:  make([]float64, model.Schema.Dim()),
			categories:  make(map[string]int),
			instruments: make(map[string]int),
			merchantTx:  make(map[string]int),
			merchantAmt: make(map[string]float64),
		}
	}

	total := 0
	for _, a := range assignments {
		if a.ModelID != model.ModelID {
			return nil, fmt.Errorf("assignment for %s belongs to model %s, not %s", a.CustomerID, a.ModelID, model.ModelID)
		}
		if a.ClusterID < 0 || a.ClusterID >= model.K {
			return nil, fmt.Errorf("assignment for %s: cluster %d out of range", a.CustomerID, a.ClusterID)
		}
		c, ok := byID[a.CustomerID]
		if !ok {
			continue
		}
		v := features.Extract(c, model.Schema)
		if v == nil {
			continue
		}
		acc[a.ClusterID].add(c, v)
		total++
	}

	names := model.Schema.FeatureNames()
	profiles := make([]domain.ClusterProfile, model.K)
	for id, a := range acc {
		p := domain.ClusterProfile{
			ModelID:              model.ModelID,
			ClusterID:            id,
			Size:                 a.size,
			MeanFeatureValues:    make(map[string]float64, len(names)),
			CategoryDistribution: shares(a.categories, a.transactions),
			PaymentDistribution:  shares(a.instruments, a.splits),
		}
		if total > 0 {
			p.PopulationShare = float64(a.size) / float64(total) * 100
		}
		if a.size > 0 {
			for j, name := range names {
				p.MeanFeatureValues[name] = a.vectorSums[j] / float64(a.size)
			}
			p.TimingDistribution = timing(a.vectorSums)
		}
		p.MeanTransactionAmount = metrics.Mean(a.amounts)
		p.DominantNextBrand = a.dominantBrand()
		p.Label = Label(&p)
		profiles[id] = p
	}
	return profiles, nil
}

func (a *clusterAccumulator) add(c *domain.Customer, v domain.FeatureVector) {
	a.size++
	for j, x := range v {
		a.vectorSums[j] += x
	}
	for i := range c.Transactions {
		tx := &c.Transactions[i]
		a.transactions++
		a.categories[tx.PrimaryCategory()]++
		for _, key := range tx.InstrumentKeys() {
			if key == "" {
				continue
			}
			a.instruments[key]++
			a.splits++
		}
		a.amounts = append(a.amounts, tx.TotalAmount)
		if tx.MerchantID != "" {
			a.merchantTx[tx.MerchantID]++
			a.merchantAmt[tx.MerchantID] += tx.TotalAmount
		}
	}
}

// dominantBrand returns the display name of the most frequent merchant.
// Ties go to the higher total spend, then to the lexically smaller id.
func (a *clusterAccumulator) dominantBrand() string {
	best := ""
	for m, n := range a.merchantTx {
		if best == "" {
			best = m
			continue
		}
		bn := a.merchantTx[best]
		switch {
		case n > bn:
			best = m
		case n == bn && a.merchantAmt[m] > a.merchantAmt[best]:
			best = m
		case n == bn && a.merchantAmt[m] == a.merchantAmt[best] && m < best:
			best = m
		}
	}
	if best == "" {
		return ""
	}
	return normalization.BrandName(best)
}

// timing renormalizes the summed timing features to percentages.
func timing(sums []float64) domain.TimingDistribution {
	weekend := sums[domain.FeatureWeekendRatio]
	morning := sums[domain.FeatureMorningRatio]
	afternoon := sums[domain.FeatureAfternoonRatio]
	evening := sums[domain.FeatureEveningRatio]
	total := weekend + morning + afternoon + evening
	if total == 0 {
		return domain.TimingDistribution{}
	}
	scale := timingPercentTotal / total
	return domain.TimingDistribution{
		Weekend:   weekend * scale,
		Morning:   morning * scale,
		Afternoon: afternoon * scale,
		Evening:   evening * scale,
	}
}

func shares(counts map[string]int, total int) map[string]float64 {
	out := make(map[string]float64, len(counts))
	if total == 0 {
		return out
	}
	for k, n := range counts {
		out[k] = float64(n) / float64(total)
	}
	return out
}

// Label derives the cluster label from its statistics:
// spend tier, frequency tier, timing, category, size.
func Label(p *domain.ClusterProfile) string {
	parts := []string{
		spendTier(p.MeanFeatureValues[domain.FixedFeatureNames[domain.FeatureAvgAmount]]),
		frequencyTier(p.MeanFeatureValues[domain.FixedFeatureNames[domain.FeatureFrequency]]),
		titleCase(p.TimingDistribution.Largest()),
		categoryTag(p.CategoryDistribution),
		sizeTier(p.Size),
	}
	return strings.Join(parts, labelSeparator)
}

func spendTier(avg float64) string {
	switch {
	case avg > HighValueAmount:
		return "High-Value"
	case avg > MidRangeAmount:
		return "Mid-Range"
	default:
		return "Budget"
	}
}

func frequencyTier(perDay float64) string {
	switch {
	case perDay > FrequentPerDay:
		return "Frequent"
	case perDay > RegularPerDay:
		return "Regular"
	default:
		return "Occasional"
	}
}

func sizeTier(size int) string {
	switch {
	case size > LargeClusterSize:
		return "Large"
	case size > MediumClusterSize:
		return "Medium"
	default:
		return "Small"
	}
}

// categoryTag returns the top category, skipping the catch-all bucket.
func categoryTag(dist map[string]float64) string {
	ranked := RankShares(dist)
	if len(ranked) == 0 {
		return fallbackCategory
	}
	top := ranked[0]
	if top == domain.CategoryOther {
		if len(ranked) < 2 {
			return fallbackCategory
		}
		top = ranked[1]
	}
	return titleCase(top)
}

// RankShares returns keys ordered by descending share, ties by key.
func RankShares(dist map[string]float64) []string {
	keys := make([]string, 0, len(dist))
	for k := range dist {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if dist[keys[i]] != dist[keys[j]] {
			return dist[keys[i]] > dist[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
