package prediction

import (
	"math"
	"sort"
	"time"

	"customer-segment-lab/internal/clustering"
	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/features"
	"customer-segment-lab/internal/metrics"
	"customer-segment-lab/internal/normalization"
)

// Config controls prediction blending.
type Config struct {
	RecentWindow  int     `yaml:"recent_window"`  // most recent transactions considered "recent"
	RecentBoost   float64 `yaml:"recent_boost"`   // multiplier for keys seen recently
	TopCategories int     `yaml:"top_categories"`
	TopPayments   int     `yaml:"top_payments"`
	TopMerchants  int     `yaml:"top_merchants"`
	ClusterWeight float64 `yaml:"cluster_weight"` // share of the cluster mean in the amount estimate
	RecentWeight  float64 `yaml:"recent_weight"`
	RecencyDecay  float64 `yaml:"recency_decay"` // per-day exponential decay of merchant scores
}

// DefaultConfig returns the standard prediction parameters.
func DefaultConfig() Config {
	return Config{
		RecentWindow:  5,
		RecentBoost:   1.5,
		TopCategories: 3,
		TopPayments:   2,
		TopMerchants:  5,
		ClusterWeight: 0.7,
		RecentWeight:  0.3,
		RecencyDecay:  0.1,
	}
}

// Predictor computes next-purchase predictions. It holds no mutable state.
type Predictor struct {
	cfg Config
}

// NewPredictor creates a predictor.
func NewPredictor(cfg Config) *Predictor {
	return &Predictor{cfg: cfg}
}

// Predict returns the likely next purchase of customerID under snapshot s.
func (p *Predictor) Predict(s *Snapshot, customerID string) (*domain.PredictionResult, error) {
	if s == nil || s.Model == nil {
		return nil, domain.ErrModelNotFitted
	}
	c, ok := s.Customer(customerID)
	if !ok || len(c.Transactions) == 0 {
		return nil, &domain.NotFoundError{Kind: "customer", ID: customerID}
	}

	vector := features.Extract(c, s.Model.Schema)
	clusterID, _, err := clustering.Predict(s.Model, vector)
	if err != nil {
		return nil, err
	}
	profile := &s.Profiles[clusterID]

	txs := c.Transactions
	recent := txs[max(0, len(txs)-p.cfg.RecentWindow):]

	recentCategories := make(map[string]struct{})
	recentInstruments := make(map[string]struct{})
	recentAmounts := make([]float64, 0, len(recent))
	for i := range recent {
		recentCategories[recent[i].PrimaryCategory()] = struct{}{}
		for _, key := range recent[i].InstrumentKeys() {
			if key != "" {
				recentInstruments[key] = struct{}{}
			}
		}
		recentAmounts = append(recentAmounts, recent[i].TotalAmount)
	}

	result := &domain.PredictionResult{
		CustomerID:   customerID,
		ModelID:      s.Model.ModelID,
		ClusterID:    clusterID,
		ClusterLabel: profile.Label,
		EstimatedAmount: p.cfg.ClusterWeight*profile.MeanTransactionAmount +
			p.cfg.RecentWeight*metrics.Mean(recentAmounts),
		AmountRange: domain.AmountRange{
			Low:  metrics.Percentile(recentAmounts, 0.25),
			High: metrics.Percentile(recentAmounts, 0.75),
		},
		Merchants: p.scoreMerchants(txs),
	}

	for _, r := range p.rank(profile.CategoryDistribution, recentCategories, p.cfg.TopCategories) {
		result.Categories = append(result.Categories, domain.CategoryPrediction{Category: r.key, Confidence: r.score})
	}
	for _, r := range p.rank(profile.PaymentDistribution, recentInstruments, p.cfg.TopPayments) {
		result.Payments = append(result.Payments, domain.PaymentPrediction{PaymentInstrument: r.key, Confidence: r.score})
	}

	var tops []float64
	if len(result.Categories) > 0 {
		tops = append(tops, result.Categories[0].Confidence)
	}
	if len(result.Payments) > 0 {
		tops = append(tops, result.Payments[0].Confidence)
	}
	result.ConfidenceScore = metrics.Mean(tops)

	return result, nil
}

type scored struct {
	key   string
	score float64
}

// rank scores every key of the cluster distribution or the recent set:
// cluster share, boosted when seen recently, capped at 1.
func (p *Predictor) rank(cluster map[string]float64, recent map[string]struct{}, limit int) []scored {
	keys := make(map[string]struct{}, len(cluster)+len(recent))
	for k := range cluster {
		keys[k] = struct{}{}
	}
	for k := range recent {
		keys[k] = struct{}{}
	}

	out := make([]scored, 0, len(keys))
	for k := range keys {
		conf := cluster[k]
		if _, ok := recent[k]; ok {
			conf *= p.cfg.RecentBoost
		}
		out = append(out, scored{key: k, score: math.Min(conf, 1)})
	}
	sortScored(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// scoreMerchants weights each transaction by recency decay relative to the
// customer's latest purchase, relative amount and season, then normalizes.
func (p *Predictor) scoreMerchants(txs []domain.Transaction) []domain.MerchantPrediction {
	if len(txs) == 0 {
		return nil
	}
	latest := txs[0].Timestamp
	maxAmount := 0.0
	for i := range txs {
		if txs[i].Timestamp.After(latest) {
			latest = txs[i].Timestamp
		}
		maxAmount = math.Max(maxAmount, txs[i].TotalAmount)
	}

	scores := make(map[string]float64)
	total := 0.0
	for i := range txs {
		tx := &txs[i]
		if tx.MerchantID == "" {
			continue
		}
		daysAgo := math.Floor(latest.Sub(tx.Timestamp).Hours() / 24)
		amountWeight := 0.0
		if maxAmount > 0 {
			amountWeight = tx.TotalAmount / maxAmount
		}
		s := math.Exp(-p.cfg.RecencyDecay*daysAgo) * amountWeight * SeasonalFactor(tx.Timestamp.Month())
		scores[tx.MerchantID] += s
		total += s
	}

	ranked := make([]scored, 0, len(scores))
	for m, s := range scores {
		if total > 0 {
			s /= total
		}
		ranked = append(ranked, scored{key: m, score: s})
	}
	sortScored(ranked)
	if len(ranked) > p.cfg.TopMerchants {
		ranked = ranked[:p.cfg.TopMerchants]
	}

	out := make([]domain.MerchantPrediction, len(ranked))
	for i, r := range ranked {
		out[i] = domain.MerchantPrediction{Merchant: normalization.BrandName(r.key), Score: r.score}
	}
	return out
}

// SeasonalFactor boosts holiday and summer purchases.
func SeasonalFactor(month time.Month) float64 {
	switch month {
	case time.November, time.December:
		return 1.2
	case time.June, time.July, time.August:
		return 1.1
	default:
		return 1.0
	}
}

func sortScored(s []scored) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].score != s[j].score {
			return s[i].score > s[j].score
		}
		return s[i].key < s[j].key
	})
}
