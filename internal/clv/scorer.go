// Package clv scores customer lifetime value per merchant and derives
// merchant retention statistics. It does not depend on clustering.
package clv

import (
	"math"
	"sort"
	"time"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/metrics"
	"customer-segment-lab/internal/normalization"
)

// Weights of the CLV score components.
type Weights struct {
	Spend      float64 `yaml:"spend"`
	Count      float64 `yaml:"count"`
	Tenure     float64 `yaml:"tenure"`
	CountUnit  float64 `yaml:"count_unit"`  // value of one transaction
	TenureUnit float64 `yaml:"tenure_unit"` // value of one active month
}

// SimilarityWeights weight the prospect similarity ratios.
type SimilarityWeights struct {
	Spend     float64 `yaml:"spend"`
	Frequency float64 `yaml:"frequency"`
	Ticket    float64 `yaml:"ticket"`
}

// Config controls merchant scoring.
type Config struct {
	Weights           Weights           `yaml:"weights"`
	Similarity        SimilarityWeights `yaml:"similarity"`
	DaysPerMonth      float64           `yaml:"days_per_month"`
	ChurnWindowDays   int               `yaml:"churn_window_days"`
	TopCustomers      int               `yaml:"top_customers"`
	ProspectsReturned int               `yaml:"prospects"`
}

// DefaultConfig returns the standard CLV parameters.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Spend:      0.4,
			Count:      0.3,
			Tenure:     0.3,
			CountUnit:  100,
			TenureUnit: 1000,
		},
		Similarity: SimilarityWeights{
			Spend:     0.4,
			Frequency: 0.3,
			Ticket:    0.3,
		},
		DaysPerMonth:      30,
		ChurnWindowDays:   30,
		TopCustomers:      5,
		ProspectsReturned: 5,
	}
}

// Score returns the CLV score. It is non-decreasing in every argument for
// non-negative weights.
func (w Weights) Score(totalSpend float64, transactions int, monthsActive float64) float64 {
	return w.Spend*totalSpend +
		w.Count*float64(transactions)*w.CountUnit +
		w.Tenure*monthsActive*w.TenureUnit
}

// Scorer computes merchant CLV records and insights.
type Scorer struct {
	cfg   Config
	clock func() time.Time
}

// NewScorer creates a scorer.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{
		cfg:   cfg,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets the query time used for churn.
func (s *Scorer) WithClock(clock func() time.Time) *Scorer {
	s.clock = clock
	return s
}

// TransactionMerchant returns the merchant id a transaction is matched on.
func TransactionMerchant(tx *domain.Transaction) string {
	if tx.URL != "" {
		return normalization.MerchantID(tx.URL)
	}
	return normalization.MerchantID(tx.MerchantID)
}

// Rankings returns one record per customer with at least one transaction at
// merchant, ordered by CLV score descending then customer id.
func (s *Scorer) Rankings(customers []domain.Customer, merchant string) []domain.MerchantCLVRecord {
	merchantID := normalization.MerchantID(merchant)

	var records []domain.MerchantCLVRecord
	for i := range customers {
		txs := merchantTransactions(&customers[i], merchantID)
		if len(txs) == 0 {
			continue
		}
		records = append(records, s.record(customers[i].ID, txs))
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CLVScore != records[j].CLVScore {
			return records[i].CLVScore > records[j].CLVScore
		}
		return records[i].CustomerID < records[j].CustomerID
	})
	return records
}

// Insights aggregates merchant statistics. A merchant without customers
// yields empty insights, not an error.
func (s *Scorer) Insights(customers []domain.Customer, merchant string) domain.MerchantInsights {
	merchantID := normalization.MerchantID(merchant)
	out := domain.MerchantInsights{
		MerchantID:   merchantID,
		TopCustomers: []domain.MerchantCLVRecord{},
		Rankings:     s.Rankings(customers, merchantID),
	}
	if len(out.Rankings) == 0 {
		return out
	}

	now := s.clock()
	churnWindow := time.Duration(s.cfg.ChurnWindowDays) * 24 * time.Hour

	var avgValues, frequencies, gaps []float64
	repeat, churned := 0, 0
	for _, r := range out.Rankings {
		out.TotalRevenue += r.TotalSpend
		avgValues = append(avgValues, r.AvgTransactionValue)
		frequencies = append(frequencies, r.MonthlyFrequency)
		if r.TransactionCount > 1 {
			repeat++
		}
		if now.Sub(r.LastPurchase) > churnWindow {
			churned++
		}
	}
	for i := range customers {
		txs := merchantTransactions(&customers[i], merchantID)
		for j := 1; j < len(txs); j++ {
			gaps = append(gaps, wholeDays(txs[j].Timestamp.Sub(txs[j-1].Timestamp)))
		}
	}

	n := len(out.Rankings)
	out.TotalCustomers = n
	out.AvgTransactionValue = metrics.Mean(avgValues)
	out.AvgMonthlyFrequency = metrics.Mean(frequencies)
	out.RetentionRate = float64(repeat) / float64(n)
	out.ChurnRate = float64(churned) / float64(n)
	out.AvgPurchaseGapDays = metrics.Mean(gaps)
	out.TopCustomers = out.Rankings[:min(n, s.cfg.TopCustomers)]
	return out
}

// SimilarProspects ranks customers without purchases at merchant by how their
// overall spend, monthly frequency and ticket compare to the merchant's
// current customer averages.
func (s *Scorer) SimilarProspects(customers []domain.Customer, merchant string) []domain.ProspectRecord {
	merchantID := normalization.MerchantID(merchant)
	rankings := s.Rankings(customers, merchantID)
	if len(rankings) == 0 {
		return []domain.ProspectRecord{}
	}

	existing := make(map[string]struct{}, len(rankings))
	var spend, freq, ticket []float64
	for _, r := range rankings {
		existing[r.CustomerID] = struct{}{}
		spend = append(spend, r.TotalSpend)
		freq = append(freq, r.MonthlyFrequency)
		ticket = append(ticket, r.AvgTransactionValue)
	}
	avgSpend, avgFreq, avgTicket := metrics.Mean(spend), metrics.Mean(freq), metrics.Mean(ticket)

	prospects := []domain.ProspectRecord{}
	for i := range customers {
		c := &customers[i]
		if _, ok := existing[c.ID]; ok || len(c.Transactions) == 0 {
			continue
		}
		rec := s.record(c.ID, c.SortedTransactions())
		w := s.cfg.Similarity
		prospects = append(prospects, domain.ProspectRecord{
			CustomerID:       c.ID,
			TotalSpend:       rec.TotalSpend,
			MonthlyFrequency: rec.MonthlyFrequency,
			AvgTicket:        rec.AvgTransactionValue,
			SimilarityScore: w.Spend*ratio(rec.TotalSpend, avgSpend) +
				w.Frequency*ratio(rec.MonthlyFrequency, avgFreq) +
				w.Ticket*ratio(rec.AvgTransactionValue, avgTicket),
		})
	}

	sort.Slice(prospects, func(i, j int) bool {
		if prospects[i].SimilarityScore != prospects[j].SimilarityScore {
			return prospects[i].SimilarityScore > prospects[j].SimilarityScore
		}
		return prospects[i].CustomerID < prospects[j].CustomerID
	})
	return prospects[:min(len(prospects), s.cfg.ProspectsReturned)]
}

// record builds the CLV record of time-ordered transactions.
func (s *Scorer) record(customerID string, txs []domain.Transaction) domain.MerchantCLVRecord {
	total := 0.0
	for i := range txs {
		total += txs[i].TotalAmount
	}
	first, last := txs[0].Timestamp, txs[len(txs)-1].Timestamp
	months := math.Max(1, wholeDays(last.Sub(first))/s.cfg.DaysPerMonth)
	n := len(txs)

	return domain.MerchantCLVRecord{
		CustomerID:          customerID,
		TotalSpend:          total,
		TransactionCount:    n,
		AvgTransactionValue: total / float64(n),
		MonthlyFrequency:    float64(n) / months,
		MonthsActive:        months,
		CLVScore:            s.cfg.Weights.Score(total, n, months),
		FirstPurchase:       first,
		LastPurchase:        last,
	}
}

// merchantTransactions returns the customer's transactions at merchantID in time order.
func merchantTransactions(c *domain.Customer, merchantID string) []domain.Transaction {
	var out []domain.Transaction
	for _, tx := range c.SortedTransactions() {
		if TransactionMerchant(&tx) == merchantID {
			out = append(out, tx)
		}
	}
	return out
}

func wholeDays(d time.Duration) float64 {
	return math.Floor(d.Hours() / 24)
}

func ratio(v, avg float64) float64 {
	if avg == 0 {
		return 0
	}
	return v / avg
}
