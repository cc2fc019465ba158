// Package features builds fixed-length behavioral vectors from customer transactions.
package features

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/metrics"
)

// Single-transaction timing defaults; the date range is undefined.
const (
	defaultWeekendRatio   = 0.5
	defaultMorningRatio   = 0.33
	defaultAfternoonRatio = 0.33
	defaultEveningRatio   = 0.34
)

// FitSchema scans all transactions once and returns the lexically sorted
// category and instrument vocabularies.
func FitSchema(customers []domain.Customer) domain.FeatureSchema {
	categories := make(map[string]struct{})
	instruments := make(map[string]struct{})

	for i := range customers {
		for j := range customers[i].Transactions {
			tx := &customers[i].Transactions[j]
			categories[tx.PrimaryCategory()] = struct{}{}
			for _, key := range tx.InstrumentKeys() {
				if key != "" {
					instruments[key] = struct{}{}
				}
			}
		}
	}

	return domain.FeatureSchema{
		Categories:  sortedKeys(categories),
		Instruments: sortedKeys(instruments),
	}
}

// Extract returns the customer's feature vector, or nil when the customer has
// no transactions. Keys outside the schema are ignored.
func Extract(c *domain.Customer, schema domain.FeatureSchema) domain.FeatureVector {
	n := len(c.Transactions)
	if n == 0 {
		return nil
	}

	v := make(domain.FeatureVector, schema.Dim())

	amounts := make([]float64, n)
	first, last := c.Transactions[0].Timestamp, c.Transactions[0].Timestamp
	for i := range c.Transactions {
		tx := &c.Transactions[i]
		amounts[i] = tx.TotalAmount
		if tx.Timestamp.Before(first) {
			first = tx.Timestamp
		}
		if tx.Timestamp.After(last) {
			last = tx.Timestamp
		}
	}

	mean := metrics.Mean(amounts)
	lo, hi := metrics.MinMax(amounts)
	v[domain.FeatureAvgAmount] = mean
	v[domain.FeatureMaxAmount] = hi
	v[domain.FeatureMinAmount] = lo
	v[domain.FeatureStdAmount] = metrics.PopulationStddev(amounts, mean)

	if n == 1 {
		v[domain.FeatureFrequency] = 1
		v[domain.FeatureWeekendRatio] = defaultWeekendRatio
		v[domain.FeatureMorningRatio] = defaultMorningRatio
		v[domain.FeatureAfternoonRatio] = defaultAfternoonRatio
		v[domain.FeatureEveningRatio] = defaultEveningRatio
	} else {
		v[domain.FeatureFrequency] = float64(n) / float64(max(1, DateRangeDays(first, last)))
		var weekend, morning, afternoon, evening int
		for i := range c.Transactions {
			ts := c.Transactions[i].Timestamp
			if IsWeekend(ts) {
				weekend++
			}
			switch TimeOfDay(ts) {
			case domain.TimingMorning:
				morning++
			case domain.TimingAfternoon:
				afternoon++
			default:
				evening++
			}
		}
		v[domain.FeatureWeekendRatio] = float64(weekend) / float64(n)
		v[domain.FeatureMorningRatio] = float64(morning) / float64(n)
		v[domain.FeatureAfternoonRatio] = float64(afternoon) / float64(n)
		v[domain.FeatureEveningRatio] = float64(evening) / float64(n)
	}

	categoryIndex := indexOf(schema.Categories)
	instrumentIndex := indexOf(schema.Instruments)

	catCounts := make([]int, len(schema.Categories))
	instCounts := make([]int, len(schema.Instruments))
	catTotal, instTotal := 0, 0
	for i := range c.Transactions {
		tx := &c.Transactions[i]
		if idx, ok := categoryIndex[tx.PrimaryCategory()]; ok {
			catCounts[idx]++
			catTotal++
		}
		for _, key := range tx.InstrumentKeys() {
			if idx, ok := instrumentIndex[key]; ok {
				instCounts[idx]++
				instTotal++
			}
		}
	}

	off := schema.CategoryOffset()
	for i, count := range catCounts {
		if catTotal > 0 {
			v[off+i] = float64(count) / float64(catTotal)
		}
	}
	off = schema.InstrumentOffset()
	for i, count := range instCounts {
		if instTotal > 0 {
			v[off+i] = float64(count) / float64(instTotal)
		}
	}

	return v
}

// ExtractAll extracts vectors for every customer with at least one
// transaction, preserving input order. Workers write only to their own slot.
func ExtractAll(ctx context.Context, customers []domain.Customer, schema domain.FeatureSchema, workers int) ([]domain.CustomerVector, error) {
	slots := make([]domain.FeatureVector, len(customers))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range customers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			slots[i] = Extract(&customers[i], schema)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.CustomerVector, 0, len(customers))
	for i, v := range slots {
		if v == nil {
			continue
		}
		out = append(out, domain.CustomerVector{CustomerID: customers[i].ID, Vector: v})
	}
	return out, nil
}

// DateRangeDays returns the number of whole days between two timestamps.
func DateRangeDays(first, last time.Time) int {
	return int(last.Sub(first).Hours() / 24)
}

// IsWeekend reports whether ts falls on Saturday or Sunday in its own location.
func IsWeekend(ts time.Time) bool {
	wd := ts.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// TimeOfDay buckets the local hour: [6,12) morning, [12,18) afternoon,
// everything else evening.
func TimeOfDay(ts time.Time) string {
	h := ts.Hour()
	switch {
	case h >= 6 && h < 12:
		return domain.TimingMorning
	case h >= 12 && h < 18:
		return domain.TimingAfternoon
	default:
		return domain.TimingEvening
	}
}

func indexOf(keys []string) map[string]int {
	m := make(map[string]int, len(keys))
	for i, k := range keys {
		m[k] = i
	}
	return m
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
