package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/features"
	"customer-segment-lab/internal/storage"
)

// Thresholds are the data sufficiency criteria checked before fitting.
type Thresholds struct {
	MinCustomers    int     `yaml:"min_customers"`
	MinTransactions int     `yaml:"min_transactions"`
	MinSpanDays     int     `yaml:"min_span_days"`
	MaxDropRate     float64 `yaml:"max_drop_rate"` // fraction of ingested records
}

// DefaultThresholds returns the standard sufficiency criteria.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinCustomers:    10,
		MinTransactions: 50,
		MinSpanDays:     30,
		MaxDropRate:     0.05,
	}
}

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SufficiencyResult contains all checks.
type SufficiencyResult struct {
	Checks  []SufficiencyCheck
	AllPass bool
	Errors  []string // data integrity errors
}

// SufficiencyChecker validates data sufficiency before fitting.
type SufficiencyChecker struct {
	txStore       storage.TransactionStore
	progressStore storage.IngestionProgressStore
	thresholds    Thresholds
}

// NewSufficiencyChecker creates a new sufficiency checker.
// progressStore may be nil when data did not come from a corpus.
func NewSufficiencyChecker(
	txStore storage.TransactionStore,
	progressStore storage.IngestionProgressStore,
	thresholds Thresholds,
) *SufficiencyChecker {
	return &SufficiencyChecker{
		txStore:       txStore,
		progressStore: progressStore,
		thresholds:    thresholds,
	}
}

// Check performs all sufficiency checks.
func (c *SufficiencyChecker) Check(ctx context.Context) (*SufficiencyResult, error) {
	result := &SufficiencyResult{
		Checks:  make([]SufficiencyCheck, 0, 4),
		AllPass: true,
		Errors:  []string{},
	}

	customers, err := storage.LoadCustomers(ctx, c.txStore)
	if err != nil {
		return nil, fmt.Errorf("failed to load customers: %w", err)
	}

	add := func(check SufficiencyCheck) {
		result.Checks = append(result.Checks, check)
		if !check.Pass {
			result.AllPass = false
		}
	}

	add(c.checkCustomers(customers))
	add(c.checkTransactions(customers))
	add(c.checkSpan(customers))

	dropCheck, dropErrors, err := c.checkDropRate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check drop rate: %w", err)
	}
	add(dropCheck)
	result.Errors = append(result.Errors, dropErrors...)

	return result, nil
}

// checkCustomers: customers with at least one transaction >= MinCustomers.
func (c *SufficiencyChecker) checkCustomers(customers []domain.Customer) SufficiencyCheck {
	count := 0
	for i := range customers {
		if len(customers[i].Transactions) > 0 {
			count++
		}
	}
	return SufficiencyCheck{
		Name:      "Customers with transactions",
		Threshold: fmt.Sprintf(">= %d", c.thresholds.MinCustomers),
		Actual:    fmt.Sprintf("%d", count),
		Pass:      count >= c.thresholds.MinCustomers,
	}
}

// checkTransactions: total transactions >= MinTransactions.
func (c *SufficiencyChecker) checkTransactions(customers []domain.Customer) SufficiencyCheck {
	total := 0
	for i := range customers {
		total += len(customers[i].Transactions)
	}
	return SufficiencyCheck{
		Name:      "Total transactions",
		Threshold: fmt.Sprintf(">= %d", c.thresholds.MinTransactions),
		Actual:    fmt.Sprintf("%d", total),
		Pass:      total >= c.thresholds.MinTransactions,
	}
}

// checkSpan: days between the earliest and latest transaction >= MinSpanDays.
func (c *SufficiencyChecker) checkSpan(customers []domain.Customer) SufficiencyCheck {
	check := SufficiencyCheck{
		Name:      "Observation span",
		Threshold: fmt.Sprintf(">= %d days", c.thresholds.MinSpanDays),
	}

	first, last, ok := DateRange(customers)
	if !ok {
		check.Actual = "0 days (no transactions)"
		return check
	}

	days := features.DateRangeDays(first, last)
	check.Actual = fmt.Sprintf("%d days", days)
	check.Pass = days >= c.thresholds.MinSpanDays
	return check
}

// checkDropRate: records rejected by normalization / records read <= MaxDropRate.
// Data that was not ingested from a corpus has nothing to check and passes.
func (c *SufficiencyChecker) checkDropRate(ctx context.Context) (SufficiencyCheck, []string, error) {
	check := SufficiencyCheck{
		Name:      "Normalization drop rate",
		Threshold: fmt.Sprintf("<= %.1f%%", c.thresholds.MaxDropRate*100),
	}

	var progress []*storage.IngestionProgress
	if c.progressStore != nil {
		var err error
		progress, err = c.progressStore.List(ctx)
		if err != nil {
			return check, nil, err
		}
	}

	loaded, dropped := 0, 0
	var errors []string
	for _, p := range progress {
		loaded += p.Loaded
		dropped += p.Dropped
		if p.Dropped > 0 {
			errors = append(errors, fmt.Sprintf("corpus file %s: %d of %d records dropped",
				p.Source, p.Dropped, p.Loaded+p.Dropped))
		}
	}
	sort.Strings(errors)

	total := loaded + dropped
	if total == 0 {
		check.Actual = "0/0 (no corpus ingested)"
		check.Pass = true
		return check, nil, nil
	}

	rate := float64(dropped) / float64(total)
	check.Actual = fmt.Sprintf("%.1f%% (%d/%d)", rate*100, dropped, total)
	check.Pass = rate <= c.thresholds.MaxDropRate
	return check, errors, nil
}

// DateRange returns the earliest and latest transaction timestamps.
// ok is false when no customer has transactions.
func DateRange(customers []domain.Customer) (first, last time.Time, ok bool) {
	for i := range customers {
		for _, t := range customers[i].Transactions {
			if !ok || t.Timestamp.Before(first) {
				first = t.Timestamp
			}
			if !ok || t.Timestamp.After(last) {
				last = t.Timestamp
			}
			ok = true
		}
	}
	return first, last, ok
}
