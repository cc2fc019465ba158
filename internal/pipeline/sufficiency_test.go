package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/fixtures"
	"customer-segment-lab/internal/storage"
	"customer-segment-lab/internal/storage/memory"
)

func TestSufficiencyChecker_AllPass(t *testing.T) {
	ctx := context.Background()
	txStore := memory.NewTransactionStore()
	if err := fixtures.Load(ctx, txStore, fixtures.Customers(40, 1)); err != nil {
		t.Fatalf("Failed to load fixtures: %v", err)
	}

	checker := NewSufficiencyChecker(txStore, memory.NewIngestionProgressStore(), DefaultThresholds())
	result, err := checker.Check(ctx)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if !result.AllPass {
		for _, c := range result.Checks {
			t.Logf("%s: threshold %s, actual %s, pass %v", c.Name, c.Threshold, c.Actual, c.Pass)
		}
		t.Fatal("expected all checks to pass")
	}
	if len(result.Checks) != 4 {
		t.Errorf("expected 4 checks, got %d", len(result.Checks))
	}
	if result.Checks[0].Actual != "40" {
		t.Errorf("customers actual = %s, want 40", result.Checks[0].Actual)
	}
	if got := result.Checks[3].Actual; got != "0/0 (no corpus ingested)" {
		t.Errorf("drop rate actual = %q", got)
	}
	if len(result.Errors) != 0 {
		t.Errorf("expected no integrity errors, got %v", result.Errors)
	}
}

func TestSufficiencyChecker_Failures(t *testing.T) {
	ctx := context.Background()
	txStore := memory.NewTransactionStore()

	day := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	var batch []*domain.Transaction
	for i, id := range []string{"a", "b", "c"} {
		batch = append(batch, &domain.Transaction{
			ID:          id + "_1",
			CustomerID:  id,
			Timestamp:   day.Add(time.Duration(i) * time.Hour),
			TotalAmount: 10,
		})
	}
	if err := txStore.InsertBulk(ctx, batch); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	checker := NewSufficiencyChecker(txStore, nil, DefaultThresholds())
	result, err := checker.Check(ctx)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if result.AllPass {
		t.Fatal("expected checks to fail")
	}

	want := map[string]struct {
		actual string
		pass   bool
	}{
		"Customers with transactions": {"3", false},
		"Total transactions":          {"3", false},
		"Observation span":            {"0 days", false},
		"Normalization drop rate":     {"0/0 (no corpus ingested)", true},
	}
	for _, c := range result.Checks {
		w, ok := want[c.Name]
		if !ok {
			t.Errorf("unexpected check %q", c.Name)
			continue
		}
		if c.Actual != w.actual || c.Pass != w.pass {
			t.Errorf("%s = (%s, %v), want (%s, %v)", c.Name, c.Actual, c.Pass, w.actual, w.pass)
		}
	}
}

func TestSufficiencyChecker_EmptyStore(t *testing.T) {
	checker := NewSufficiencyChecker(memory.NewTransactionStore(), nil, DefaultThresholds())
	result, err := checker.Check(context.Background())
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if result.AllPass {
		t.Error("empty store should not pass")
	}
	if result.Checks[2].Actual != "0 days (no transactions)" {
		t.Errorf("span actual = %q", result.Checks[2].Actual)
	}
}

func TestSufficiencyChecker_DropRate(t *testing.T) {
	ctx := context.Background()
	txStore := memory.NewTransactionStore()
	if err := fixtures.Load(ctx, txStore, fixtures.Customers(40, 1)); err != nil {
		t.Fatalf("Failed to load fixtures: %v", err)
	}

	progress := memory.NewIngestionProgressStore()
	for _, p := range []*storage.IngestionProgress{
		{Source: "b.json", Checksum: "c2", CustomerID: "b", Loaded: 40, Dropped: 8},
		{Source: "a.json", Checksum: "c1", CustomerID: "a", Loaded: 50, Dropped: 2},
		{Source: "c.json", Checksum: "c3", CustomerID: "c", Loaded: 0, Dropped: 0},
	} {
		if err := progress.Mark(ctx, p); err != nil {
			t.Fatalf("Mark failed: %v", err)
		}
	}

	result, err := NewSufficiencyChecker(txStore, progress, DefaultThresholds()).Check(ctx)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	drop := result.Checks[3]
	if drop.Pass {
		t.Error("10% drop rate should fail a 5% threshold")
	}
	if drop.Actual != "10.0% (10/100)" {
		t.Errorf("drop actual = %q, want 10.0%% (10/100)", drop.Actual)
	}
	if drop.Threshold != "<= 5.0%" {
		t.Errorf("drop threshold = %q", drop.Threshold)
	}

	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 integrity errors, got %v", result.Errors)
	}
	if !strings.HasPrefix(result.Errors[0], "corpus file a.json: 2 of 52") {
		t.Errorf("errors not sorted by source: %v", result.Errors)
	}

	// Raising the threshold lets the same corpus pass
	lenient := DefaultThresholds()
	lenient.MaxDropRate = 0.2
	result, err = NewSufficiencyChecker(txStore, progress, lenient).Check(ctx)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !result.AllPass {
		t.Error("expected all checks to pass with lenient drop threshold")
	}
}

func TestDateRange(t *testing.T) {
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	customers := []domain.Customer{
		{ID: "empty"},
		{ID: "a", Transactions: []domain.Transaction{{Timestamp: base.AddDate(0, 0, 5)}, {Timestamp: base}}},
		{ID: "b", Transactions: []domain.Transaction{{Timestamp: base.AddDate(0, 1, 0)}}},
	}

	first, last, ok := DateRange(customers)
	if !ok {
		t.Fatal("expected ok")
	}
	if !first.Equal(base) || !last.Equal(base.AddDate(0, 1, 0)) {
		t.Errorf("DateRange = %v..%v", first, last)
	}

	if _, _, ok := DateRange([]domain.Customer{{ID: "empty"}}); ok {
		t.Error("expected !ok without transactions")
	}
}
