package features

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"customer-segment-lab/internal/domain"
)

const tolerance = 1e-9

func tx(id string, ts time.Time, amount float64, category string, brands ...string) domain.Transaction {
	t := domain.Transaction{
		ID:          id,
		Timestamp:   ts,
		TotalAmount: amount,
		LineItems:   []domain.LineItem{{Name: id, Category: category, UnitPrice: amount, Quantity: 1}},
	}
	for _, b := range brands {
		a := amount / float64(len(brands))
		t.PaymentSplits = append(t.PaymentSplits, domain.PaymentSplit{InstrumentType: "CARD", InstrumentBrand: b, Amount: &a})
	}
	return t
}

// Wednesday.
var day = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

func threeTxCustomer() domain.Customer {
	return domain.Customer{
		ID: "c1",
		Transactions: []domain.Transaction{
			tx("t1", day.Add(9*time.Hour), 10, "food", "VISA"),
			tx("t2", day.Add(13*time.Hour), 30, "food", "VISA"),
			tx("t3", day.Add(20*time.Hour), 50, "electronics", "AMEX"),
		},
	}
}

func TestFitSchema_SortedVocabulary(t *testing.T) {
	customers := []domain.Customer{
		threeTxCustomer(),
		{ID: "c2", Transactions: []domain.Transaction{tx("t4", day, 5, "beauty", "PAYPAL", "VISA")}},
	}

	schema := FitSchema(customers)

	wantCats := []string{"beauty", "electronics", "food"}
	wantInst := []string{"AMEX", "PAYPAL", "VISA"}
	if len(schema.Categories) != len(wantCats) {
		t.Fatalf("expected categories %v, got %v", wantCats, schema.Categories)
	}
	for i := range wantCats {
		if schema.Categories[i] != wantCats[i] {
			t.Errorf("category %d: expected %s, got %s", i, wantCats[i], schema.Categories[i])
		}
	}
	for i := range wantInst {
		if schema.Instruments[i] != wantInst[i] {
			t.Errorf("instrument %d: expected %s, got %s", i, wantInst[i], schema.Instruments[i])
		}
	}
}

func TestExtract_ThreeTransactionsSameDay(t *testing.T) {
	c := threeTxCustomer()
	schema := FitSchema([]domain.Customer{c})
	v := Extract(&c, schema)

	if len(v) != schema.Dim() {
		t.Fatalf("expected length %d, got %d", schema.Dim(), len(v))
	}
	if v[domain.FeatureAvgAmount] != 30 {
		t.Errorf("expected avg 30, got %f", v[domain.FeatureAvgAmount])
	}
	if v[domain.FeatureMaxAmount] != 50 || v[domain.FeatureMinAmount] != 10 {
		t.Errorf("unexpected max/min %f/%f", v[domain.FeatureMaxAmount], v[domain.FeatureMinAmount])
	}
	if v[domain.FeatureStdAmount] <= 0 {
		t.Errorf("expected positive std, got %f", v[domain.FeatureStdAmount])
	}
	if v[domain.FeatureFrequency] != 3 {
		t.Errorf("expected frequency 3 over a zero-day range, got %f", v[domain.FeatureFrequency])
	}

	off := schema.CategoryOffset()
	electronics, food := v[off], v[off+1]
	if math.Abs(food-2.0/3) > tolerance || math.Abs(electronics-1.0/3) > tolerance {
		t.Errorf("expected food 0.667 electronics 0.333, got %f %f", food, electronics)
	}

	if v[domain.FeatureWeekendRatio] != 0 {
		t.Errorf("expected no weekend activity, got %f", v[domain.FeatureWeekendRatio])
	}
	for _, idx := range []int{domain.FeatureMorningRatio, domain.FeatureAfternoonRatio, domain.FeatureEveningRatio} {
		if math.Abs(v[idx]-1.0/3) > tolerance {
			t.Errorf("feature %d: expected 1/3, got %f", idx, v[idx])
		}
	}
}

func TestExtract_RatioGroupsSumToOne(t *testing.T) {
	customers := []domain.Customer{
		threeTxCustomer(),
		{ID: "c2", Transactions: []domain.Transaction{
			tx("a", day.AddDate(0, 0, 3).Add(7*time.Hour), 12, "beauty", "PAYPAL", "VISA"),
			tx("b", day.AddDate(0, 0, 10).Add(23*time.Hour), 80, "home"),
		}},
	}
	schema := FitSchema(customers)

	for i := range customers {
		v := Extract(&customers[i], schema)
		if len(v) != schema.Dim() {
			t.Fatalf("customer %s: length %d, want %d", customers[i].ID, len(v), schema.Dim())
		}
		timing := v[domain.FeatureMorningRatio] + v[domain.FeatureAfternoonRatio] + v[domain.FeatureEveningRatio]
		if math.Abs(timing-1) > tolerance {
			t.Errorf("customer %s: timing ratios sum to %f", customers[i].ID, timing)
		}
		checkGroup(t, customers[i].ID, v[schema.CategoryOffset():schema.InstrumentOffset()])
		checkGroup(t, customers[i].ID, v[schema.InstrumentOffset():])
	}
}

func checkGroup(t *testing.T, id string, group []float64) {
	t.Helper()
	sum := 0.0
	for _, x := range group {
		sum += x
	}
	if sum != 0 && math.Abs(sum-1) > tolerance {
		t.Errorf("customer %s: ratio group sums to %f", id, sum)
	}
}

func TestExtract_SingleTransactionDefaults(t *testing.T) {
	c := domain.Customer{ID: "c1", Transactions: []domain.Transaction{tx("t1", day.Add(10*time.Hour), 42, "food", "VISA")}}
	v := Extract(&c, FitSchema([]domain.Customer{c}))

	if v[domain.FeatureStdAmount] != 0 {
		t.Errorf("expected zero std, got %f", v[domain.FeatureStdAmount])
	}
	if v[domain.FeatureFrequency] != 1 {
		t.Errorf("expected frequency 1, got %f", v[domain.FeatureFrequency])
	}
	if v[domain.FeatureWeekendRatio] != 0.5 {
		t.Errorf("expected weekend default 0.5, got %f", v[domain.FeatureWeekendRatio])
	}
	if v[domain.FeatureMorningRatio] != 0.33 || v[domain.FeatureAfternoonRatio] != 0.33 || v[domain.FeatureEveningRatio] != 0.34 {
		t.Errorf("unexpected timing defaults %v", v[domain.FeatureMorningRatio:domain.FixedFeatureCount])
	}
}

func TestExtract_NoTransactions(t *testing.T) {
	c := domain.Customer{ID: "empty"}
	if v := Extract(&c, domain.FeatureSchema{}); v != nil {
		t.Errorf("expected nil vector, got %v", v)
	}
}

func TestExtract_IgnoresUnknownKeys(t *testing.T) {
	schema := domain.FeatureSchema{Categories: []string{"food"}, Instruments: []string{"VISA"}}
	c := domain.Customer{ID: "c1", Transactions: []domain.Transaction{
		tx("t1", day, 10, "food", "VISA"),
		tx("t2", day.Add(time.Hour), 20, "toys", "DISCOVER"),
	}}

	v := Extract(&c, schema)
	if len(v) != schema.Dim() {
		t.Fatalf("vector grew past schema: %d", len(v))
	}
	if v[schema.CategoryOffset()] != 1 {
		t.Errorf("expected food ratio 1 over known categories, got %f", v[schema.CategoryOffset()])
	}
	if v[schema.InstrumentOffset()] != 1 {
		t.Errorf("expected VISA ratio 1 over known instruments, got %f", v[schema.InstrumentOffset()])
	}
}

func TestExtract_NoMatchingActivityIsZero(t *testing.T) {
	schema := domain.FeatureSchema{Categories: []string{"food"}, Instruments: []string{"VISA"}}
	c := domain.Customer{ID: "c1", Transactions: []domain.Transaction{tx("t1", day, 10, "toys")}}

	v := Extract(&c, schema)
	if v[schema.CategoryOffset()] != 0 || v[schema.InstrumentOffset()] != 0 {
		t.Errorf("expected all-zero ratio groups, got %v", v[domain.FixedFeatureCount:])
	}
}

func TestExtractAll_SkipsEmptyAndKeepsOrder(t *testing.T) {
	customers := []domain.Customer{
		threeTxCustomer(),
		{ID: "empty"},
		{ID: "c3", Transactions: []domain.Transaction{tx("x", day, 1, "food")}},
	}
	schema := FitSchema(customers)

	vectors, err := ExtractAll(context.Background(), customers, schema, 2)
	if err != nil {
		t.Fatalf("ExtractAll failed: %v", err)
	}
	if len(vectors) != 2 || vectors[0].CustomerID != "c1" || vectors[1].CustomerID != "c3" {
		t.Errorf("unexpected vectors %+v", vectors)
	}
}

func TestExtractAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExtractAll(ctx, []domain.Customer{threeTxCustomer()}, domain.FeatureSchema{}, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTimeOfDay(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, domain.TimingEvening},
		{5, domain.TimingEvening},
		{6, domain.TimingMorning},
		{11, domain.TimingMorning},
		{12, domain.TimingAfternoon},
		{17, domain.TimingAfternoon},
		{18, domain.TimingEvening},
		{23, domain.TimingEvening},
	}
	for _, tt := range tests {
		if got := TimeOfDay(day.Add(time.Duration(tt.hour) * time.Hour)); got != tt.want {
			t.Errorf("hour %d: expected %s, got %s", tt.hour, tt.want, got)
		}
	}
}

func TestIsWeekend_UsesLocalCalendar(t *testing.T) {
	// Saturday 01:00 at +02:00 is Friday 23:00 UTC.
	loc := time.FixedZone("UTC+2", 2*3600)
	ts := time.Date(2024, 1, 6, 1, 0, 0, 0, loc)
	if !IsWeekend(ts) {
		t.Error("expected Saturday in local time to be weekend")
	}
	if IsWeekend(ts.UTC()) {
		t.Error("expected Friday in UTC not to be weekend")
	}
}
