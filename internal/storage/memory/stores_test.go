package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/storage"
)

func amount(v float64) *float64 { return &v }

func testTx(id, customerID, merchantID string, ts time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:          id,
		CustomerID:  customerID,
		MerchantID:  merchantID,
		Timestamp:   ts,
		TotalAmount: 10,
		LineItems:   []domain.LineItem{{Name: "item", Category: "electronics", UnitPrice: 10, Quantity: 1}},
		PaymentSplits: []domain.PaymentSplit{
			{InstrumentType: "CARD", InstrumentBrand: "VISA", Amount: amount(10)},
		},
	}
}

func TestTransactionStore_InsertAndQuery(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	err := store.InsertBulk(ctx, []*domain.Transaction{
		testTx("t2", "c1", "amazon", base.Add(time.Hour)),
		testTx("t1", "c1", "amazon", base),
		testTx("t3", "c2", "target", base),
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByCustomerID(ctx, "c1")
	if err != nil {
		t.Fatalf("GetByCustomerID failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "t1" || got[1].ID != "t2" {
		t.Errorf("expected [t1 t2] ordered by time, got %v", got)
	}

	byMerchant, _ := store.GetByMerchantID(ctx, "target")
	if len(byMerchant) != 1 || byMerchant[0].ID != "t3" {
		t.Errorf("expected [t3], got %v", byMerchant)
	}

	ids, _ := store.ListCustomerIDs(ctx)
	if len(ids) != 2 || ids[0] != "c1" || ids[1] != "c2" {
		t.Errorf("expected [c1 c2], got %v", ids)
	}
}

func TestTransactionStore_DuplicateKey(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()
	now := time.Now()

	if err := store.InsertBulk(ctx, []*domain.Transaction{testTx("t1", "c1", "m", now)}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.Transaction{testTx("t2", "c1", "m", now), testTx("t1", "c1", "m", now)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	// Failed batch must not be partially applied.
	got, _ := store.GetAll(ctx)
	if len(got) != 1 {
		t.Errorf("expected 1 stored transaction, got %d", len(got))
	}

	err = store.InsertBulk(ctx, []*domain.Transaction{testTx("t9", "c1", "m", now), testTx("t9", "c1", "m", now)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected intra-batch ErrDuplicateKey, got %v", err)
	}
}

func TestTransactionStore_InvalidInput(t *testing.T) {
	store := NewTransactionStore()
	err := store.InsertBulk(context.Background(), []*domain.Transaction{{ID: "x"}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTransactionStore_ReturnsCopies(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()
	tx := testTx("t1", "c1", "m", time.Now())
	if err := store.InsertBulk(ctx, []*domain.Transaction{tx}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	*tx.PaymentSplits[0].Amount = 999
	got, _ := store.GetByCustomerID(ctx, "c1")
	got[0].LineItems[0].Name = "mutated"

	again, _ := store.GetByCustomerID(ctx, "c1")
	if *again[0].PaymentSplits[0].Amount != 10 {
		t.Errorf("stored split amount mutated: %v", *again[0].PaymentSplits[0].Amount)
	}
	if again[0].LineItems[0].Name != "item" {
		t.Errorf("stored line item mutated: %q", again[0].LineItems[0].Name)
	}
}

func TestLoadCustomers(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = store.InsertBulk(ctx, []*domain.Transaction{
		testTx("b1", "bob", "m", base),
		testTx("a2", "alice", "m", base.Add(time.Hour)),
		testTx("a1", "alice", "m", base),
	})

	customers, err := storage.LoadCustomers(ctx, store)
	if err != nil {
		t.Fatalf("LoadCustomers failed: %v", err)
	}
	if len(customers) != 2 || customers[0].ID != "alice" || customers[1].ID != "bob" {
		t.Fatalf("unexpected customers %v", customers)
	}
	if customers[0].Transactions[0].ID != "a1" {
		t.Errorf("expected transactions sorted by time, got %s first", customers[0].Transactions[0].ID)
	}
}

func TestModelStore_InsertGetLatest(t *testing.T) {
	store := NewModelStore()
	ctx := context.Background()

	if _, err := store.GetLatest(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on empty store, got %v", err)
	}

	older := &domain.ClusterModel{ModelID: "m1", K: 2, FittedAt: time.Unix(100, 0), Centroids: [][]float64{{1}, {2}}}
	newer := &domain.ClusterModel{ModelID: "m2", K: 3, FittedAt: time.Unix(200, 0)}

	if err := store.Insert(ctx, newer); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Insert(ctx, older); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Insert(ctx, older); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	latest, err := store.GetLatest(ctx)
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if latest.ModelID != "m2" {
		t.Errorf("expected m2 as latest, got %s", latest.ModelID)
	}

	got, _ := store.GetByID(ctx, "m1")
	got.Centroids[0][0] = 42
	again, _ := store.GetByID(ctx, "m1")
	if again.Centroids[0][0] != 1 {
		t.Error("stored centroids mutated through returned copy")
	}
}

func TestAssignmentStore(t *testing.T) {
	store := NewAssignmentStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.ClusterAssignment{
		{ModelID: "m1", CustomerID: "c2", ClusterID: 1},
		{ModelID: "m1", CustomerID: "c1", ClusterID: 0},
		{ModelID: "m2", CustomerID: "c1", ClusterID: 1},
	})
	if err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	got, _ := store.GetByModelID(ctx, "m1")
	if len(got) != 2 || got[0].CustomerID != "c1" {
		t.Errorf("unexpected assignments %v", got)
	}

	a, err := store.GetByCustomer(ctx, "m2", "c1")
	if err != nil || a.ClusterID != 1 {
		t.Errorf("unexpected assignment %v, err %v", a, err)
	}
	if _, err := store.GetByCustomer(ctx, "m2", "nobody"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	err = store.InsertBulk(ctx, []*domain.ClusterAssignment{{ModelID: "m1", CustomerID: "c1"}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestClusterProfileStore(t *testing.T) {
	store := NewClusterProfileStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.ClusterProfile{
		{ModelID: "m1", ClusterID: 1, Size: 3, CategoryDistribution: map[string]float64{"home": 1}},
		{ModelID: "m1", ClusterID: 0, Size: 5},
	})
	if err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	got, _ := store.GetByModelID(ctx, "m1")
	if len(got) != 2 || got[0].ClusterID != 0 || got[1].Size != 3 {
		t.Errorf("unexpected profiles %v", got)
	}

	got[1].CategoryDistribution["home"] = 0
	again, _ := store.GetByModelID(ctx, "m1")
	if again[1].CategoryDistribution["home"] != 1 {
		t.Error("stored distribution mutated through returned copy")
	}

	err = store.InsertBulk(ctx, []*domain.ClusterProfile{{ModelID: "m1", ClusterID: 0}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestQualityReportStore(t *testing.T) {
	store := NewQualityReportStore()
	ctx := context.Background()
	sil := 0.4

	err := store.InsertBulk(ctx, []*domain.QualityReport{
		{RunID: "r1", Fold: 1, K: 3, Metrics: domain.QualityMetrics{Silhouette: &sil}},
		{RunID: "r1", Fold: -1, K: 3},
		{RunID: "r2", Fold: 0, K: 2},
	})
	if err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	got, _ := store.GetByRunID(ctx, "r1")
	if len(got) != 2 || got[0].Fold != -1 || got[1].Fold != 1 {
		t.Errorf("unexpected reports %v", got)
	}
	if got[1].Metrics.Silhouette == nil || *got[1].Metrics.Silhouette != 0.4 {
		t.Error("expected silhouette to round trip")
	}

	err = store.InsertBulk(ctx, []*domain.QualityReport{{RunID: "r1", Fold: 1}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestIngestionProgressStore(t *testing.T) {
	store := NewIngestionProgressStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "a.json"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := store.Mark(ctx, &storage.IngestionProgress{Source: "b.json", Loaded: 3}); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if err := store.Mark(ctx, &storage.IngestionProgress{Source: "a.json", Loaded: 1}); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if err := store.Mark(ctx, &storage.IngestionProgress{Source: "a.json"}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	list, _ := store.List(ctx)
	if len(list) != 2 || list[0].Source != "a.json" {
		t.Errorf("unexpected list %v", list)
	}
	if _, err := store.Get(ctx, ""); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
