package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/storage"
)

var base = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func testTransaction(id, customerID, merchantID string, ts time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:          id,
		CustomerID:  customerID,
		Timestamp:   ts,
		MerchantID:  merchantID,
		URL:         "https://www." + merchantID + ".com/orders/" + id,
		OrderStatus: domain.OrderStatusDelivered,
		TotalAmount: 42.5,
		SubTotal:    40,
		Currency:    "USD",
		LineItems: []domain.LineItem{
			{Name: "USB Cable", Category: "electronics", UnitPrice: 20, Quantity: 2},
		},
		PaymentSplits: []domain.PaymentSplit{
			{InstrumentType: "CARD", InstrumentBrand: "VISA", LastFour: "4242", Amount: amount(42.5)},
			{InstrumentType: "GIFT_CARD", InstrumentBrand: "GIFT_CARD"},
		},
	}
}

func TestTransactionStore_InsertAndQuery(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTransactionStore(pool)

	eastern := time.FixedZone("", -5*3600)
	txs := []*domain.Transaction{
		testTransaction("t3", "bob", "amazon", base.Add(2*time.Hour)),
		testTransaction("t1", "alice", "amazon", base.In(eastern)),
		testTransaction("t2", "alice", "target", base.Add(time.Hour)),
	}
	require.NoError(t, store.InsertBulk(ctx, txs))

	alice, err := store.GetByCustomerID(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, "t1", alice[0].ID)
	assert.Equal(t, "t2", alice[1].ID)

	// Wall clock and offset survive the round trip
	assert.True(t, alice[0].Timestamp.Equal(base))
	assert.Equal(t, 4, alice[0].Timestamp.Hour())
	_, offset := alice[0].Timestamp.Zone()
	assert.Equal(t, -5*3600, offset)

	assert.Equal(t, domain.OrderStatusDelivered, alice[0].OrderStatus)
	require.Len(t, alice[0].LineItems, 1)
	assert.Equal(t, "electronics", alice[0].LineItems[0].Category)
	require.Len(t, alice[0].PaymentSplits, 2)
	require.NotNil(t, alice[0].PaymentSplits[0].Amount)
	assert.Equal(t, 42.5, *alice[0].PaymentSplits[0].Amount)
	assert.Nil(t, alice[0].PaymentSplits[1].Amount)

	amazon, err := store.GetByMerchantID(ctx, "amazon")
	require.NoError(t, err)
	require.Len(t, amazon, 2)
	assert.Equal(t, "alice", amazon[0].CustomerID)
	assert.Equal(t, "bob", amazon[1].CustomerID)

	ids, err := store.ListCustomerIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, ids)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"t1", "t2", "t3"}, []string{all[0].ID, all[1].ID, all[2].ID})

	none, err := store.GetByCustomerID(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTransactionStore_DuplicateRejectsBatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTransactionStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.Transaction{testTransaction("t1", "alice", "amazon", base)}))

	err := store.InsertBulk(ctx, []*domain.Transaction{
		testTransaction("t2", "alice", "amazon", base.Add(time.Hour)),
		testTransaction("t1", "alice", "amazon", base),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "failed batch must not be partially applied")

	err = store.InsertBulk(ctx, []*domain.Transaction{{ID: "x"}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestModelStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewModelStore(pool)

	_, err := store.GetLatest(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	older := &domain.ClusterModel{
		ModelID:   "m-old",
		K:         2,
		Centroids: [][]float64{{0, 1}, {1, 0}},
		Scaler:    domain.ScalerState{Center: []float64{0, 0}, Scale: []float64{1, 1}},
		Schema:    domain.FeatureSchema{Categories: []string{"dining"}, Instruments: []string{"VISA"}},
		Seed:      42,
		Inertia:   3.5,
		FittedAt:  base,
	}
	newer := *older
	newer.ModelID = "m-new"
	newer.K = 3
	newer.FittedAt = base.Add(time.Hour)

	require.NoError(t, store.Insert(ctx, &newer))
	require.NoError(t, store.Insert(ctx, older))
	assert.ErrorIs(t, store.Insert(ctx, older), storage.ErrDuplicateKey)

	got, err := store.GetByID(ctx, "m-old")
	require.NoError(t, err)
	assert.Equal(t, older.Centroids, got.Centroids)
	assert.Equal(t, older.Schema, got.Schema)
	assert.Equal(t, uint64(42), got.Seed)
	assert.True(t, got.FittedAt.Equal(base))

	latest, err := store.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "m-new", latest.ModelID)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAssignmentStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, NewModelStore(pool).Insert(ctx, &domain.ClusterModel{ModelID: "m1", K: 2, FittedAt: base}))

	store := NewAssignmentStore(pool)
	require.NoError(t, store.InsertBulk(ctx, []*domain.ClusterAssignment{
		{ModelID: "m1", CustomerID: "carol", ClusterID: 1, Distance: 0.5},
		{ModelID: "m1", CustomerID: "alice", ClusterID: 0, Distance: 1.25},
	}))

	all, err := store.GetByModelID(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alice", all[0].CustomerID)
	assert.Equal(t, 1.25, all[0].Distance)

	one, err := store.GetByCustomer(ctx, "m1", "carol")
	require.NoError(t, err)
	assert.Equal(t, 1, one.ClusterID)

	_, err = store.GetByCustomer(ctx, "m1", "dave")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.InsertBulk(ctx, []*domain.ClusterAssignment{{ModelID: "m1", CustomerID: "alice"}})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestIngestionProgressStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewIngestionProgressStore(pool)

	_, err := store.Get(ctx, "b.json")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	for _, src := range []string{"b.json", "a.json"} {
		require.NoError(t, store.Mark(ctx, &storage.IngestionProgress{
			Source:     src,
			Checksum:   "abc123",
			CustomerID: "cust",
			Loaded:     10,
			Dropped:    1,
			LoadedAt:   base,
		}))
	}
	assert.ErrorIs(t, store.Mark(ctx, &storage.IngestionProgress{Source: "a.json"}), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.Mark(ctx, &storage.IngestionProgress{}), storage.ErrInvalidInput)

	got, err := store.Get(ctx, "b.json")
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.Checksum)
	assert.Equal(t, 1, got.Dropped)
	assert.True(t, got.LoadedAt.Equal(base))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a.json", list[0].Source)
}
