package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customer-segment-lab/internal/logging"
	"customer-segment-lab/internal/normalization"
	"customer-segment-lab/internal/storage/memory"
)

var loadTime = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func record(id, datetime string, total float64) string {
	return fmt.Sprintf(`{
		"id": %q,
		"datetime": %q,
		"url": "https://www.amazon.com/dp/%s",
		"order_status": "delivered",
		"payment_methods": [{"type": "card", "brand": "visa", "last_four": "4242", "transaction_amount": %.2f}],
		"price": {"sub_total": %.2f, "total": %.2f, "currency": "usd"},
		"products": [{"name": "Phone Case", "quantity": 1, "price": {"unit_price": %.2f, "sub_total": %.2f, "total": %.2f}}]
	}`, id, datetime, id, total, total, total, total, total, total)
}

func document(customerID string, records ...string) []byte {
	body := fmt.Sprintf(`{"customer_id": %q, "customer_type": "retail", "transactions": [`, customerID)
	for i, r := range records {
		if i > 0 {
			body += ","
		}
		body += r
	}
	return []byte(body + "]}")
}

type loaderFixture struct {
	txStore       *memory.TransactionStore
	progressStore *memory.IngestionProgressStore
}

func newLoader(source CorpusSource) (*Loader, loaderFixture) {
	f := loaderFixture{
		txStore:       memory.NewTransactionStore(),
		progressStore: memory.NewIngestionProgressStore(),
	}
	log := logging.Component(logging.Discard(), "test")
	runner := normalization.NewRunner(normalization.NewNormalizer(nil, log), f.txStore)
	return NewLoader(LoaderOptions{
		Source:        source,
		Runner:        runner,
		ProgressStore: f.progressStore,
		Workers:       2,
		Logger:        log,
		Clock:         func() time.Time { return loadTime },
	}), f
}

func testCorpus() MemorySource {
	return MemorySource{
		"cust_a.json": document("alice",
			record("a1", "2024-03-01T10:00:00", 25),
			record("a2", "2024-03-05T18:30:00", 40.5),
			`{"id": "a3", "datetime": "not a date", "price": {"total": 10}}`,
		),
		"cust_b.json": document("", record("b1", "2024-03-02 09:15:00", 12)),
		"broken.json": []byte(`{"customer_id": `),
	}
}

func TestLoader_Load(t *testing.T) {
	ctx := context.Background()
	loader, f := newLoader(testCorpus())

	result, err := loader.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Loaded)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 3, result.Stats.Accepted)
	assert.Equal(t, 1, result.Stats.Dropped)
	assert.Equal(t, 1, result.Stats.DropReasons[normalization.DropInvalidDatetime])
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "broken.json: decode")

	// Files are reported in source order
	require.Len(t, result.Files, 3)
	assert.Equal(t, "broken.json", result.Files[0].Source)
	assert.Equal(t, OutcomeFailed, result.Files[0].Outcome)
	assert.Equal(t, "alice", result.Files[1].CustomerID)
	assert.Equal(t, "cust_b", result.Files[2].CustomerID, "customer id falls back to the file name")

	alice, err := f.txStore.GetByCustomerID(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, "a1", alice[0].ID)
	assert.Equal(t, "amazon", alice[0].MerchantID)

	progress, err := f.progressStore.List(ctx)
	require.NoError(t, err)
	require.Len(t, progress, 2)
	assert.Equal(t, "cust_a.json", progress[0].Source)
	assert.Equal(t, 2, progress[0].Loaded)
	assert.Equal(t, 1, progress[0].Dropped)
	assert.Len(t, progress[0].Checksum, 64)
	assert.Equal(t, loadTime, progress[0].LoadedAt)
}

func TestLoader_RerunSkipsIngestedFiles(t *testing.T) {
	ctx := context.Background()
	corpus := testCorpus()
	loader, f := newLoader(corpus)

	_, err := loader.Load(ctx)
	require.NoError(t, err)

	again, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Loaded)
	assert.Equal(t, 2, again.Skipped)
	assert.Equal(t, 1, again.Failed)
	assert.Zero(t, again.Stats.Accepted)

	all, err := f.txStore.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// A changed file is refused instead of double-loaded
	corpus["cust_b.json"] = document("", record("b1", "2024-03-02 09:15:00", 13))
	changed, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, changed.Failed)
	assert.True(t, errors.Is(changed.Files[2].Err, ErrChecksumMismatch))
}

func TestLoader_CancelledContext(t *testing.T) {
	loader, _ := newLoader(testCorpus())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDirSource(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "batch2"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "z.json"), document("z"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "batch2", "a.JSON"), document("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0644))

	src := NewDirSource(dir)
	names, err := src.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"batch2/a.JSON", "z.json"}, names)

	data, err := src.Read(ctx, "batch2/a.JSON")
	require.NoError(t, err)
	assert.Equal(t, document("a"), data)

	_, err = src.Read(ctx, "missing.json")
	assert.ErrorIs(t, err, ErrSourceNotFound)

	_, err = NewDirSource(filepath.Join(dir, "nope")).List(ctx)
	assert.Error(t, err)
}

func TestCustomerFromName(t *testing.T) {
	assert.Equal(t, "cust_42", customerFromName("a/b/cust_42.json"))
	assert.Equal(t, "x", customerFromName("x.JSON"))
}
