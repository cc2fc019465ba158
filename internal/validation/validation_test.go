package validation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/fixtures"
	"customer-segment-lab/internal/logging"
	"customer-segment-lab/internal/segmentation"
)

func makeIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("c%03d", i)
	}
	return ids
}

func TestSplit(t *testing.T) {
	ids := makeIDs(10)

	split, err := Split(ids, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, split.Train, 8)
	assert.Len(t, split.Test, 2)

	all := append(append([]string{}, split.Train...), split.Test...)
	sort.Strings(all)
	assert.Equal(t, ids, all)

	again, _ := Split(ids, 0.2, 42)
	assert.Equal(t, split, again)
}

func TestSplit_InputOrderIrrelevant(t *testing.T) {
	ids := makeIDs(12)
	reversed := make([]string, len(ids))
	for i, id := range ids {
		reversed[len(ids)-1-i] = id
	}

	a, _ := Split(ids, 0.25, 9)
	b, _ := Split(reversed, 0.25, 9)
	assert.Equal(t, a, b)
}

func TestSplit_Errors(t *testing.T) {
	for _, frac := range []float64{0, 1, -0.1, 1.5} {
		_, err := Split(makeIDs(10), frac, 1)
		assert.ErrorIs(t, err, ErrInvalidFraction, "fraction %v", frac)
	}

	_, err := Split(makeIDs(5), 0.1, 1)
	var insufficient *domain.InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, MinPartitionSize, insufficient.Required)

	_, err = Split(makeIDs(3), 0.5, 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestFolds_FiftyCustomersFiveFolds(t *testing.T) {
	ids := makeIDs(50)

	folds, err := Folds(ids, 5, 7)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	seen := make(map[string]int)
	for _, f := range folds {
		assert.Len(t, f, 10)
		for _, id := range f {
			seen[id]++
		}
	}
	assert.Len(t, seen, 50)
	for id, n := range seen {
		assert.Equal(t, 1, n, "customer %s appears in %d folds", id, n)
	}
}

func TestFolds_RemainderGoesToLastFold(t *testing.T) {
	folds, err := Folds(makeIDs(11), 3, 1)
	require.NoError(t, err)
	assert.Len(t, folds[0], 3)
	assert.Len(t, folds[1], 3)
	assert.Len(t, folds[2], 5)
}

func TestFolds_Errors(t *testing.T) {
	_, err := Folds(makeIDs(10), 1, 1)
	assert.ErrorIs(t, err, ErrInvalidFolds)

	_, err = Folds(makeIDs(2), 3, 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestSplitCustomers_SkipsEmpty(t *testing.T) {
	customers := fixtures.Customers(10, 1)
	customers = append(customers, domain.Customer{ID: "empty"})

	train, test, err := SplitCustomers(customers, 0.3, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, len(train)+len(test))
	for _, c := range append(train, test...) {
		assert.NotEqual(t, "empty", c.ID)
	}
}

func newValidator(t *testing.T) (*CrossValidator, *test.Hook) {
	t.Helper()
	cfg := segmentation.DefaultConfig()
	cfg.KMeans.NInit = 2
	cfg.Workers = 4
	logger, hook := test.NewNullLogger()
	return NewCrossValidator(segmentation.NewEngine(cfg), logrus.NewEntry(logger)), hook
}

func TestCrossValidator_Run(t *testing.T) {
	cv, hook := newValidator(t)
	customers := fixtures.Customers(50, 5)

	result, err := cv.Run(context.Background(), customers, 5, 42)
	require.NoError(t, err)
	require.Len(t, result.Folds, 5)

	seen := make(map[string]bool)
	for i, f := range result.Folds {
		assert.Equal(t, i, f.Fold)
		assert.Equal(t, 40, f.TrainSize)
		assert.Equal(t, 10, f.TestSize)
		for _, id := range f.TestIDs {
			assert.False(t, seen[id], "customer %s held out twice", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, 50)

	inertia, ok := result.Summary[domain.MetricInertia]
	require.True(t, ok)
	assert.Equal(t, 5, inertia.Defined)
	assert.Contains(t, result.Summary, domain.MetricSilhouette)

	assert.Len(t, hook.AllEntries(), 5)
}

func TestCrossValidator_SkipsFailedFold(t *testing.T) {
	cfg := segmentation.DefaultConfig()
	cfg.KMeans.NInit = 1
	// Folds 0-3 train on 9 customers, the remainder fold on 8.
	cfg.FixedK = 9
	logger, hook := test.NewNullLogger()
	cv := NewCrossValidator(segmentation.NewEngine(cfg), logrus.NewEntry(logger))

	result, err := cv.Run(context.Background(), fixtures.Customers(11, 3), 5, 7)
	require.NoError(t, err)
	require.Len(t, result.Folds, 4)
	for i, f := range result.Folds {
		assert.Equal(t, i, f.Fold)
		assert.Equal(t, 9, f.TrainSize)
	}
	assert.Equal(t, 4, result.Summary[domain.MetricInertia].Defined)

	var skipped []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			skipped = append(skipped, e)
		}
	}
	require.Len(t, skipped, 1)
	assert.Equal(t, 4, skipped[0].Data["fold"])
	assert.ErrorIs(t, skipped[0].Data[logrus.ErrorKey].(error), domain.ErrInsufficientData)
}

func TestCrossValidator_AllFoldsFail(t *testing.T) {
	cfg := segmentation.DefaultConfig()
	cfg.FixedK = 50
	cv := NewCrossValidator(segmentation.NewEngine(cfg), logrus.NewEntry(logging.Discard()))

	result, err := cv.Run(context.Background(), fixtures.Customers(20, 1), 4, 1)
	assert.ErrorIs(t, err, ErrNoFoldCompleted)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
	assert.Nil(t, result)
}

func TestCrossValidator_Cancelled(t *testing.T) {
	cv, _ := newValidator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := cv.Run(ctx, fixtures.Customers(20, 1), 4, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}

func TestCrossValidator_InsufficientData(t *testing.T) {
	cv, _ := newValidator(t)
	_, err := cv.Run(context.Background(), fixtures.Customers(6, 1), 5, 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}
