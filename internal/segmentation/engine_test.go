package segmentation

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/fixtures"
)

var fixedTime = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	cfg := DefaultConfig()
	cfg.KMeans.NInit = 3
	cfg.Workers = 4
	return NewEngine(cfg).WithClock(func() time.Time { return fixedTime })
}

func TestEngine_Fit(t *testing.T) {
	customers := fixtures.Customers(40, 7)
	result, err := newTestEngine().Fit(context.Background(), customers)
	require.NoError(t, err)

	model := result.Model
	assert.GreaterOrEqual(t, model.K, 2)
	assert.LessOrEqual(t, model.K, 10)
	assert.Len(t, model.Centroids, model.K)
	assert.Len(t, model.ModelID, 64)
	assert.Equal(t, fixedTime, model.FittedAt)
	assert.Len(t, result.Assignments, 40)
	assert.NotEmpty(t, result.Trials)

	dim := model.Schema.Dim()
	for _, cv := range result.Vectors {
		assert.Len(t, cv.Vector, dim)
	}
	for _, a := range result.Assignments {
		assert.Equal(t, model.ModelID, a.ModelID)
		assert.True(t, a.ClusterID >= 0 && a.ClusterID < model.K)
	}
	require.NotNil(t, result.Quality.Silhouette)
	assert.Len(t, result.Quality.ClusterSizes, model.K)
}

func TestEngine_FitDeterministic(t *testing.T) {
	customers := fixtures.Customers(24, 3)

	a, err := newTestEngine().Fit(context.Background(), customers)
	require.NoError(t, err)
	b, err := newTestEngine().Fit(context.Background(), customers)
	require.NoError(t, err)

	assert.Equal(t, a.Model.ModelID, b.Model.ModelID)
	if !reflect.DeepEqual(a.Assignments, b.Assignments) {
		t.Error("assignments differ across identical fits")
	}
}

func TestEngine_FitFixedK(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FixedK = 3
	result, err := NewEngine(cfg).Fit(context.Background(), fixtures.Customers(12, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Model.K)
	assert.Empty(t, result.Trials)
}

func TestEngine_FitInsufficientData(t *testing.T) {
	customers := []domain.Customer{
		fixtures.Customers(1, 1)[0],
		{ID: "no_transactions"},
	}
	_, err := newTestEngine().Fit(context.Background(), customers)

	var insufficient *domain.InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, MinFitCustomers, insufficient.Required)
	assert.Equal(t, 1, insufficient.Actual)
}

func TestEngine_Evaluate(t *testing.T) {
	engine := newTestEngine()
	customers := fixtures.Customers(30, 11)
	fit, err := engine.Fit(context.Background(), customers[:24])
	require.NoError(t, err)

	assignments, quality, err := engine.Evaluate(context.Background(), fit.Model, customers[24:])
	require.NoError(t, err)
	assert.Len(t, assignments, 6)
	assert.Len(t, quality.ClusterSizes, fit.Model.K)

	total := 0
	for _, s := range quality.ClusterSizes {
		total += s
	}
	assert.Equal(t, 6, total)
}

func TestEngine_EvaluateErrors(t *testing.T) {
	engine := newTestEngine()
	_, _, err := engine.Evaluate(context.Background(), nil, fixtures.Customers(2, 1))
	assert.ErrorIs(t, err, domain.ErrModelNotFitted)

	model := &domain.ClusterModel{K: 2, Centroids: [][]float64{{0}, {1}}}
	_, _, err = engine.Evaluate(context.Background(), model, []domain.Customer{{ID: "empty"}})
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}
