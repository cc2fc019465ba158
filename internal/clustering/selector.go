package clustering

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/metrics"
)

// MinTrialPopulation is the smallest population for which trials run.
// Smaller populations always select k = 2.
const MinTrialPopulation = 4

// SelectionWeights weight the normalized trial metrics in the composite score.
type SelectionWeights struct {
	Silhouette       float64 `yaml:"silhouette"`
	CalinskiHarabasz float64 `yaml:"calinski_harabasz"`
	DaviesBouldin    float64 `yaml:"davies_bouldin"`
	Inertia          float64 `yaml:"inertia"`
}

// SelectionConfig controls cluster-count selection.
type SelectionConfig struct {
	Weights         SelectionWeights `yaml:"weights"`
	SmallCap        int              `yaml:"small_cap"` // max k for populations below LargePopulation
	LargeCap        int              `yaml:"large_cap"`
	LargePopulation int              `yaml:"large_population"`
	Workers         int              `yaml:"-"` // parallel trials; 0 means unbounded
	KMeans          Options          `yaml:"-"`
}

// DefaultSelectionConfig returns the standard selection parameters.
func DefaultSelectionConfig() SelectionConfig {
	return SelectionConfig{
		Weights: SelectionWeights{
			Silhouette:       0.4,
			CalinskiHarabasz: 0.3,
			DaviesBouldin:    0.2,
			Inertia:          0.1,
		},
		SmallCap:        10,
		LargeCap:        50,
		LargePopulation: 100,
		KMeans:          DefaultOptions(),
	}
}

// MaxK returns the largest k trialed for n points.
func (c SelectionConfig) MaxK(n int) int {
	limit := c.LargeCap
	if n < c.LargePopulation {
		limit = c.SmallCap
	}
	return max(2, min(limit, n/2))
}

// SelectK trials k in [2, MaxK(n)] and returns the k with the highest
// composite score, ties going to the smallest k. Trials whose clustering
// collapses to a single label are skipped.
func SelectK(ctx context.Context, points [][]float64, cfg SelectionConfig) (int, []domain.SelectionTrial, error) {
	n := len(points)
	if n < 2 {
		return 0, nil, &domain.InsufficientDataError{Stage: "cluster-count selection", Required: 2, Actual: n}
	}
	if n < MinTrialPopulation {
		return 2, nil, nil
	}

	maxK := cfg.MaxK(n)
	slots := make([]*domain.SelectionTrial, maxK+1)

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for k := 2; k <= maxK; k++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			trial, err := runTrial(points, k, cfg.KMeans)
			if err != nil {
				return fmt.Errorf("trial k=%d: %w", k, err)
			}
			slots[k] = trial
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, nil, err
	}

	trials := make([]domain.SelectionTrial, 0, maxK-1)
	for _, t := range slots {
		if t != nil {
			trials = append(trials, *t)
		}
	}
	if len(trials) == 0 {
		return 2, nil, nil
	}

	scoreTrials(trials, cfg.Weights)

	best := 0
	for i := 1; i < len(trials); i++ {
		if trials[i].Composite > trials[best].Composite {
			best = i
		}
	}
	return trials[best].K, trials, nil
}

// runTrial fits one candidate k. It returns nil when the fit degenerates to
// a single label.
func runTrial(points [][]float64, k int, opts Options) (*domain.SelectionTrial, error) {
	res, err := KMeans(points, k, opts)
	if err != nil {
		return nil, err
	}
	sil := Silhouette(points, res.Labels)
	ch := CalinskiHarabasz(points, res.Labels)
	db := DaviesBouldin(points, res.Labels)
	if sil == nil || ch == nil || db == nil {
		return nil, nil
	}
	return &domain.SelectionTrial{
		K:                k,
		Silhouette:       *sil,
		CalinskiHarabasz: *ch,
		DaviesBouldin:    *db,
		Inertia:          res.Inertia,
	}, nil
}

// scoreTrials fills Composite from min-max normalized metrics. Davies-Bouldin
// and inertia are inverted so higher is better throughout.
func scoreTrials(trials []domain.SelectionTrial, w SelectionWeights) {
	sil := make([]float64, len(trials))
	ch := make([]float64, len(trials))
	db := make([]float64, len(trials))
	inertia := make([]float64, len(trials))
	for i, t := range trials {
		sil[i] = t.Silhouette
		ch[i] = t.CalinskiHarabasz
		db[i] = t.DaviesBouldin
		inertia[i] = t.Inertia
	}

	sil = metrics.MinMaxNormalize(sil)
	ch = metrics.MinMaxNormalize(ch)
	db = metrics.MinMaxNormalize(db)
	inertia = metrics.MinMaxNormalize(inertia)

	for i := range trials {
		trials[i].Composite = w.Silhouette*sil[i] +
			w.CalinskiHarabasz*ch[i] +
			w.DaviesBouldin*(1-db[i]) +
			w.Inertia*(1-inertia[i])
	}
}
