// Package clustering implements seeded k-means, clustering quality metrics and
// cluster-count selection.
package clustering

import (
	"fmt"
	"math"
	"math/rand/v2"

	"customer-segment-lab/internal/domain"
)

// Options controls a k-means fit.
type Options struct {
	NInit   int     `yaml:"n_init"`   // restarts; the lowest-inertia run wins
	MaxIter int     `yaml:"max_iter"` // Lloyd iterations per restart
	Tol     float64 `yaml:"tol"`      // convergence threshold on total squared centroid shift
	Seed    uint64  `yaml:"seed"`
}

// DefaultOptions returns the standard fit options.
func DefaultOptions() Options {
	return Options{
		NInit:   10,
		MaxIter: 300,
		Tol:     1e-4,
		Seed:    42,
	}
}

// Result is the outcome of a k-means fit.
type Result struct {
	Centroids  [][]float64
	Labels     []int
	Inertia    float64
	Iterations int
}

// KMeans partitions points into k clusters. Identical inputs and options
// always yield identical results.
func KMeans(points [][]float64, k int, opts Options) (*Result, error) {
	n := len(points)
	if k < 1 {
		return nil, fmt.Errorf("kmeans: k must be positive, got %d", k)
	}
	if n < k {
		return nil, &domain.InsufficientDataError{Stage: "kmeans", Required: k, Actual: n}
	}
	if opts.NInit < 1 {
		opts.NInit = 1
	}
	if opts.MaxIter < 1 {
		opts.MaxIter = 1
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	var best *Result
	for run := 0; run < opts.NInit; run++ {
		centroids := initPlusPlus(points, k, rng)
		res := lloyd(points, centroids, opts)
		if best == nil || res.Inertia < best.Inertia {
			best = res
		}
	}
	return best, nil
}

// initPlusPlus picks k initial centroids with D^2 weighting.
func initPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.IntN(n)]))

	dist := make([]float64, n)
	for i, p := range points {
		dist[i] = SquaredDistance(p, centroids[0])
	}

	for len(centroids) < k {
		total := 0.0
		for _, d := range dist {
			total += d
		}

		next := rng.IntN(n)
		if total > 0 {
			target := rng.Float64() * total
			acc := 0.0
			for i, d := range dist {
				acc += d
				if acc >= target && d > 0 {
					next = i
					break
				}
			}
		}

		c := clone(points[next])
		centroids = append(centroids, c)
		for i, p := range points {
			if d := SquaredDistance(p, c); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centroids
}

// lloyd iterates assign-then-update from the given centroids.
func lloyd(points [][]float64, centroids [][]float64, opts Options) *Result {
	n, k := len(points), len(centroids)
	dim := len(points[0])
	labels := make([]int, n)
	dists := make([]float64, n)

	iter := 0
	for iter < opts.MaxIter {
		iter++
		for i, p := range points {
			labels[i], dists[i] = nearestSquared(centroids, p)
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, p := range points {
			counts[labels[i]]++
			for d, x := range p {
				sums[labels[i]][d] += x
			}
		}

		// Empty clusters take the point farthest from its current centroid.
		for c := 0; c < k; c++ {
			if counts[c] > 0 {
				continue
			}
			far := farthestPoint(dists, labels, counts)
			old := labels[far]
			counts[old]--
			for d, x := range points[far] {
				sums[old][d] -= x
			}
			labels[far] = c
			dists[far] = 0
			counts[c] = 1
			copy(sums[c], points[far])
		}

		shift := 0.0
		for c := 0; c < k; c++ {
			next := make([]float64, dim)
			for d := range next {
				next[d] = sums[c][d] / float64(counts[c])
			}
			shift += SquaredDistance(next, centroids[c])
			centroids[c] = next
		}
		if shift <= opts.Tol {
			break
		}
	}

	inertia := 0.0
	for i, p := range points {
		labels[i], dists[i] = nearestSquared(centroids, p)
		inertia += dists[i]
	}

	return &Result{
		Centroids:  centroids,
		Labels:     labels,
		Inertia:    inertia,
		Iterations: iter,
	}
}

// farthestPoint returns the index with the largest distance among points whose
// cluster can spare a member.
func farthestPoint(dists []float64, labels []int, counts []int) int {
	best, bestDist := -1, -1.0
	for i, d := range dists {
		if counts[labels[i]] <= 1 {
			continue
		}
		if d > bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

// nearestSquared returns the closest centroid and its squared distance.
// Ties resolve to the lowest index.
func nearestSquared(centroids [][]float64, p []float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := SquaredDistance(p, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

// SquaredDistance returns the squared Euclidean distance of two equal-length points.
func SquaredDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Distance returns the Euclidean distance of two equal-length points.
func Distance(a, b []float64) float64 {
	return math.Sqrt(SquaredDistance(a, b))
}

func clone(p []float64) []float64 {
	return append([]float64(nil), p...)
}
