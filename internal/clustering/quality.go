package clustering

import (
	"math"
	"sort"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/metrics"
)

// distinctLabels returns the sorted set of labels present.
func distinctLabels(labels []int) []int {
	seen := make(map[int]struct{})
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// labelMeans returns the mean point and member count of every present label.
func labelMeans(points [][]float64, labels []int) (map[int][]float64, map[int]int) {
	means := make(map[int][]float64)
	counts := make(map[int]int)
	for i, p := range points {
		l := labels[i]
		if means[l] == nil {
			means[l] = make([]float64, len(p))
		}
		for d, x := range p {
			means[l][d] += x
		}
		counts[l]++
	}
	for l, m := range means {
		for d := range m {
			m[d] /= float64(counts[l])
		}
	}
	return means, counts
}

// Silhouette returns the mean silhouette coefficient. Members of singleton
// clusters score 0. Undefined unless 2 <= labels present <= n-1.
func Silhouette(points [][]float64, labels []int) *float64 {
	n := len(points)
	present := distinctLabels(labels)
	if len(present) < 2 || len(present) > n-1 {
		return nil
	}

	counts := make(map[int]int, len(present))
	for _, l := range labels {
		counts[l]++
	}

	total := 0.0
	sums := make(map[int]float64, len(present))
	for i := range points {
		clear(sums)
		for j := range points {
			if i == j {
				continue
			}
			sums[labels[j]] += Distance(points[i], points[j])
		}

		own := labels[i]
		if counts[own] == 1 {
			continue
		}
		a := sums[own] / float64(counts[own]-1)
		b := math.Inf(1)
		for _, l := range present {
			if l == own {
				continue
			}
			if mean := sums[l] / float64(counts[l]); mean < b {
				b = mean
			}
		}
		if den := math.Max(a, b); den > 0 {
			total += (b - a) / den
		}
	}
	return metrics.Ptr(total / float64(n))
}

// CalinskiHarabasz returns the between/within dispersion ratio. A perfectly
// tight clustering (zero within dispersion) scores 1.
func CalinskiHarabasz(points [][]float64, labels []int) *float64 {
	n := len(points)
	present := distinctLabels(labels)
	nl := len(present)
	if nl < 2 || n <= nl {
		return nil
	}

	overall := make([]float64, len(points[0]))
	for _, p := range points {
		for d, x := range p {
			overall[d] += x
		}
	}
	for d := range overall {
		overall[d] /= float64(n)
	}

	means, counts := labelMeans(points, labels)
	between, within := 0.0, 0.0
	for _, l := range present {
		between += float64(counts[l]) * SquaredDistance(means[l], overall)
	}
	for i, p := range points {
		within += SquaredDistance(p, means[labels[i]])
	}

	if within == 0 {
		return metrics.Ptr(1.0)
	}
	return metrics.Ptr((between / float64(nl-1)) / (within / float64(n-nl)))
}

// DaviesBouldin returns the mean worst-case similarity ratio between clusters.
// Coincident cluster centers contribute 0.
func DaviesBouldin(points [][]float64, labels []int) *float64 {
	present := distinctLabels(labels)
	if len(present) < 2 {
		return nil
	}

	means, counts := labelMeans(points, labels)
	scatter := make(map[int]float64, len(present))
	for i, p := range points {
		scatter[labels[i]] += Distance(p, means[labels[i]])
	}
	for l := range scatter {
		scatter[l] /= float64(counts[l])
	}

	total := 0.0
	for _, i := range present {
		worst := 0.0
		for _, j := range present {
			if i == j {
				continue
			}
			d := Distance(means[i], means[j])
			if d == 0 {
				continue
			}
			if r := (scatter[i] + scatter[j]) / d; r > worst {
				worst = r
			}
		}
		total += worst
	}
	return metrics.Ptr(total / float64(len(present)))
}

// Inertia returns the sum of squared distances to the nearest given centroid.
func Inertia(points [][]float64, centroids [][]float64) float64 {
	total := 0.0
	for _, p := range points {
		_, d := nearestSquared(centroids, p)
		total += d
	}
	return total
}

// CentroidDistances returns the average and minimum pairwise centroid
// distance. Both are nil with fewer than two centroids.
func CentroidDistances(centroids [][]float64) (avg, minimum *float64) {
	if len(centroids) < 2 {
		return nil, nil
	}
	sum, lo, pairs := 0.0, math.Inf(1), 0
	for i := 0; i < len(centroids); i++ {
		for j := i + 1; j < len(centroids); j++ {
			d := Distance(centroids[i], centroids[j])
			sum += d
			lo = math.Min(lo, d)
			pairs++
		}
	}
	return metrics.Ptr(sum / float64(pairs)), metrics.Ptr(lo)
}

// Evaluate computes every quality metric for points labelled against the
// given centroids.
func Evaluate(points [][]float64, labels []int, centroids [][]float64) domain.QualityMetrics {
	sizes := make([]int, len(centroids))
	for _, l := range labels {
		if l >= 0 && l < len(sizes) {
			sizes[l]++
		}
	}
	avg, minimum := CentroidDistances(centroids)

	return domain.QualityMetrics{
		Silhouette:              Silhouette(points, labels),
		CalinskiHarabasz:        CalinskiHarabasz(points, labels),
		DaviesBouldin:           DaviesBouldin(points, labels),
		Inertia:                 Inertia(points, centroids),
		ClusterSizes:            sizes,
		AvgInterClusterDistance: avg,
		MinInterClusterDistance: minimum,
	}
}
