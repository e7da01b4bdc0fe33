package trend

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Clusterer partitions the entities of one window into slope-similarity
// groups. Every input entity appears in exactly one returned cluster. Members
// are entity names, which ingestion keeps unique.
type Clusterer interface {
	Cluster(ctx context.Context, label string, slopes []domain.EntitySlope) ([]domain.Cluster, error)
}

// KMeans1D clusters scalar slopes with Lloyd's algorithm. Centroids start at
// evenly spaced quantiles of the distinct slope values, which keeps the
// result deterministic.
type KMeans1D struct {
	K       int
	MaxIter int
}

// NewKMeans1D constructs a KMeans1D with defaults for unset fields.
func NewKMeans1D(k int) KMeans1D {
	if k <= 0 {
		k = 4
	}
	return KMeans1D{K: k, MaxIter: 100}
}

// Cluster implements Clusterer. Clusters are ordered by descending centroid
// and named cluster-1, cluster-2, ...; members are sorted by name.
func (c KMeans1D) Cluster(ctx context.Context, label string, slopes []domain.EntitySlope) ([]domain.Cluster, error) {
	if len(slopes) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	centroids := initialCentroids(slopes, c.K)
	assign := make([]int, len(slopes))
	maxIter := c.MaxIter
	if maxIter <= 0 {
		maxIter = 100
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, s := range slopes {
			nearest := nearestCentroid(centroids, s.Slope)
			if iter == 0 || nearest != assign[i] {
				changed = true
			}
			assign[i] = nearest
		}
		if !changed {
			break
		}
		updateCentroids(centroids, slopes, assign)
	}

	return buildClusters(label, centroids, slopes, assign), nil
}

func initialCentroids(slopes []domain.EntitySlope, k int) []float64 {
	seen := make(map[float64]struct{}, len(slopes))
	distinct := make([]float64, 0, len(slopes))
	for _, s := range slopes {
		if _, ok := seen[s.Slope]; ok {
			continue
		}
		seen[s.Slope] = struct{}{}
		distinct = append(distinct, s.Slope)
	}
	sort.Float64s(distinct)

	k = min(max(k, 1), len(distinct))
	if k == 1 {
		return []float64{distinct[len(distinct)/2]}
	}

	centroids := make([]float64, k)
	for j := range centroids {
		idx := int(math.Round(float64(j) * float64(len(distinct)-1) / float64(k-1)))
		centroids[j] = distinct[idx]
	}
	return centroids
}

func nearestCentroid(centroids []float64, v float64) int {
	best := 0
	bestDist := math.Abs(v - centroids[0])
	for j := 1; j < len(centroids); j++ {
		if d := math.Abs(v - centroids[j]); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

// updateCentroids moves each centroid to the mean of its members. Centroids
// that lost all members keep their position.
func updateCentroids(centroids []float64, slopes []domain.EntitySlope, assign []int) {
	sums := make([]float64, len(centroids))
	counts := make([]int, len(centroids))
	for i, s := range slopes {
		sums[assign[i]] += s.Slope
		counts[assign[i]]++
	}
	for j := range centroids {
		if counts[j] > 0 {
			centroids[j] = sums[j] / float64(counts[j])
		}
	}
}

func buildClusters(label string, centroids []float64, slopes []domain.EntitySlope, assign []int) []domain.Cluster {
	members := make([][]string, len(centroids))
	for i, s := range slopes {
		members[assign[i]] = append(members[assign[i]], s.Entity)
	}

	var out []domain.Cluster
	for j, m := range members {
		if len(m) == 0 {
			continue
		}
		sort.Strings(m)
		out = append(out, domain.Cluster{Label: label, Centroid: centroids[j], Members: m})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Centroid > out[j].Centroid })
	for i := range out {
		out[i].Name = fmt.Sprintf("cluster-%d", i+1)
	}
	return out
}

// Analyze ranks and clusters every window label independently, in parallel,
// and returns the trends ordered by label.
func Analyze(ctx context.Context, slopes []domain.EntitySlope, k int, clusterer Clusterer, workers int) ([]domain.MonthlyTrend, error) {
	labels, groups := GroupByLabel(slopes)
	out := make([]domain.MonthlyTrend, len(labels))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(workers, 1))

	for i, label := range labels {
		eg.Go(func() error {
			top := TopK(groups[label], k)
			clusters, err := clusterer.Cluster(ctx, label, top)
			if err != nil {
				return fmt.Errorf("cluster %s: %w", label, err)
			}
			out[i] = domain.MonthlyTrend{Label: label, Top: top, Clusters: clusters}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
