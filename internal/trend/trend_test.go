package trend

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slopesOf(pairs ...any) []domain.EntitySlope {
	var out []domain.EntitySlope
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, domain.EntitySlope{Entity: pairs[i].(string), Label: "2020-04", Slope: pairs[i+1].(float64)})
	}
	return out
}

// --- Slope ---

func TestSlope_Line(t *testing.T) {
	assert.InDelta(t, 2, Slope([]float64{1, 3, 5, 7}), 1e-12)
	assert.InDelta(t, -0.5, Slope([]float64{10, 9.5, 9, 8.5, 8}), 1e-12)
	assert.InDelta(t, 0, Slope([]float64{4, 4, 4}), 1e-12)
}

func TestSlope_Noisy(t *testing.T) {
	// y = [10, 5, 0, 7]: sxy = -1.5*4.5 + -0.5*-0.5 + 0.5*-5.5 + 1.5*1.5 = -7, sxx = 5.
	assert.InDelta(t, -1.4, Slope([]float64{10, 5, 0, 7}), 1e-12)
}

func TestSlope_DegenerateIsZero(t *testing.T) {
	assert.Zero(t, Slope([]float64{42}))
	assert.Zero(t, Slope(nil))
}

func TestEstimateAll(t *testing.T) {
	entities := []domain.EntityWindows{
		{Entity: "A", Windows: []domain.Window{
			{Label: "2020-03", Values: []float64{1, 2, 3}},
			{Label: "2020-04", Values: []float64{3, 2, 1}},
		}},
		{Entity: "B", Windows: []domain.Window{
			{Label: "2020-03", Values: []float64{5}},
		}},
	}

	out, err := EstimateAll(context.Background(), entities, 2)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, domain.EntitySlope{Entity: "A", Label: "2020-03", Slope: 1, Values: []float64{1, 2, 3}}, out[0])
	assert.InDelta(t, -1, out[1].Slope, 1e-12)
	assert.Equal(t, "B", out[2].Entity)
	assert.Zero(t, out[2].Slope)
}

// --- TopK ---

func TestTopK_SortsDescendingAndTruncates(t *testing.T) {
	in := slopesOf("a", 1.0, "b", 5.0, "c", 3.0, "d", -2.0)

	top := TopK(in, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].Entity)
	assert.Equal(t, "c", top[1].Entity)
	assert.Equal(t, "a", in[0].Entity, "input untouched")
}

func TestTopK_TieBreakByEntity(t *testing.T) {
	top := TopK(slopesOf("zeta", 2.0, "alpha", 2.0, "mid", 2.0, "low", 1.0), 10)

	names := make([]string, len(top))
	for i, s := range top {
		names[i] = s.Entity
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta", "low"}, names)
}

func TestTopK_Bounds(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for _, n := range []int{0, 1, 48, 49, 50, 200} {
		var in []domain.EntitySlope
		for i := 0; i < n; i++ {
			in = append(in, domain.EntitySlope{Entity: fmt.Sprintf("e%03d", i), Slope: rng.NormFloat64()})
		}

		top := TopK(in, 0)
		assert.Len(t, top, min(DefaultTopK, n))
		assert.True(t, sort.SliceIsSorted(top, func(i, j int) bool { return top[i].Slope > top[j].Slope }))
	}
}

// --- Clusterer ---

func assertPartition(t *testing.T, in []domain.EntitySlope, clusters []domain.Cluster) {
	t.Helper()
	seen := map[string]int{}
	for _, c := range clusters {
		assert.NotEmpty(t, c.Members, c.Name)
		for _, m := range c.Members {
			seen[m]++
		}
	}
	assert.Len(t, seen, len(in))
	for _, s := range in {
		assert.Equal(t, 1, seen[s.Entity], "entity %s", s.Entity)
	}
}

func TestKMeans1D_SeparatesGroups(t *testing.T) {
	in := slopesOf(
		"a", 100.0, "b", 101.0, "c", 99.0,
		"d", 10.0, "e", 11.0,
		"f", -50.0, "g", -52.0,
	)

	clusters, err := NewKMeans1D(3).Cluster(context.Background(), "2020-04", in)
	require.NoError(t, err)
	require.Len(t, clusters, 3)
	assertPartition(t, in, clusters)

	assert.Equal(t, "cluster-1", clusters[0].Name)
	assert.Equal(t, []string{"a", "b", "c"}, clusters[0].Members)
	assert.InDelta(t, 100, clusters[0].Centroid, 1e-9)
	assert.Equal(t, []string{"d", "e"}, clusters[1].Members)
	assert.Equal(t, []string{"f", "g"}, clusters[2].Members)
	assert.Equal(t, "2020-04", clusters[2].Label)
}

func TestKMeans1D_FewerDistinctValuesThanK(t *testing.T) {
	in := slopesOf("a", 1.0, "b", 1.0, "c", 1.0)

	clusters, err := NewKMeans1D(4).Cluster(context.Background(), "2020-04", in)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"a", "b", "c"}, clusters[0].Members)
}

func TestKMeans1D_SingleEntity(t *testing.T) {
	in := slopesOf("only", 3.5)

	clusters, err := NewKMeans1D(4).Cluster(context.Background(), "2020-04", in)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assertPartition(t, in, clusters)
}

func TestKMeans1D_PartitionProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for n := 1; n <= 60; n += 7 {
		var in []domain.EntitySlope
		for i := 0; i < n; i++ {
			in = append(in, domain.EntitySlope{Entity: fmt.Sprintf("e%02d", i), Slope: float64(rng.Intn(20)) - 10})
		}
		for _, k := range []int{1, 2, 4, 9} {
			clusters, err := NewKMeans1D(k).Cluster(context.Background(), "m", in)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(clusters), k)
			assertPartition(t, in, clusters)
		}
	}
}

func TestKMeans1D_Deterministic(t *testing.T) {
	in := slopesOf("a", 5.0, "b", 1.0, "c", 9.0, "d", 2.0, "e", 8.0)
	first, err := NewKMeans1D(2).Cluster(context.Background(), "m", in)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := NewKMeans1D(2).Cluster(context.Background(), "m", in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestKMeans1D_Empty(t *testing.T) {
	clusters, err := NewKMeans1D(3).Cluster(context.Background(), "m", nil)
	require.NoError(t, err)
	assert.Empty(t, clusters)
}

// --- Analyze ---

type failingClusterer struct{}

func (failingClusterer) Cluster(context.Context, string, []domain.EntitySlope) ([]domain.Cluster, error) {
	return nil, errors.New("boom")
}

func TestAnalyze_PerLabel(t *testing.T) {
	var in []domain.EntitySlope
	for i := 0; i < 60; i++ {
		in = append(in,
			domain.EntitySlope{Entity: fmt.Sprintf("e%02d", i), Label: "2020-03", Slope: float64(i)},
			domain.EntitySlope{Entity: fmt.Sprintf("e%02d", i), Label: "2020-02", Slope: float64(-i)},
		)
	}

	trends, err := Analyze(context.Background(), in, DefaultTopK, NewKMeans1D(3), 2)
	require.NoError(t, err)
	require.Len(t, trends, 2)

	assert.Equal(t, "2020-02", trends[0].Label)
	assert.Equal(t, "2020-03", trends[1].Label)
	assert.Len(t, trends[1].Top, DefaultTopK)
	assert.Equal(t, "e59", trends[1].Top[0].Entity)
	assertPartition(t, trends[1].Top, trends[1].Clusters)
}

func TestAnalyze_ClustererErrorPropagates(t *testing.T) {
	_, err := Analyze(context.Background(), slopesOf("a", 1.0), 5, failingClusterer{}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2020-04")
}
