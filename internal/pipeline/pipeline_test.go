package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/couchcryptid/covid-trends-etl/internal/geo"
	"github.com/couchcryptid/covid-trends-etl/internal/observability"
	"github.com/couchcryptid/covid-trends-etl/internal/pipeline"
	"github.com/couchcryptid/covid-trends-etl/internal/trend"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockSource struct {
	ds    domain.Dataset
	errs  []error // returned by successive loads before succeeding
	loads atomic.Int64
}

func (m *mockSource) Load(_ context.Context) (domain.Dataset, error) {
	i := int(m.loads.Add(1) - 1)
	if i < len(m.errs) && m.errs[i] != nil {
		return domain.Dataset{}, m.errs[i]
	}
	return m.ds, nil
}

// mockClassifier resolves by latitude.
type mockClassifier struct {
	byLat map[float64]string
}

func (m *mockClassifier) Classify(_ context.Context, c domain.GeoCoordinate) geo.Resolution {
	if name, ok := m.byLat[c.Lat]; ok {
		return geo.Resolution{Continent: name, Source: geo.SourceLocal}
	}
	return geo.Resolution{Source: geo.SourceUnresolved}
}

type mockExporter struct {
	mu       sync.Mutex
	exported []domain.Results
	err      error
}

func (m *mockExporter) Export(_ context.Context, r domain.Results) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.exported = append(m.exported, r)
	return nil
}

func (m *mockExporter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.exported)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var anchor = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// sampleDataset spans four days of one ISO week (Mon 2019-12-30) and one month.
func sampleDataset() domain.Dataset {
	return domain.Dataset{
		Anchor: anchor,
		Rows: []domain.TimeSeriesRow{
			{Entity: "Italy", Coord: domain.GeoCoordinate{Lat: 41.9, Lon: 12.5}, Cumulative: []float64{10, 15, 15, 22}},
			{Entity: "Brazil", Coord: domain.GeoCoordinate{Lat: -15.8, Lon: -47.9}, Cumulative: []float64{1, 2, 3, 4}},
			{Entity: "Ocean Station", Coord: domain.GeoCoordinate{Lat: 0, Lon: -160}, Cumulative: []float64{0, 0, 0, 0}},
		},
	}
}

func sampleClassifier() *mockClassifier {
	return &mockClassifier{byLat: map[float64]string{41.9: "Europe", -15.8: "America"}}
}

func newTestPipeline(src pipeline.Source, exp pipeline.Exporter, opts pipeline.Options) (*pipeline.Pipeline, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	if opts.Workers == 0 {
		opts.Workers = 2
	}
	return pipeline.New(src, sampleClassifier(), trend.NewKMeans1D(4), exp, opts, discardLogger(), metrics), metrics
}

// --- RunOnce ---

func TestPipeline_RunOnce_HappyPath(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	exp := &mockExporter{}
	p, metrics := newTestPipeline(&mockSource{ds: sampleDataset()}, exp, pipeline.Options{})

	results, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, results.RunID)
	assert.Equal(t, time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC), results.GeneratedAt)

	// Global weekly: element-wise sum of [10,5,0,7], [1,1,1,1], [0,0,0,0].
	require.Len(t, results.GlobalWeekly, 1)
	g := results.GlobalWeekly[0]
	assert.Equal(t, "2019-12-30", g.Key.String())
	assert.Equal(t, 4, g.Count)
	assert.InDelta(t, 6.5, g.Mean, 1e-9)
	assert.InDelta(t, 1, g.Min, 1e-9)
	assert.InDelta(t, 11, g.Max, 1e-9)

	keys := make([]string, 0, len(results.ContinentWeekly))
	for _, s := range results.ContinentWeekly {
		keys = append(keys, s.Key.String())
	}
	assert.Equal(t, []string{"America - 2019-12-30", "Europe - 2019-12-30", "Unresolved - 2019-12-30"}, keys)
	assert.InDelta(t, 5.5, results.ContinentWeekly[1].Mean, 1e-9)

	require.Len(t, results.MonthlyTrends, 1)
	m := results.MonthlyTrends[0]
	assert.Equal(t, "2020-01", m.Label)
	require.Len(t, m.Top, 3)
	assert.Equal(t, "Brazil", m.Top[0].Entity)
	assert.Equal(t, "Ocean Station", m.Top[1].Entity)
	assert.Equal(t, "Italy", m.Top[2].Entity)
	assert.InDelta(t, -1.4, m.Top[2].Slope, 1e-9)

	wantMembers := [][]string{{"Brazil", "Ocean Station"}, {"Italy"}}
	gotMembers := make([][]string, 0, len(m.Clusters))
	for _, c := range m.Clusters {
		gotMembers = append(gotMembers, c.Members)
	}
	if diff := cmp.Diff(wantMembers, gotMembers); diff != "" {
		t.Errorf("cluster members mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "cluster-1", m.Clusters[0].Name)

	require.Equal(t, 1, exp.count())
	assert.Equal(t, results.RunID, exp.exported[0].RunID)

	latest, ok := p.Latest()
	require.True(t, ok)
	assert.Equal(t, results.RunID, latest.RunID)
	require.NoError(t, p.CheckReadiness(context.Background()))

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Runs.WithLabelValues("success")), 1e-9)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.WindowsBuilt.WithLabelValues("week")), 1e-9)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.WindowsBuilt.WithLabelValues("month")), 1e-9)
}

func TestPipeline_RunOnce_ResolvesContinentPerCoordinate(t *testing.T) {
	ds := domain.Dataset{
		Anchor: anchor,
		Rows: []domain.TimeSeriesRow{
			{Entity: "Diamond Princess", Coord: domain.GeoCoordinate{Lat: 41.9, Lon: 12.5}, Cumulative: []float64{1, 2, 3, 4}},
			{Entity: "Diamond Princess", Coord: domain.GeoCoordinate{Lat: -15.8, Lon: -47.9}, Cumulative: []float64{5, 10, 15, 20}},
		},
	}
	p, _ := newTestPipeline(&mockSource{ds: ds}, &mockExporter{}, pipeline.Options{})

	results, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, results.ContinentWeekly, 2)
	assert.Equal(t, "America - 2019-12-30", results.ContinentWeekly[0].Key.String())
	assert.InDelta(t, 5, results.ContinentWeekly[0].Mean, 1e-9)
	assert.Equal(t, "Europe - 2019-12-30", results.ContinentWeekly[1].Key.String())
	assert.InDelta(t, 1, results.ContinentWeekly[1].Mean, 1e-9)
}

func TestPipeline_RunOnce_IsDeterministic(t *testing.T) {
	p1, _ := newTestPipeline(&mockSource{ds: sampleDataset()}, &mockExporter{}, pipeline.Options{Workers: 1})
	p2, _ := newTestPipeline(&mockSource{ds: sampleDataset()}, &mockExporter{}, pipeline.Options{Workers: 8})

	r1, err := p1.Compute(context.Background(), sampleDataset())
	require.NoError(t, err)
	r2, err := p2.Compute(context.Background(), sampleDataset())
	require.NoError(t, err)

	if diff := cmp.Diff(r1, r2); diff != "" {
		t.Errorf("results depend on worker count (-1 +8):\n%s", diff)
	}
}

func TestPipeline_RunOnce_NotReadyBeforeFirstRun(t *testing.T) {
	p, _ := newTestPipeline(&mockSource{ds: sampleDataset()}, &mockExporter{}, pipeline.Options{})

	require.Error(t, p.CheckReadiness(context.Background()))
	_, ok := p.Latest()
	assert.False(t, ok)
}

func TestPipeline_RunOnce_LengthMismatchAbortsBeforeExport(t *testing.T) {
	ds := sampleDataset()
	ds.Rows[1].Cumulative = []float64{1, 2, 3}

	exp := &mockExporter{}
	p, metrics := newTestPipeline(&mockSource{ds: ds}, exp, pipeline.Options{})

	_, err := p.RunOnce(context.Background())
	require.ErrorIs(t, err, domain.ErrLengthMismatch)
	assert.Zero(t, exp.count(), "no partial results may be exported")
	require.Error(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Runs.WithLabelValues("error")), 1e-9)
}

func TestPipeline_RunOnce_SourceError(t *testing.T) {
	src := &mockSource{errs: []error{errors.New("file missing")}}
	p, _ := newTestPipeline(src, &mockExporter{}, pipeline.Options{})

	_, err := p.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load dataset")
}

func TestPipeline_RunOnce_ExportError(t *testing.T) {
	p, _ := newTestPipeline(&mockSource{ds: sampleDataset()}, &mockExporter{err: errors.New("broker down")}, pipeline.Options{})

	_, err := p.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export results")
	_, ok := p.Latest()
	assert.False(t, ok)
}

func TestPipeline_RunOnce_National(t *testing.T) {
	ds := domain.Dataset{
		Anchor: time.Date(2020, 2, 24, 0, 0, 0, 0, time.UTC), // Monday
		Rows: []domain.TimeSeriesRow{
			{Entity: "cured", Cumulative: []float64{1, 1, 3}},
			{Entity: "swabs", Cumulative: []float64{4324, 8623, 9587}},
		},
	}
	p, _ := newTestPipeline(&mockSource{ds: ds}, &mockExporter{}, pipeline.Options{National: true})

	results, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, results.GlobalWeekly, 2)
	assert.Equal(t, "cured - 2020-02-24", results.GlobalWeekly[0].Key.String())
	assert.InDelta(t, 1, results.GlobalWeekly[0].Mean, 1e-9)
	assert.Equal(t, "swabs - 2020-02-24", results.GlobalWeekly[1].Key.String())
	assert.Empty(t, results.ContinentWeekly)
	assert.Empty(t, results.MonthlyTrends)
}

// --- Serve ---

func TestPipeline_Serve_RerunsOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &mockSource{ds: sampleDataset()}
	exp := &mockExporter{}
	p, _ := newTestPipeline(src, exp, pipeline.Options{Clock: clock})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx, time.Hour) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, 1, exp.count())

	clock.Advance(time.Hour)
	require.Eventually(t, func() bool { return exp.count() == 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop after cancellation")
	}
}

func TestPipeline_Serve_RetriesFailedRunWithBackoff(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &mockSource{ds: sampleDataset(), errs: []error{errors.New("transient")}}
	exp := &mockExporter{}
	p, metrics := newTestPipeline(src, exp, pipeline.Options{Clock: clock})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Serve(ctx, time.Hour) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Zero(t, exp.count())

	// The retry waits for the initial backoff, not the full interval.
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return exp.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, p.CheckReadiness(ctx))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Runs.WithLabelValues("error")), 1e-9)
}
