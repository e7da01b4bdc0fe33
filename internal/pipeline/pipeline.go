package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/couchcryptid/covid-trends-etl/internal/geo"
	"github.com/couchcryptid/covid-trends-etl/internal/observability"
	"github.com/couchcryptid/covid-trends-etl/internal/stats"
	"github.com/couchcryptid/covid-trends-etl/internal/trend"
	"github.com/couchcryptid/covid-trends-etl/internal/window"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// UnresolvedGroup is the continent group of entities whose coordinate could
// not be classified.
const UnresolvedGroup = "Unresolved"

const (
	initialBackoff = time.Second
	maxBackoff     = time.Minute
)

// Source loads the dataset for one run.
type Source interface {
	Load(ctx context.Context) (domain.Dataset, error)
}

// ContinentClassifier maps a coordinate to a continent. It never fails; an
// unknown location comes back unresolved.
type ContinentClassifier interface {
	Classify(ctx context.Context, c domain.GeoCoordinate) geo.Resolution
}

// Exporter delivers the results of a run.
type Exporter interface {
	Export(ctx context.Context, results domain.Results) error
}

// Options tunes a Pipeline.
type Options struct {
	Workers int
	TopK    int
	// National computes only per-entity weekly statistics, for datasets
	// without coordinates whose entities measure different quantities.
	National bool
	// Clock drives the serve loop. Nil means the real clock.
	Clock clockwork.Clock
}

// Pipeline runs ingestion, the three trend queries and export.
type Pipeline struct {
	source     Source
	classifier ContinentClassifier
	clusterer  trend.Clusterer
	exporter   Exporter
	aggregator *stats.Aggregator
	opts       Options
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
	latest     atomic.Pointer[domain.Results]
}

// New creates a Pipeline with the given stages and observability.
func New(src Source, classifier ContinentClassifier, clusterer trend.Clusterer, exp Exporter, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	opts.Workers = max(opts.Workers, 1)
	if opts.TopK <= 0 {
		opts.TopK = trend.DefaultTopK
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		source:     src,
		classifier: classifier,
		clusterer:  clusterer,
		exporter:   exp,
		aggregator: stats.NewAggregator(opts.Workers, logger, metrics),
		opts:       opts,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once a run has completed and been exported,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Latest returns the results of the most recent successful run.
func (p *Pipeline) Latest() (domain.Results, bool) {
	r := p.latest.Load()
	if r == nil {
		return domain.Results{}, false
	}
	return *r, true
}

// RunOnce loads the dataset, computes every query and exports the results.
// Nothing is exported when any query fails.
func (p *Pipeline) RunOnce(ctx context.Context) (domain.Results, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	logger.Info("pipeline run started")

	results, err := p.run(ctx, runID)
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.Runs.WithLabelValues("error").Inc()
		return domain.Results{}, err
	}

	p.metrics.Runs.WithLabelValues("success").Inc()
	p.latest.Store(&results)
	p.ready.Store(true)
	logger.Info("pipeline run finished",
		"duration", time.Since(start),
		"global_weekly", len(results.GlobalWeekly),
		"continent_weekly", len(results.ContinentWeekly),
		"monthly_trends", len(results.MonthlyTrends),
	)
	return results, nil
}

func (p *Pipeline) run(ctx context.Context, runID string) (domain.Results, error) {
	ds, err := p.source.Load(ctx)
	if err != nil {
		return domain.Results{}, fmt.Errorf("load dataset: %w", err)
	}

	results, err := p.Compute(ctx, ds)
	if err != nil {
		return domain.Results{}, err
	}
	results.RunID = runID
	results.GeneratedAt = domain.Now()

	if err := p.exporter.Export(ctx, results); err != nil {
		return domain.Results{}, fmt.Errorf("export results: %w", err)
	}
	return results, nil
}

// Compute runs the queries over ds. The global weekly, continent weekly and
// monthly trend queries run concurrently; the first failure cancels the rest.
func (p *Pipeline) Compute(ctx context.Context, ds domain.Dataset) (domain.Results, error) {
	weekly, err := p.buildWindows(ctx, ds, domain.Week)
	if err != nil {
		return domain.Results{}, err
	}

	var results domain.Results
	if p.opts.National {
		results.GlobalWeekly, err = p.aggregator.Aggregate(ctx, weekly, stats.ByEntity)
		if err != nil {
			return domain.Results{}, fmt.Errorf("national weekly statistics: %w", err)
		}
		return results, nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		out, err := p.aggregator.Aggregate(ctx, weekly, stats.ByLabel)
		if err != nil {
			return fmt.Errorf("global weekly statistics: %w", err)
		}
		results.GlobalWeekly = out
		return nil
	})
	eg.Go(func() error {
		out, err := p.continentWeekly(ctx, weekly)
		if err != nil {
			return fmt.Errorf("continent weekly statistics: %w", err)
		}
		results.ContinentWeekly = out
		return nil
	})
	eg.Go(func() error {
		out, err := p.monthlyTrends(ctx, ds)
		if err != nil {
			return fmt.Errorf("monthly trends: %w", err)
		}
		results.MonthlyTrends = out
		return nil
	})
	if err := eg.Wait(); err != nil {
		return domain.Results{}, err
	}
	return results, nil
}

func (p *Pipeline) buildWindows(ctx context.Context, ds domain.Dataset, g domain.Granularity) ([]domain.EntityWindows, error) {
	entities, err := window.BuildAll(ctx, ds, g, p.opts.Workers)
	if err != nil {
		return nil, err
	}
	n := 0
	for _, e := range entities {
		n += len(e.Windows)
	}
	p.metrics.WindowsBuilt.WithLabelValues(g.String()).Add(float64(n))
	return entities, nil
}

func (p *Pipeline) continentWeekly(ctx context.Context, weekly []domain.EntityWindows) ([]domain.WindowStatistics, error) {
	continents, err := p.resolveContinents(ctx, weekly)
	if err != nil {
		return nil, err
	}
	return p.aggregator.Aggregate(ctx, weekly, stats.ByGroup(func(e domain.EntityWindows) string {
		return continents[e.Coord]
	}))
}

// resolveContinents classifies every distinct entity coordinate on the worker
// pool. Coordinates that stay unresolved map to UnresolvedGroup.
func (p *Pipeline) resolveContinents(ctx context.Context, entities []domain.EntityWindows) (map[domain.GeoCoordinate]string, error) {
	var coords []domain.GeoCoordinate
	seen := make(map[domain.GeoCoordinate]bool, len(entities))
	for _, e := range entities {
		if !seen[e.Coord] {
			seen[e.Coord] = true
			coords = append(coords, e.Coord)
		}
	}
	resolved := make([]string, len(coords))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.opts.Workers)
	for i := range coords {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := p.classifier.Classify(ctx, coords[i])
			if !res.Resolved() {
				resolved[i] = UnresolvedGroup
				return nil
			}
			resolved[i] = res.Continent
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	continents := make(map[domain.GeoCoordinate]string, len(coords))
	for i, c := range coords {
		continents[c] = resolved[i]
	}
	return continents, nil
}

func (p *Pipeline) monthlyTrends(ctx context.Context, ds domain.Dataset) ([]domain.MonthlyTrend, error) {
	monthly, err := p.buildWindows(ctx, ds, domain.Month)
	if err != nil {
		return nil, err
	}
	slopes, err := trend.EstimateAll(ctx, monthly, p.opts.Workers)
	if err != nil {
		return nil, err
	}
	return trend.Analyze(ctx, slopes, p.opts.TopK, p.clusterer, p.opts.Workers)
}

// Serve runs the pipeline immediately and then every interval until the
// context is cancelled. Failed runs are retried with exponential backoff,
// never waiting longer than interval.
func (p *Pipeline) Serve(ctx context.Context, interval time.Duration) error {
	p.logger.Info("pipeline serving", "interval", interval, "workers", p.opts.Workers)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for {
		wait := interval
		if _, err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
			wait = min(backoff, interval)
			p.logger.Error("pipeline run failed", "error", err, "retry_in", wait)
			backoff = nextBackoff(backoff, maxBackoff)
		} else {
			backoff = initialBackoff
		}

		if !sleepWithContext(ctx, p.opts.Clock, wait) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
