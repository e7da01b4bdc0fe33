package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/couchcryptid/covid-trends-etl/internal/observability"
	"golang.org/x/sync/errgroup"
)

// KeyFunc maps one entity's window to its aggregation bucket.
type KeyFunc func(e domain.EntityWindows, w domain.Window) domain.GroupKey

// ByLabel groups every entity under the bare window label.
func ByLabel(_ domain.EntityWindows, w domain.Window) domain.GroupKey {
	return domain.GroupKey{Label: w.Label}
}

// ByEntity keeps every entity in its own group, for datasets whose entities
// measure different quantities.
func ByEntity(e domain.EntityWindows, w domain.Window) domain.GroupKey {
	return domain.GroupKey{Group: e.Entity, Label: w.Label}
}

// ByGroup prefixes the window label with a per-entity group such as a
// continent. groupOf sees the whole entity, so it can key on the coordinate.
func ByGroup(groupOf func(e domain.EntityWindows) string) KeyFunc {
	return func(e domain.EntityWindows, w domain.Window) domain.GroupKey {
		return domain.GroupKey{Group: groupOf(e), Label: w.Label}
	}
}

// bucket is a running element-wise sum for one key.
type bucket struct {
	start  time.Time
	values []float64
}

type partial map[domain.GroupKey]*bucket

// add sums values into the bucket for key. The sum is commutative and
// associative, so partials may be combined in any order.
func (p partial) add(key domain.GroupKey, start time.Time, values []float64) error {
	b, ok := p[key]
	if !ok {
		p[key] = &bucket{start: start, values: append([]float64(nil), values...)}
		return nil
	}
	if len(b.values) != len(values) {
		return fmt.Errorf("%w: key %q has %d values, got %d", domain.ErrLengthMismatch, key, len(b.values), len(values))
	}
	for i, v := range values {
		b.values[i] += v
	}
	return nil
}

// Aggregator merges per-entity windows by key and summarizes each merged series.
type Aggregator struct {
	workers int
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewAggregator creates an Aggregator that shards entities across workers.
func NewAggregator(workers int, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{
		workers: max(workers, 1),
		logger:  logger,
		metrics: metrics,
	}
}

// Aggregate returns statistics per key sorted by key. A length mismatch
// between series sharing a key aborts with domain.ErrLengthMismatch.
func (a *Aggregator) Aggregate(ctx context.Context, entities []domain.EntityWindows, keyFn KeyFunc) ([]domain.WindowStatistics, error) {
	shards := min(a.workers, max(len(entities), 1))
	partials := make([]partial, shards)

	eg, ctx := errgroup.WithContext(ctx)
	for s := 0; s < shards; s++ {
		eg.Go(func() error {
			local := partial{}
			for i := s; i < len(entities); i += shards {
				if err := ctx.Err(); err != nil {
					return err
				}
				e := entities[i]
				for _, w := range e.Windows {
					if err := local.add(keyFn(e, w), w.Start, w.Values); err != nil {
						return err
					}
				}
			}
			partials[s] = local
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	merged := partial{}
	for _, p := range partials {
		for key, b := range p {
			if err := merged.add(key, b.start, b.values); err != nil {
				return nil, err
			}
		}
	}

	out := make([]domain.WindowStatistics, 0, len(merged))
	for key, b := range merged {
		s, err := Summarize(key, b.values)
		if err != nil {
			return nil, err
		}
		s.Start = b.start
		if !s.StdDevDefined {
			a.logger.Warn("standard deviation undefined for single-value window", "key", key.String())
			a.metrics.UndefinedStdDev.Inc()
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out, nil
}
