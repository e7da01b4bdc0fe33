package window

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Build converts a cumulative series into punctual values and buckets them
// into calendar windows starting at anchor. Partial leading and trailing
// windows are kept. Windows are returned in chronological order.
func Build(cumulative []float64, anchor time.Time, g domain.Granularity) ([]domain.Window, error) {
	if len(cumulative) == 0 {
		return nil, domain.ErrEmptyWindow
	}

	punctual := ToPunctual(cumulative)
	var (
		windows []domain.Window
		current = PeriodOf(anchor, 0, g)
		values  []float64
	)

	for i, v := range punctual {
		p := PeriodOf(anchor, i, g)
		if p != current {
			windows = append(windows, newWindow(current, values))
			current = p
			values = nil
		}
		values = append(values, v)
	}
	windows = append(windows, newWindow(current, values))

	return windows, nil
}

func newWindow(p Period, values []float64) domain.Window {
	return domain.Window{
		Label:  p.Label(),
		Start:  p.Start(),
		Values: values,
	}
}

// BuildAll builds windows for every row of the dataset on a bounded worker
// pool. Rows keep their input order in the result.
func BuildAll(ctx context.Context, ds domain.Dataset, g domain.Granularity, workers int) ([]domain.EntityWindows, error) {
	out := make([]domain.EntityWindows, len(ds.Rows))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(workers, 1))

	for i := range ds.Rows {
		row := ds.Rows[i]
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			windows, err := Build(row.Cumulative, ds.Anchor, g)
			if err != nil {
				return fmt.Errorf("build %s windows for %q: %w", g, row.Entity, err)
			}
			out[i] = domain.EntityWindows{
				Entity:  row.Entity,
				Coord:   row.Coord,
				Windows: windows,
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
