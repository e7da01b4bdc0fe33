package trend

import (
	"context"
	"sort"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Slope fits values against their zero-based index by ordinary least squares
// and returns the slope. A single point (or none) has no defined slope and
// yields 0.
func Slope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}

	// Mean of 0..n-1 is (n-1)/2.
	xMean := float64(n-1) / 2
	var yMean float64
	for _, v := range values {
		yMean += v
	}
	yMean /= float64(n)

	var sxy, sxx float64
	for i, v := range values {
		dx := float64(i) - xMean
		sxy += dx * (v - yMean)
		sxx += dx * dx
	}
	return sxy / sxx
}

// EstimateAll computes one EntitySlope per entity window on a bounded worker
// pool. The result is ordered by entity input order, then window order.
func EstimateAll(ctx context.Context, entities []domain.EntityWindows, workers int) ([]domain.EntitySlope, error) {
	perEntity := make([][]domain.EntitySlope, len(entities))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(workers, 1))

	for i := range entities {
		e := entities[i]
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			slopes := make([]domain.EntitySlope, 0, len(e.Windows))
			for _, w := range e.Windows {
				slopes = append(slopes, domain.EntitySlope{
					Entity: e.Entity,
					Label:  w.Label,
					Slope:  Slope(w.Values),
					Values: w.Values,
				})
			}
			perEntity[i] = slopes
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var out []domain.EntitySlope
	for _, s := range perEntity {
		out = append(out, s...)
	}
	return out, nil
}

// GroupByLabel buckets slopes by window label and returns the labels in
// ascending order alongside the buckets.
func GroupByLabel(slopes []domain.EntitySlope) ([]string, map[string][]domain.EntitySlope) {
	groups := make(map[string][]domain.EntitySlope)
	for _, s := range slopes {
		groups[s.Label] = append(groups[s.Label], s)
	}
	labels := make([]string, 0, len(groups))
	for l := range groups {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels, groups
}
