package stats

import (
	"fmt"
	"math"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
)

// Summarize computes mean, sample standard deviation, min and max of values.
// The standard deviation uses the n-1 denominator and is flagged undefined
// (StdDevDefined=false, StdDev=0) when fewer than two values are present.
func Summarize(key domain.GroupKey, values []float64) (domain.WindowStatistics, error) {
	n := len(values)
	if n == 0 {
		return domain.WindowStatistics{}, fmt.Errorf("summarize %s: %w", key, domain.ErrEmptyWindow)
	}

	s := domain.WindowStatistics{
		Key:   key,
		Count: n,
		Min:   values[0],
		Max:   values[0],
	}

	var sum float64
	for _, v := range values {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean = sum / float64(n)

	if n < 2 {
		return s, nil
	}

	var sumSq float64
	for _, v := range values {
		d := v - s.Mean
		sumSq += d * d
	}
	s.StdDev = math.Sqrt(sumSq / float64(n-1))
	s.StdDevDefined = true
	return s, nil
}
