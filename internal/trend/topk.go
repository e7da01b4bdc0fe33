package trend

import (
	"sort"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
)

// DefaultTopK is the number of entities kept per month.
const DefaultTopK = 49

// TopK returns the k entries with the steepest slope, in descending slope
// order. Equal slopes are ordered by entity name so the output is
// reproducible. The input slice is not modified. k <= 0 selects DefaultTopK.
func TopK(slopes []domain.EntitySlope, k int) []domain.EntitySlope {
	if k <= 0 {
		k = DefaultTopK
	}

	sorted := append([]domain.EntitySlope(nil), slopes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Slope != sorted[j].Slope {
			return sorted[i].Slope > sorted[j].Slope
		}
		return sorted[i].Entity < sorted[j].Entity
	})

	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}
