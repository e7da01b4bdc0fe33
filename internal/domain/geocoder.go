package domain

import "context"

// CountryLocator resolves a coordinate to an ISO 3166-1 alpha-2 country code.
// An empty code with a nil error means the provider had no answer.
type CountryLocator interface {
	CountryCode(ctx context.Context, lat, lon float64) (string, error)
}
