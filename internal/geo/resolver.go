package geo

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/couchcryptid/covid-trends-etl/internal/observability"
)

// Source records how a coordinate was classified.
type Source string

const (
	SourceLocal      Source = "local"
	SourceRemote     Source = "remote"
	SourceUnresolved Source = "unresolved"
)

// Resolution is the outcome of classifying one coordinate.
type Resolution struct {
	Continent string
	Source    Source
}

// Resolved reports whether a continent was found.
func (r Resolution) Resolved() bool { return r.Source != SourceUnresolved }

// Resolver classifies coordinates into continents: first against the local
// region table in priority order, then through an optional remote locator.
type Resolver struct {
	regions []Region
	locator domain.CountryLocator
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewResolver creates a Resolver. Pass a nil locator to disable the remote
// fallback.
func NewResolver(regions []Region, locator domain.CountryLocator, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		regions: regions,
		locator: locator,
		logger:  logger,
		metrics: metrics,
	}
}

// ClassifyLocal returns the first region containing c.
func (r *Resolver) ClassifyLocal(c domain.GeoCoordinate) (string, bool) {
	for _, region := range r.regions {
		if region.Contains(c) {
			return region.Name, true
		}
	}
	return "", false
}

// Classify never fails: remote errors degrade to an unresolved result and are
// logged as warnings.
func (r *Resolver) Classify(ctx context.Context, c domain.GeoCoordinate) Resolution {
	if name, ok := r.ClassifyLocal(c); ok {
		return r.record(Resolution{Continent: name, Source: SourceLocal})
	}

	if r.locator == nil {
		return r.record(Resolution{Source: SourceUnresolved})
	}

	code, err := r.locator.CountryCode(ctx, c.Lat, c.Lon)
	if err != nil {
		r.logger.Warn("remote continent lookup failed",
			"lat", c.Lat,
			"lon", c.Lon,
			"error", err,
		)
		return r.record(Resolution{Source: SourceUnresolved})
	}

	continent, ok := ContinentForCountry(code)
	if !ok {
		r.logger.Warn("country code has no continent mapping",
			"lat", c.Lat,
			"lon", c.Lon,
			"country_code", code,
		)
		return r.record(Resolution{Source: SourceUnresolved})
	}
	return r.record(Resolution{Continent: continent, Source: SourceRemote})
}

func (r *Resolver) record(res Resolution) Resolution {
	r.metrics.ContinentResolutions.WithLabelValues(string(res.Source)).Inc()
	return res
}
