package domain

import (
	"strings"
	"time"
)

// GeoCoordinate is a WGS-84 latitude/longitude pair in degrees.
type GeoCoordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Granularity selects the calendar period used to bucket daily values.
type Granularity int

const (
	Week Granularity = iota
	Month
)

func (g Granularity) String() string {
	switch g {
	case Week:
		return "week"
	case Month:
		return "month"
	default:
		return "unknown"
	}
}

// TimeSeriesRow is one entity's cumulative daily counts, starting at the
// dataset anchor date.
type TimeSeriesRow struct {
	Entity     string        `json:"entity"`
	Province   string        `json:"province,omitempty"`
	Country    string        `json:"country,omitempty"`
	Coord      GeoCoordinate `json:"coord"`
	Cumulative []float64     `json:"cumulative"`
}

// Dataset is the full ingested input: all rows share Anchor as day zero.
type Dataset struct {
	Anchor time.Time
	Rows   []TimeSeriesRow
}

// Window is a calendar-aligned bucket of punctual values for one entity.
// Start is the first calendar day of the period, which may precede the first
// value for a partial leading window.
type Window struct {
	Label  string    `json:"label"`
	Start  time.Time `json:"start"`
	Values []float64 `json:"values"`
}

// EntityWindows holds every window built for a single entity.
type EntityWindows struct {
	Entity  string
	Coord   GeoCoordinate
	Windows []Window
}

// GroupKey identifies an aggregation bucket. Group is empty for ungrouped
// (global) statistics.
type GroupKey struct {
	Group string `json:"group,omitempty"`
	Label string `json:"label"`
}

func (k GroupKey) String() string {
	if k.Group == "" {
		return k.Label
	}
	return k.Group + " - " + k.Label
}

// WindowStatistics summarizes the merged series of one aggregation bucket.
// StdDev is only meaningful when StdDevDefined is true (Count >= 2).
type WindowStatistics struct {
	Key           GroupKey  `json:"key"`
	Start         time.Time `json:"start"`
	Count         int       `json:"count"`
	Mean          float64   `json:"mean"`
	StdDev        float64   `json:"stddev"`
	StdDevDefined bool      `json:"stddev_defined"`
	Min           float64   `json:"min"`
	Max           float64   `json:"max"`
}

// EntitySlope is the trend coefficient of one entity over one window.
type EntitySlope struct {
	Entity string    `json:"entity"`
	Label  string    `json:"label"`
	Slope  float64   `json:"slope"`
	Values []float64 `json:"values,omitempty"`
}

// Cluster is a named group of entities with similar slopes in one window.
type Cluster struct {
	Label    string   `json:"label"`
	Name     string   `json:"name"`
	Centroid float64  `json:"centroid"`
	Members  []string `json:"members"`
}

// MonthlyTrend is the ranked and clustered trend output for one month.
type MonthlyTrend struct {
	Label    string        `json:"label"`
	Top      []EntitySlope `json:"top"`
	Clusters []Cluster     `json:"clusters"`
}

// Results is everything a single pipeline run hands to the exporter.
type Results struct {
	RunID           string             `json:"run_id"`
	GeneratedAt     time.Time          `json:"generated_at"`
	GlobalWeekly    []WindowStatistics `json:"global_weekly,omitempty"`
	ContinentWeekly []WindowStatistics `json:"continent_weekly,omitempty"`
	MonthlyTrends   []MonthlyTrend     `json:"monthly_trends,omitempty"`
}

// EntityName picks the display name for a row: the province when the source
// provides one, otherwise the country.
func EntityName(province, country string) string {
	if p := strings.TrimSpace(province); p != "" {
		return p
	}
	return strings.TrimSpace(country)
}

// Result tables, used by exporters to route each part of Results.
const (
	TableGlobalWeekly    = "global_weekly"
	TableContinentWeekly = "continent_weekly"
	TableMonthlyTrends   = "monthly_trends"
)

// Len reports how many records the results carry across all tables.
func (r Results) Len() int {
	return len(r.GlobalWeekly) + len(r.ContinentWeekly) + len(r.MonthlyTrends)
}
