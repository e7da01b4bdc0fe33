// Package csvsource reads the input datasets: the wide per-entity time series
// (Province/State, Country/Region, Lat, Long, then one column per day) and the
// national date/cured/swabs report.
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/couchcryptid/covid-trends-etl/internal/observability"
)

// headerDateLayout is the M/D/YY form used by the date columns of the wide series.
const headerDateLayout = "1/2/06"

// leadingColumns precede the daily values in every wide series row.
const leadingColumns = 4

// ErrNoRows is returned when an input holds a header but no usable rows.
var ErrNoRows = errors.New("no valid rows in input")

// Reader parses input files, skipping malformed rows.
type Reader struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewReader creates a Reader.
func NewReader(logger *slog.Logger, metrics *observability.Metrics) *Reader {
	return &Reader{logger: logger, metrics: metrics}
}

// ReadSeriesFile opens path and parses it with ReadSeries.
func (r *Reader) ReadSeriesFile(path string, anchor time.Time) (domain.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return r.ReadSeries(f, anchor)
}

// ReadSeries parses the wide time series. The anchor date comes from the first
// date header unless anchor is non-zero. Rows whose column count differs from
// the header, or whose coordinate or counts are not finite numbers, are
// skipped. Entity names are unique in the result.
func (r *Reader) ReadSeries(in io.Reader, anchor time.Time) (domain.Dataset, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("read header: %w", err)
	}
	if len(header) <= leadingColumns {
		return domain.Dataset{}, fmt.Errorf("header has %d columns, want more than %d", len(header), leadingColumns)
	}

	if anchor.IsZero() {
		anchor, err = time.Parse(headerDateLayout, strings.TrimSpace(header[leadingColumns]))
		if err != nil {
			return domain.Dataset{}, fmt.Errorf("parse anchor date from header %q: %w", header[leadingColumns], err)
		}
	}

	ds := domain.Dataset{Anchor: anchor}
	var lines []int
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.reject(line, err)
			continue
		}
		if len(record) != len(header) {
			r.reject(line, fmt.Errorf("got %d columns, want %d", len(record), len(header)))
			continue
		}

		row, err := parseSeriesRow(record)
		if err != nil {
			r.reject(line, err)
			continue
		}
		ds.Rows = append(ds.Rows, row)
		lines = append(lines, line)
	}

	ds.Rows = r.uniqueEntities(ds.Rows, lines)
	r.metrics.RowsIngested.Add(float64(len(ds.Rows)))
	if len(ds.Rows) == 0 {
		return domain.Dataset{}, ErrNoRows
	}
	r.logger.Info("series ingested", "rows", len(ds.Rows), "days", len(header)-leadingColumns, "anchor", ds.Anchor.Format(time.DateOnly))
	return ds, nil
}

func parseSeriesRow(record []string) (domain.TimeSeriesRow, error) {
	lat, err := parseFloat(record[2])
	if err != nil {
		return domain.TimeSeriesRow{}, fmt.Errorf("lat: %w", err)
	}
	lon, err := parseFloat(record[3])
	if err != nil {
		return domain.TimeSeriesRow{}, fmt.Errorf("long: %w", err)
	}

	counts := make([]float64, 0, len(record)-leadingColumns)
	for i, s := range record[leadingColumns:] {
		v, err := parseFloat(s)
		if err != nil {
			return domain.TimeSeriesRow{}, fmt.Errorf("day %d: %w", i, err)
		}
		counts = append(counts, v)
	}

	province := strings.TrimSpace(record[0])
	country := strings.TrimSpace(record[1])
	return domain.TimeSeriesRow{
		Entity:     domain.EntityName(province, country),
		Province:   province,
		Country:    country,
		Coord:      domain.GeoCoordinate{Lat: lat, Lon: lon},
		Cumulative: counts,
	}, nil
}

// uniqueEntities makes display names unique. Rows sharing a name that carry a
// province are renamed "Province, Country"; a row that still collides with an
// earlier one is rejected.
func (r *Reader) uniqueEntities(rows []domain.TimeSeriesRow, lines []int) []domain.TimeSeriesRow {
	count := make(map[string]int, len(rows))
	for _, row := range rows {
		count[row.Entity]++
	}

	seen := make(map[string]bool, len(rows))
	out := rows[:0]
	for i, row := range rows {
		if count[row.Entity] > 1 && row.Province != "" {
			row.Entity = row.Province + ", " + row.Country
		}
		if seen[row.Entity] {
			r.reject(lines[i], fmt.Errorf("duplicate entity %q", row.Entity))
			continue
		}
		seen[row.Entity] = true
		out = append(out, row)
	}
	return out
}

func (r *Reader) reject(line int, err error) {
	r.metrics.RowsRejected.Inc()
	r.logger.Warn("skipping malformed row", "line", line, "error", err)
}

// parseFloat parses a finite number. NaN and infinities are malformed.
func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}
