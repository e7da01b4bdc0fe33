package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
)

// Entities produced from the national report.
const (
	EntityCured = "cured"
	EntitySwabs = "swabs"
)

// Accepted header names for each national report column.
var (
	dateColumns  = []string{"data", "date"}
	curedColumns = []string{"dimessi_guariti", "cured"}
	swabsColumns = []string{"tamponi", "swabs"}
)

// ReadNationalFile opens path and parses it with ReadNational.
func (r *Reader) ReadNationalFile(path string) (domain.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return r.ReadNational(f)
}

// ReadNational parses a daily national report with cumulative cured and swab
// counts, one row per day in chronological order. It returns a dataset with two
// entities, cured and swabs, anchored at the first row's date. Rows that break
// the daily sequence or do not parse are skipped.
func (r *Reader) ReadNational(in io.Reader) (domain.Dataset, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("read header: %w", err)
	}
	dateIdx, curedIdx, swabsIdx := columnIndex(header, dateColumns), columnIndex(header, curedColumns), columnIndex(header, swabsColumns)
	if dateIdx < 0 || curedIdx < 0 || swabsIdx < 0 {
		return domain.Dataset{}, fmt.Errorf("header %v lacks date, cured or swabs column", header)
	}

	var (
		anchor, last time.Time
		cured, swabs []float64
	)
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

		day, err := parseDay(record[dateIdx])
		if err != nil {
			r.reject(line, err)
			continue
		}
		c, err := parseFloat(record[curedIdx])
		if err != nil {
			r.reject(line, fmt.Errorf("cured: %w", err))
			continue
		}
		s, err := parseFloat(record[swabsIdx])
		if err != nil {
			r.reject(line, fmt.Errorf("swabs: %w", err))
			continue
		}

		if anchor.IsZero() {
			anchor = day
		} else if !day.Equal(last.AddDate(0, 0, 1)) {
			r.reject(line, fmt.Errorf("date %s does not follow %s", day.Format(time.DateOnly), last.Format(time.DateOnly)))
			continue
		}
		last = day
		cured = append(cured, c)
		swabs = append(swabs, s)
		r.metrics.RowsIngested.Inc()
	}

	if len(cured) == 0 {
		return domain.Dataset{}, ErrNoRows
	}
	r.logger.Info("national report ingested", "days", len(cured), "anchor", anchor.Format(time.DateOnly))
	return domain.Dataset{
		Anchor: anchor,
		Rows: []domain.TimeSeriesRow{
			{Entity: EntityCured, Cumulative: cured},
			{Entity: EntitySwabs, Cumulative: swabs},
		},
	}, nil
}

func columnIndex(header, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

// parseDay accepts a plain date or a timestamp and keeps only the date part.
func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(time.DateOnly) {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	t, err := time.Parse(time.DateOnly, s[:len(time.DateOnly)])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
