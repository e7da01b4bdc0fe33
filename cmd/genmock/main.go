// Command genmock generates a synthetic cumulative case time series in the
// wide CSV layout the pipeline ingests, plus the results fixture the pipeline
// computes from it. Results come from the actual pipeline packages with a
// fixed clock and local-only continent resolution, so the fixture matches
// real pipeline behavior without network access.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -csv-out data/mock/time_series_confirmed_mock.csv \
//	  -results-out data/mock/results_mock.json
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/adapter/csvsource"
	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/couchcryptid/covid-trends-etl/internal/geo"
	"github.com/couchcryptid/covid-trends-etl/internal/observability"
	"github.com/couchcryptid/covid-trends-etl/internal/pipeline"
	"github.com/couchcryptid/covid-trends-etl/internal/trend"
	"github.com/jonboulle/clockwork"
)

var baseDate = time.Date(2020, time.January, 22, 0, 0, 0, 0, time.UTC)

type entity struct {
	province string
	country  string
	lat, lon float64
}

// entities cover every continent plus one open-ocean point that stays unresolved.
var entities = []entity{
	{"", "Italy", 41.87194, 12.56738},
	{"", "Spain", 40.463667, -3.74922},
	{"", "Germany", 51.165691, 10.451526},
	{"", "France", 46.2276, 2.2137},
	{"Hubei", "China", 30.9756, 112.2707},
	{"Beijing", "China", 40.1824, 116.4142},
	{"", "Japan", 36.204824, 138.252924},
	{"", "India", 20.593684, 78.96288},
	{"New York", "US", 40.7128, -74.006},
	{"California", "US", 36.7783, -119.4179},
	{"", "Brazil", -14.235, -51.9253},
	{"", "Argentina", -38.4161, -63.6167},
	{"", "Egypt", 26.820553, 30.802498},
	{"", "Nigeria", 9.081999, 8.675277},
	{"", "South Africa", -30.5595, 22.9375},
	{"New South Wales", "Australia", -33.8688, 151.2093},
	{"", "New Zealand", -40.9006, 174.886},
	{"Diamond Princess", "Cruise Ship", 0, -160},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvOut := flag.String("csv-out", "", "output path for the wide time series CSV")
	resultsOut := flag.String("results-out", "", "output path for the expected results JSON fixture")
	days := flag.Int("days", 120, "number of daily columns")
	seed := flag.Uint64("seed", 2020, "random seed for growth curves")
	flag.Parse()

	if *csvOut == "" || *resultsOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -csv-out, -results-out")
	}
	if *days <= 0 {
		return fmt.Errorf("-days must be positive, got %d", *days)
	}

	series := generate(rand.New(rand.NewPCG(*seed, *seed)), *days)
	if err := writeCSV(*csvOut, series, *days); err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}
	log.Printf("wrote time series: %s (%d entities, %d days)", *csvOut, len(series), *days)

	// Set a fixed clock for a reproducible GeneratedAt stamp.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2020, time.June, 1, 0, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	results, err := compute(*csvOut)
	if err != nil {
		return fmt.Errorf("computing results: %w", err)
	}
	if err := writeJSON(*resultsOut, results); err != nil {
		return fmt.Errorf("writing results fixture: %w", err)
	}
	log.Printf("wrote results fixture: %s", *resultsOut)

	printStats(results)
	return nil
}

// generate draws a logistic growth curve per entity. A few days carry a
// downward data correction so negative punctual values appear as in real feeds.
func generate(rng *rand.Rand, days int) [][]float64 {
	out := make([][]float64, len(entities))
	for i := range entities {
		capacity := 1000 + rng.Float64()*200000
		rate := 0.05 + rng.Float64()*0.25
		midpoint := float64(days) * (0.2 + rng.Float64()*0.7)

		cum := make([]float64, days)
		for d := range cum {
			cum[d] = math.Round(capacity / (1 + math.Exp(-rate*(float64(d)-midpoint))))
			if d > 0 && rng.IntN(40) == 0 {
				cum[d] = math.Max(0, cum[d-1]-float64(rng.IntN(20)))
			}
		}
		out[i] = cum
	}
	return out
}

func writeCSV(path string, series [][]float64, days int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"Province/State", "Country/Region", "Lat", "Long"}
	for d := range days {
		header = append(header, baseDate.AddDate(0, 0, d).Format("1/2/06"))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i, e := range entities {
		row := []string{
			e.province,
			e.country,
			strconv.FormatFloat(e.lat, 'f', -1, 64),
			strconv.FormatFloat(e.lon, 'f', -1, 64),
		}
		for _, v := range series[i] {
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// fixtureExporter keeps the results instead of sending them anywhere.
type fixtureExporter struct {
	results domain.Results
}

func (f *fixtureExporter) Export(_ context.Context, r domain.Results) error {
	f.results = r
	return nil
}

func compute(csvPath string) (domain.Results, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()

	exp := &fixtureExporter{}
	p := pipeline.New(
		csvsource.NewFileSource(csvsource.NewReader(logger, metrics), csvPath, false, time.Time{}),
		geo.NewResolver(geo.DefaultRegions(), nil, logger, metrics),
		trend.NewKMeans1D(4),
		exp,
		pipeline.Options{Workers: 4, TopK: trend.DefaultTopK},
		logger,
		metrics,
	)
	if _, err := p.RunOnce(context.Background()); err != nil {
		return domain.Results{}, err
	}
	// Run IDs are random; pin it so the fixture is stable.
	exp.results.RunID = "genmock"
	return exp.results, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(r domain.Results) {
	continents := map[string]int{}
	for _, s := range r.ContinentWeekly {
		continents[s.Key.Group]++
	}
	undefined := 0
	for _, s := range r.GlobalWeekly {
		if !s.StdDevDefined {
			undefined++
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Global weekly windows: %d (undefined stddev: %d)\n", len(r.GlobalWeekly), undefined)
	fmt.Printf("Continent weekly rows: %d\n", len(r.ContinentWeekly))
	for name, n := range continents {
		fmt.Printf("  %s=%d\n", name, n)
	}
	fmt.Printf("Monthly trends: %d\n", len(r.MonthlyTrends))
	for _, m := range r.MonthlyTrends {
		if len(m.Top) == 0 {
			continue
		}
		fmt.Printf("  %s: top=%s (%.2f), clusters=%d\n", m.Label, m.Top[0].Entity, m.Top[0].Slope, len(m.Clusters))
	}
}
