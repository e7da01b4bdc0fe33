// Command validate checks a results document produced with SINK=stdout (or the
// genmock fixture) for internal consistency: statistics bounds, key ordering,
// top-k ranking and cluster partitions. With -expected it also diffs the
// results against a reference fixture, ignoring run ID and timestamp.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -results out/results.json \
//	  -expected data/mock/results_mock.json \
//	  -top-k 49
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/couchcryptid/covid-trends-etl/internal/trend"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const epsilon = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	resultsPath := flag.String("results", "", "path to a results JSON document")
	expectedPath := flag.String("expected", "", "optional reference results JSON to compare against")
	topK := flag.Int("top-k", trend.DefaultTopK, "maximum entities per monthly ranking")
	flag.Parse()

	if *resultsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*resultsPath, *expectedPath, *topK); code != 0 {
		os.Exit(code)
	}
}

func run(resultsPath, expectedPath string, topK int) int {
	fmt.Println("=== Trend Results Validation ===")
	fmt.Println()

	results, err := loadResults(resultsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load results: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateStatistics("Phase 1: Global weekly statistics", results.GlobalWeekly, false),
		validateStatistics("Phase 2: Continent weekly statistics", results.ContinentWeekly, true),
		validateTrends(results.MonthlyTrends, topK),
	}
	if expectedPath != "" {
		expected, err := loadResults(expectedPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load expected results: %v\n", err)
			return 1
		}
		phases = append(phases, compareExpected(results, expected))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d global weekly, %d continent weekly, %d monthly trends\n",
		len(results.GlobalWeekly), len(results.ContinentWeekly), len(results.MonthlyTrends))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadResults(path string) (domain.Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Results{}, err
	}
	var r domain.Results
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.Results{}, err
	}
	return r, nil
}

// ── Statistics ──

func validateStatistics(name string, stats []domain.WindowStatistics, grouped bool) *phase {
	p := &phase{name: name}

	seen := make(map[string]bool, len(stats))
	for i, s := range stats {
		key := s.Key.String()
		if seen[key] {
			p.errorf("%s: duplicate key", key)
		}
		seen[key] = true

		if i > 0 && stats[i-1].Key.String() >= key {
			p.errorf("%s: out of order after %s", key, stats[i-1].Key.String())
		}
		if grouped && s.Key.Group == "" {
			p.errorf("%s: missing group", key)
		}
		if !grouped && s.Key.Group != "" {
			p.errorf("%s: unexpected group %q", key, s.Key.Group)
		}
		checkBounds(p, s)
	}
	return p
}

func checkBounds(p *phase, s domain.WindowStatistics) {
	key := s.Key.String()
	if s.Count <= 0 {
		p.errorf("%s: count %d", key, s.Count)
	}
	if s.Min > s.Mean+epsilon || s.Mean > s.Max+epsilon {
		p.errorf("%s: want min <= mean <= max, got %g, %g, %g", key, s.Min, s.Mean, s.Max)
	}
	if s.StdDevDefined != (s.Count >= 2) {
		p.errorf("%s: stddev_defined=%t with count %d", key, s.StdDevDefined, s.Count)
	}
	if s.StdDev < 0 || math.IsNaN(s.StdDev) {
		p.errorf("%s: invalid stddev %g", key, s.StdDev)
	}
}

// ── Trends ──

func validateTrends(trends []domain.MonthlyTrend, topK int) *phase {
	p := &phase{name: "Phase 3: Monthly trends"}

	for i, m := range trends {
		if i > 0 && trends[i-1].Label >= m.Label {
			p.errorf("%s: out of order after %s", m.Label, trends[i-1].Label)
		}
		if len(m.Top) > topK {
			p.errorf("%s: %d ranked entities, limit %d", m.Label, len(m.Top), topK)
		}

		sorted := sort.SliceIsSorted(m.Top, func(a, b int) bool {
			if m.Top[a].Slope != m.Top[b].Slope {
				return m.Top[a].Slope > m.Top[b].Slope
			}
			return m.Top[a].Entity < m.Top[b].Entity
		})
		if !sorted {
			p.errorf("%s: ranking not in descending slope order", m.Label)
		}

		checkPartition(p, m)
	}
	return p
}

// checkPartition verifies every ranked entity is in exactly one cluster.
func checkPartition(p *phase, m domain.MonthlyTrend) {
	ranked := make(map[string]bool, len(m.Top))
	for _, s := range m.Top {
		ranked[s.Entity] = true
	}

	placed := map[string]string{}
	for _, c := range m.Clusters {
		if !strings.HasPrefix(c.Name, "cluster-") {
			p.errorf("%s: unexpected cluster name %q", m.Label, c.Name)
		}
		for _, e := range c.Members {
			if prev, ok := placed[e]; ok {
				p.errorf("%s: %s in both %s and %s", m.Label, e, prev, c.Name)
			}
			placed[e] = c.Name
			if !ranked[e] {
				p.errorf("%s: %s clustered but not ranked", m.Label, e)
			}
		}
	}
	for e := range ranked {
		if _, ok := placed[e]; !ok {
			p.errorf("%s: %s ranked but not clustered", m.Label, e)
		}
	}
}

// ── Reference comparison ──

func compareExpected(got, want domain.Results) *phase {
	p := &phase{name: "Phase 4: Reference fixture"}

	diff := cmp.Diff(want, got,
		cmpopts.IgnoreFields(domain.Results{}, "RunID", "GeneratedAt"),
		cmpopts.EquateApprox(0, epsilon),
	)
	if diff != "" {
		p.errorf("results differ from reference (-want +got):\n%s", diff)
	}
	return p
}
