// Package jsonout writes pipeline results as indented JSON, by default to stdout.
package jsonout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/couchcryptid/covid-trends-etl/internal/observability"
)

// Writer implements pipeline.Exporter by encoding each run as one JSON document.
type Writer struct {
	out     io.Writer
	metrics *observability.Metrics
}

// NewWriter creates a JSON exporter writing to out.
func NewWriter(out io.Writer, metrics *observability.Metrics) *Writer {
	return &Writer{out: out, metrics: metrics}
}

// Export encodes results to the underlying writer.
func (w *Writer) Export(ctx context.Context, results domain.Results) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	w.metrics.ResultsExported.WithLabelValues(domain.TableGlobalWeekly).Add(float64(len(results.GlobalWeekly)))
	w.metrics.ResultsExported.WithLabelValues(domain.TableContinentWeekly).Add(float64(len(results.ContinentWeekly)))
	w.metrics.ResultsExported.WithLabelValues(domain.TableMonthlyTrends).Add(float64(len(results.MonthlyTrends)))
	return nil
}

func (w *Writer) Close() error { return nil }
