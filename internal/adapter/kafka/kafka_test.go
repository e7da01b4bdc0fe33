package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/couchcryptid/covid-trends-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	batches [][]kafkago.Message
	err     error
	closed  bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, msgs)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var generatedAt = time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleResults() domain.Results {
	return domain.Results{
		RunID:       "run-1",
		GeneratedAt: generatedAt,
		GlobalWeekly: []domain.WindowStatistics{
			{Key: domain.GroupKey{Label: "2020-01-20"}, Count: 3, Mean: 2},
			{Key: domain.GroupKey{Label: "2020-01-27"}, Count: 7, Mean: 4},
		},
		ContinentWeekly: []domain.WindowStatistics{
			{Key: domain.GroupKey{Group: "Europe", Label: "2020-01-20"}, Count: 3, Mean: 1},
		},
		MonthlyTrends: []domain.MonthlyTrend{
			{Label: "2020-02", Top: []domain.EntitySlope{{Entity: "Italy", Label: "2020-02", Slope: 3}}},
		},
	}
}

func TestSerializeToMessage(t *testing.T) {
	r := sampleResults()

	msg, err := serializeToMessage(r, domain.TableContinentWeekly, r.ContinentWeekly[0].Key.String(), r.ContinentWeekly[0])
	require.NoError(t, err)

	assert.Equal(t, []byte("continent_weekly/Europe - 2020-01-20"), msg.Key)
	assert.Contains(t, string(msg.Value), `"group":"Europe"`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "table", msg.Headers[0].Key)
	assert.Equal(t, []byte(domain.TableContinentWeekly), msg.Headers[0].Value)
	assert.Equal(t, "run_id", msg.Headers[1].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[1].Value)
	assert.Equal(t, []byte(generatedAt.Format(time.RFC3339)), msg.Headers[2].Value)
}

func TestExport_SingleWritePerRun(t *testing.T) {
	fw := &fakeWriter{}
	metrics := observability.NewMetricsForTesting()
	w := newWriter(fw, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics)

	require.NoError(t, w.Export(context.Background(), sampleResults()))

	require.Len(t, fw.batches, 1)
	require.Len(t, fw.batches[0], 4)
	assert.Equal(t, []byte("monthly_trends/2020-02"), fw.batches[0][3].Key)
	for _, m := range fw.batches[0] {
		assert.Equal(t, []byte("run-1"), m.Headers[1].Value)
	}
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.ResultsExported.WithLabelValues(domain.TableGlobalWeekly)), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ResultsExported.WithLabelValues(domain.TableMonthlyTrends)), 1e-9)
}

func TestExport_EmptyResults(t *testing.T) {
	fw := &fakeWriter{}
	w := newWriter(fw, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())

	require.NoError(t, w.Export(context.Background(), domain.Results{RunID: "empty"}))
	assert.Empty(t, fw.batches)
}

func TestExport_WriteError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker down")}
	metrics := observability.NewMetricsForTesting()
	w := newWriter(fw, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics)

	err := w.Export(context.Background(), sampleResults())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Empty(t, fw.batches)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.ResultsExported.WithLabelValues(domain.TableGlobalWeekly)), 1e-9)
}

func TestClose(t *testing.T) {
	fw := &fakeWriter{}
	w := newWriter(fw, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}
