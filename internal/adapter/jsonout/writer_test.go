package jsonout

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/couchcryptid/covid-trends-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport_WritesDocument(t *testing.T) {
	var buf bytes.Buffer
	metrics := observability.NewMetricsForTesting()
	w := NewWriter(&buf, metrics)

	results := domain.Results{
		RunID:       "run-1",
		GeneratedAt: time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC),
		GlobalWeekly: []domain.WindowStatistics{
			{Key: domain.GroupKey{Label: "2019-12-30"}, Count: 4, Mean: 5.5},
		},
	}
	require.NoError(t, w.Export(context.Background(), results))

	var got domain.Results
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	require.Len(t, got.GlobalWeekly, 1)
	assert.Equal(t, "2019-12-30", got.GlobalWeekly[0].Key.Label)
	assert.NotContains(t, buf.String(), "continent_weekly")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ResultsExported.WithLabelValues(domain.TableGlobalWeekly)), 1e-9)
}

func TestExport_CancelledContext(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, observability.NewMetricsForTesting())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, w.Export(ctx, domain.Results{}))
	assert.Zero(t, buf.Len())
}
