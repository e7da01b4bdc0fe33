//go:build nominatim

package nominatim

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the public Nominatim service.
// Run with: go test -tags=nominatim ./internal/adapter/nominatim/ -v -count=1

func smokeClient() *Client {
	return NewClient(Options{
		BaseURL:       DefaultBaseURL,
		UserAgent:     "covid-trends-etl-smoke/1.0",
		Timeout:       10 * time.Second,
		MaxConcurrent: 1,
		RatePerSecond: 1,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
}

func TestSmoke_CountryCode(t *testing.T) {
	code, err := smokeClient().CountryCode(context.Background(), 41.9, 12.5)
	require.NoError(t, err)
	assert.Equal(t, "it", code)
}

func TestSmoke_OpenOcean(t *testing.T) {
	// Nominatim answers the middle of the Pacific with an "error" field.
	_, err := smokeClient().CountryCode(context.Background(), 0, -160)
	require.Error(t, err)
}
