package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/covid-trends-etl/internal/adapter/csvsource"
	"github.com/couchcryptid/covid-trends-etl/internal/adapter/jsonout"
	kafkaadapter "github.com/couchcryptid/covid-trends-etl/internal/adapter/kafka"
	"github.com/couchcryptid/covid-trends-etl/internal/adapter/nominatim"
	"github.com/couchcryptid/covid-trends-etl/internal/adapter/postgres"
	"github.com/couchcryptid/covid-trends-etl/internal/config"
	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/couchcryptid/covid-trends-etl/internal/geo"
	"github.com/couchcryptid/covid-trends-etl/internal/observability"
	"github.com/couchcryptid/covid-trends-etl/internal/pipeline"
	"github.com/couchcryptid/covid-trends-etl/internal/trend"
)

// overrides are command-line values that take precedence over the environment.
type overrides struct {
	input  string
	format string
	sink   string
}

func (o overrides) apply(cfg *config.Config) {
	if o.input != "" {
		cfg.InputPath = o.input
	}
	if o.format != "" {
		cfg.InputFormat = strings.ToLower(o.format)
	}
	if o.sink != "" {
		cfg.Sink = strings.ToLower(o.sink)
	}
}

type exporter interface {
	pipeline.Exporter
	io.Closer
}

// app is the wired pipeline with everything that needs closing on exit.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
	exporter exporter
}

func loadConfig(flags *overrides) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	flags.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Reverse geocoding fallback (feature-flagged via NOMINATIM_ENABLED).
	var locator domain.CountryLocator
	if cfg.NominatimEnabled {
		client := nominatim.NewClient(nominatim.Options{
			BaseURL:       cfg.NominatimURL,
			UserAgent:     cfg.NominatimUserAgent,
			Timeout:       cfg.NominatimTimeout,
			MaxConcurrent: cfg.NominatimMaxConcurrent,
			RatePerSecond: cfg.NominatimRate,
		}, logger, metrics)
		locator = nominatim.NewCachedLocator(client, cfg.NominatimCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("nominatim geocoding enabled",
			"url", cfg.NominatimURL,
			"cache_size", cfg.NominatimCacheSize,
			"max_concurrent", cfg.NominatimMaxConcurrent,
			"rate", cfg.NominatimRate,
		)
	} else {
		logger.Info("nominatim geocoding disabled")
	}

	exp, err := newExporter(ctx, cfg, logger, metrics)
	if err != nil {
		return nil, err
	}

	reader := csvsource.NewReader(logger, metrics)
	source := csvsource.NewFileSource(reader, cfg.InputPath, cfg.InputFormat == config.FormatNational, cfg.AnchorDate)
	resolver := geo.NewResolver(geo.DefaultRegions(), locator, logger, metrics)

	p := pipeline.New(source, resolver, trend.NewKMeans1D(cfg.ClusterCount), exp, pipeline.Options{
		Workers:  cfg.Workers,
		TopK:     cfg.TopK,
		National: cfg.InputFormat == config.FormatNational,
	}, logger, metrics)

	return &app{cfg: cfg, logger: logger, pipeline: p, exporter: exp}, nil
}

func newExporter(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (exporter, error) {
	switch cfg.Sink {
	case config.SinkKafka:
		logger.Info("exporting to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
		return kafkaadapter.NewWriter(cfg, logger, metrics), nil
	case config.SinkPostgres:
		logger.Info("exporting to postgres")
		return postgres.Open(ctx, cfg.PostgresDSN, logger, metrics)
	default:
		return jsonout.NewWriter(os.Stdout, metrics), nil
	}
}

func (a *app) close() {
	if err := a.exporter.Close(); err != nil {
		a.logger.Error("exporter close error", "error", err)
	}
}
