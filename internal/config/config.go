package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Input formats.
const (
	FormatGlobal   = "global"
	FormatNational = "national"
)

// Sinks.
const (
	SinkStdout   = "stdout"
	SinkKafka    = "kafka"
	SinkPostgres = "postgres"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	InputPath   string
	InputFormat string
	// AnchorDate overrides the first date header of the input when non-zero.
	AnchorDate time.Time

	Workers      int
	TopK         int
	ClusterCount int

	Sink           string
	KafkaBrokers   []string
	KafkaSinkTopic string
	BatchSize      int
	PostgresDSN    string

	// Nominatim reverse geocoding configuration.
	NominatimEnabled       bool
	NominatimURL           string
	NominatimTimeout       time.Duration
	NominatimCacheSize     int
	NominatimMaxConcurrent int
	NominatimRate          float64
	NominatimUserAgent     string

	HTTPAddr        string
	RunInterval     time.Duration
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is loaded first; variables already set win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	anchor, err := parseDate("ANCHOR_DATE")
	if err != nil {
		return nil, err
	}

	workers, err := parsePositiveInt("WORKERS", 8)
	if err != nil {
		return nil, err
	}
	topK, err := parsePositiveInt("TOP_K", 49)
	if err != nil {
		return nil, err
	}
	clusterCount, err := parsePositiveInt("CLUSTER_COUNT", 4)
	if err != nil {
		return nil, err
	}

	nominatimTimeout, err := parsePositiveDuration("NOMINATIM_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	nominatimCacheSize, err := parsePositiveInt("NOMINATIM_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	nominatimMaxConcurrent, err := parsePositiveInt("NOMINATIM_MAX_CONCURRENT", 2)
	if err != nil {
		return nil, err
	}
	nominatimRate, err := parseRate("NOMINATIM_RATE", 1)
	if err != nil {
		return nil, err
	}

	runInterval, err := parsePositiveDuration("RUN_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		InputPath:    sharedcfg.EnvOrDefault("INPUT_PATH", "data/time_series_covid19_confirmed_global.csv"),
		InputFormat:  strings.ToLower(sharedcfg.EnvOrDefault("INPUT_FORMAT", FormatGlobal)),
		AnchorDate:   anchor,
		Workers:      workers,
		TopK:         topK,
		ClusterCount: clusterCount,

		Sink:           strings.ToLower(sharedcfg.EnvOrDefault("SINK", SinkStdout)),
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "covid-trend-results"),
		BatchSize:      batchSize,
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),

		NominatimEnabled:       os.Getenv("NOMINATIM_ENABLED") != "false",
		NominatimURL:           sharedcfg.EnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimTimeout:       nominatimTimeout,
		NominatimCacheSize:     nominatimCacheSize,
		NominatimMaxConcurrent: nominatimMaxConcurrent,
		NominatimRate:          nominatimRate,
		NominatimUserAgent:     sharedcfg.EnvOrDefault("NOMINATIM_USER_AGENT", "covid-trends-etl/1.0"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		RunInterval:     runInterval,
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. Load calls it; call it again after
// overriding fields.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return errors.New("INPUT_PATH is required")
	}
	switch c.InputFormat {
	case FormatGlobal, FormatNational:
	default:
		return fmt.Errorf("invalid INPUT_FORMAT %q: want %s or %s", c.InputFormat, FormatGlobal, FormatNational)
	}

	switch c.Sink {
	case SinkStdout:
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaSinkTopic == "" {
			return errors.New("KAFKA_SINK_TOPIC is required")
		}
	case SinkPostgres:
		if c.PostgresDSN == "" {
			return errors.New("SINK is postgres but POSTGRES_DSN is not set")
		}
	default:
		return fmt.Errorf("invalid SINK %q", c.Sink)
	}

	if c.NominatimEnabled && c.NominatimURL == "" {
		return errors.New("NOMINATIM_ENABLED is true but NOMINATIM_URL is empty")
	}
	return nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

// parseRate accepts zero to disable rate limiting.
func parseRate(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return f, nil
}

func parseDate(key string) (time.Time, error) {
	s := os.Getenv(key)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %q (want YYYY-MM-DD)", key, s)
	}
	return t, nil
}
