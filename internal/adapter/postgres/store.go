// Package postgres stores pipeline results in PostgreSQL, one row per
// statistics bucket and one row per monthly trend, tagged with the run ID.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/couchcryptid/covid-trends-etl/internal/observability"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

// insertChunk bounds the rows per multi-row INSERT, well under the
// 65535 bind parameter limit.
const insertChunk = 500

const schema = `
CREATE TABLE IF NOT EXISTS window_statistics (
	run_id         TEXT             NOT NULL,
	result_table   TEXT             NOT NULL,
	grp            TEXT             NOT NULL,
	label          TEXT             NOT NULL,
	window_start   DATE             NOT NULL,
	sample_count   INTEGER          NOT NULL,
	mean           DOUBLE PRECISION NOT NULL,
	stddev         DOUBLE PRECISION,
	min_value      DOUBLE PRECISION NOT NULL,
	max_value      DOUBLE PRECISION NOT NULL,
	generated_at   TIMESTAMPTZ      NOT NULL,
	PRIMARY KEY (run_id, result_table, grp, label)
);

CREATE TABLE IF NOT EXISTS monthly_trends (
	run_id       TEXT        NOT NULL,
	label        TEXT        NOT NULL,
	top          JSONB       NOT NULL,
	clusters     JSONB       NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, label)
);`

const insertStatistics = `
	INSERT INTO window_statistics (
		run_id, result_table, grp, label, window_start, sample_count,
		mean, stddev, min_value, max_value, generated_at
	) VALUES (
		:run_id, :result_table, :grp, :label, :window_start, :sample_count,
		:mean, :stddev, :min_value, :max_value, :generated_at
	)`

const insertTrends = `
	INSERT INTO monthly_trends (run_id, label, top, clusters, generated_at)
	VALUES (:run_id, :label, :top, :clusters, :generated_at)`

type statisticsRow struct {
	RunID       string    `db:"run_id"`
	Table       string    `db:"result_table"`
	Group       string    `db:"grp"`
	Label       string    `db:"label"`
	Start       time.Time `db:"window_start"`
	Count       int       `db:"sample_count"`
	Mean        float64   `db:"mean"`
	StdDev      *float64  `db:"stddev"`
	Min         float64   `db:"min_value"`
	Max         float64   `db:"max_value"`
	GeneratedAt time.Time `db:"generated_at"`
}

// trendRow carries JSON as strings so the driver sends them as text and the
// server casts them to JSONB.
type trendRow struct {
	RunID       string    `db:"run_id"`
	Label       string    `db:"label"`
	Top         string    `db:"top"`
	Clusters    string    `db:"clusters"`
	GeneratedAt time.Time `db:"generated_at"`
}

// Store implements pipeline.Exporter on PostgreSQL.
type Store struct {
	db      *sqlx.DB
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Open connects to dsn and creates the result tables if needed.
func Open(ctx context.Context, dsn string, logger *slog.Logger, metrics *observability.Metrics) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Store{db: db, logger: logger, metrics: metrics}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the result tables. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Export inserts every record of the run in a single transaction. Either the
// whole run is stored or nothing is.
func (s *Store) Export(ctx context.Context, results domain.Results) error {
	stats := append(
		statisticsRows(results, domain.TableGlobalWeekly, results.GlobalWeekly),
		statisticsRows(results, domain.TableContinentWeekly, results.ContinentWeekly)...,
	)
	trends, err := trendRows(results)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertChunked(ctx, tx, insertStatistics, stats); err != nil {
		return fmt.Errorf("insert window statistics: %w", err)
	}
	if err := insertChunked(ctx, tx, insertTrends, trends); err != nil {
		return fmt.Errorf("insert monthly trends: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results: %w", err)
	}

	s.metrics.ResultsExported.WithLabelValues(domain.TableGlobalWeekly).Add(float64(len(results.GlobalWeekly)))
	s.metrics.ResultsExported.WithLabelValues(domain.TableContinentWeekly).Add(float64(len(results.ContinentWeekly)))
	s.metrics.ResultsExported.WithLabelValues(domain.TableMonthlyTrends).Add(float64(len(results.MonthlyTrends)))
	s.logger.Info("results stored", "run_id", results.RunID, "statistics", len(stats), "trends", len(trends))
	return nil
}

// CountRun reports how many statistics and trend rows are stored for runID.
func (s *Store) CountRun(ctx context.Context, runID string) (stats, trends int, err error) {
	if err = s.db.GetContext(ctx, &stats, `SELECT COUNT(*) FROM window_statistics WHERE run_id = $1`, runID); err != nil {
		return 0, 0, fmt.Errorf("count window statistics: %w", err)
	}
	if err = s.db.GetContext(ctx, &trends, `SELECT COUNT(*) FROM monthly_trends WHERE run_id = $1`, runID); err != nil {
		return 0, 0, fmt.Errorf("count monthly trends: %w", err)
	}
	return stats, trends, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func insertChunked[T any](ctx context.Context, tx *sqlx.Tx, query string, rows []T) error {
	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))
		if _, err := tx.NamedExecContext(ctx, query, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func statisticsRows(r domain.Results, table string, stats []domain.WindowStatistics) []statisticsRow {
	rows := make([]statisticsRow, 0, len(stats))
	for _, s := range stats {
		row := statisticsRow{
			RunID:       r.RunID,
			Table:       table,
			Group:       s.Key.Group,
			Label:       s.Key.Label,
			Start:       s.Start,
			Count:       s.Count,
			Mean:        s.Mean,
			Min:         s.Min,
			Max:         s.Max,
			GeneratedAt: r.GeneratedAt,
		}
		if s.StdDevDefined {
			sd := s.StdDev
			row.StdDev = &sd
		}
		rows = append(rows, row)
	}
	return rows
}

func trendRows(r domain.Results) ([]trendRow, error) {
	rows := make([]trendRow, 0, len(r.MonthlyTrends))
	for _, t := range r.MonthlyTrends {
		top, err := json.Marshal(t.Top)
		if err != nil {
			return nil, fmt.Errorf("marshal top slopes for %s: %w", t.Label, err)
		}
		clusters, err := json.Marshal(t.Clusters)
		if err != nil {
			return nil, fmt.Errorf("marshal clusters for %s: %w", t.Label, err)
		}
		rows = append(rows, trendRow{
			RunID:       r.RunID,
			Label:       t.Label,
			Top:         string(top),
			Clusters:    string(clusters),
			GeneratedAt: r.GeneratedAt,
		})
	}
	return rows, nil
}
