package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/config"
	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/couchcryptid/covid-trends-etl/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the exporter needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes pipeline results to a Kafka topic, one message per
// statistics row or monthly trend. It implements pipeline.Exporter.
type Writer struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
	}
	return newWriter(w, logger, metrics)
}

func newWriter(w messageWriter, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	return &Writer{
		writer:  w,
		logger:  logger,
		metrics: metrics,
	}
}

// Export serializes every record of the run and hands them to the producer in
// a single write; the producer splits them into BATCH_SIZE requests. Messages
// of one run share the run_id header.
func (w *Writer) Export(ctx context.Context, results domain.Results) error {
	msgs, err := resultsToMessages(results)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		w.logger.Info("no results to publish", "run_id", results.RunID)
		return nil
	}

	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d result messages: %w", len(msgs), err)
	}

	w.metrics.ResultsExported.WithLabelValues(domain.TableGlobalWeekly).Add(float64(len(results.GlobalWeekly)))
	w.metrics.ResultsExported.WithLabelValues(domain.TableContinentWeekly).Add(float64(len(results.ContinentWeekly)))
	w.metrics.ResultsExported.WithLabelValues(domain.TableMonthlyTrends).Add(float64(len(results.MonthlyTrends)))
	w.logger.Info("results published", "run_id", results.RunID, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func resultsToMessages(r domain.Results) ([]kafkago.Message, error) {
	msgs := make([]kafkago.Message, 0, r.Len())
	for _, s := range r.GlobalWeekly {
		msg, err := serializeToMessage(r, domain.TableGlobalWeekly, s.Key.String(), s)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	for _, s := range r.ContinentWeekly {
		msg, err := serializeToMessage(r, domain.TableContinentWeekly, s.Key.String(), s)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	for _, t := range r.MonthlyTrends {
		msg, err := serializeToMessage(r, domain.TableMonthlyTrends, t.Label, t)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// serializeToMessage marshals one result record into a Kafka message keyed by
// table and record key, so reruns of the same window land on the same partition.
func serializeToMessage(r domain.Results, table, key string, record any) (kafkago.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s record %q: %w", table, key, err)
	}
	return kafkago.Message{
		Key:   []byte(table + "/" + key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "table", Value: []byte(table)},
			{Key: "run_id", Value: []byte(r.RunID)},
			{Key: "generated_at", Value: []byte(r.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
