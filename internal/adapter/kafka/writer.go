package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/station-risk-forecast/internal/config"
	"github.com/couchcryptid/station-risk-forecast/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes finished forecasts to a Kafka topic.
// It implements pipeline.ResultLoader.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured forecast topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Load publishes one forecast keyed by station, so results for a station
// stay ordered within a partition.
func (w *Writer) Load(ctx context.Context, result domain.ForecastResult) error {
	msg, err := serializeToMessage(result)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish forecast %s: %w", result.RunID, err)
	}
	w.logger.Debug("forecast published", "station_key", result.StationKey, "run_id", result.RunID, "bytes", len(msg.Value))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a ForecastResult into a Kafka message. The
// daily history is left out of the payload.
func serializeToMessage(result domain.ForecastResult) (kafkago.Message, error) {
	result.History = nil
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize forecast: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(result.StationKey),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "station_key", Value: []byte(result.StationKey)},
			{Key: "run_id", Value: []byte(result.RunID)},
			{Key: "generated_at", Value: []byte(result.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
