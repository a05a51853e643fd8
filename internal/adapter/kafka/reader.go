// Package kafka adapts a Kafka consumer to the ingest loop's extractor
// interface.
package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/emberwatch/fire-danger-service/internal/config"
	"github.com/emberwatch/fire-danger-service/internal/ingest"
	kafkago "github.com/segmentio/kafka-go"
)

// fetchWait bounds how long one batch waits for its first message before
// returning short, so shutdown stays responsive on a quiet topic.
const fetchWait = 2 * time.Second

// Reader consumes observation messages from the station topic.
// It implements ingest.BatchExtractor.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a consumer-group reader for the configured source topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaSourceTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // explicit commits only
	})
	return &Reader{reader: r, logger: logger}
}

// ExtractBatch fetches up to batchSize messages. It returns short once the
// topic goes quiet for fetchWait, and empty on a fully idle topic; it never
// blocks past the caller's context.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]ingest.RawMessage, error) {
	batch := make([]ingest.RawMessage, 0, batchSize)

	for len(batch) < batchSize {
		fetchCtx, cancel := context.WithTimeout(ctx, fetchWait)
		msg, err := r.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				break // quiet topic, deliver what we have
			}
			if ctx.Err() != nil {
				return batch, ctx.Err()
			}
			return nil, err
		}
		batch = append(batch, r.toRaw(msg))
	}
	return batch, nil
}

func (r *Reader) toRaw(msg kafkago.Message) ingest.RawMessage {
	return ingest.RawMessage{
		Key:       msg.Key,
		Value:     msg.Value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Commit: func(ctx context.Context) error {
			return r.reader.CommitMessages(ctx, msg)
		},
	}
}

func (r *Reader) Close() error {
	return r.reader.Close()
}
