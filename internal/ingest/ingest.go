// Package ingest consumes station observation messages, validates them,
// records them as the latest conditions, and invalidates cached query
// results that depended on the affected station.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/emberwatch/fire-danger-service/internal/domain"
	"github.com/emberwatch/fire-danger-service/internal/observability"
)

// RawMessage is one unparsed observation message with its source position
// and a commit callback.
type RawMessage struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Commit    func(ctx context.Context) error
}

// BatchExtractor reads up to batchSize raw messages from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]RawMessage, error)
}

// Recorder stores a validated observation as the latest for its station.
// It reports whether the observation replaced the stored one.
type Recorder interface {
	Record(obs domain.WeatherObservation) bool
}

// Invalidator drops cached results matching a predicate and reports how
// many were removed.
type Invalidator interface {
	InvalidateMatching(match func(domain.RoutedResult) bool) int
}

// Loop orchestrates the consume-validate-record-invalidate cycle.
type Loop struct {
	extractor   BatchExtractor
	recorder    Recorder
	invalidator Invalidator
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates an ingest Loop with the given stages and observability.
func New(e BatchExtractor, r Recorder, inv Invalidator, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Loop {
	return &Loop{
		extractor:   e,
		recorder:    r,
		invalidator: inv,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil once at least one observation has been
// ingested, or an error describing why the loop is not yet ready.
func (l *Loop) CheckReadiness(_ context.Context) error {
	if !l.ready.Load() {
		return errors.New("ingest loop has not processed any observations yet")
	}
	return nil
}

// Run executes the ingest loop until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("ingest loop started", "batch_size", l.batchSize)
	l.metrics.IngestRunning.Set(1)
	defer l.metrics.IngestRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	// Keeps retry storms short while avoiding tight loops during outages.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("ingest loop stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !l.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one consume cycle. Returns false if the loop should stop.
func (l *Loop) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	batch, err := l.extractor.ExtractBatch(ctx, l.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		l.logger.Error("extract batch failed", "error", err)
		return l.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(batch) == 0 {
		return ctx.Err() == nil
	}
	*backoff = 200 * time.Millisecond

	touched := make(map[string]bool)
	ingested := 0

	for _, raw := range batch {
		obs, err := ParseObservation(raw.Value)
		if err != nil {
			// A malformed or out-of-range message is skipped and committed:
			// replaying it cannot make it valid.
			l.logger.Warn("observation rejected, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			l.metrics.IngestErrors.Inc()
			l.commitOffset(ctx, raw)
			continue
		}

		if l.recorder.Record(obs) {
			touched[obs.StationID] = true
		}
		ingested++
		l.metrics.ObservationsIngested.Inc()
		l.commitOffset(ctx, raw)
	}

	if len(touched) > 0 {
		removed := l.invalidator.InvalidateMatching(func(r domain.RoutedResult) bool {
			return resultUsesStation(r, touched)
		})
		if removed > 0 {
			l.metrics.CacheInvalidations.WithLabelValues("upstream").Add(float64(removed))
			l.logger.Debug("invalidated cached results for updated stations",
				"stations", len(touched), "removed", removed)
		}
	}

	if ingested > 0 {
		l.ready.Store(true)
	}
	return true
}

// resultUsesStation reports whether any observation inside the result came
// from one of the updated stations.
func resultUsesStation(r domain.RoutedResult, stations map[string]bool) bool {
	if r.Report != nil && stations[r.Report.Observation.StationID] {
		return true
	}
	for _, step := range r.Steps {
		if step.Result == nil {
			continue
		}
		if step.Result.Observation != nil && stations[step.Result.Observation.StationID] {
			return true
		}
		if step.Result.Report != nil && stations[step.Result.Report.Observation.StationID] {
			return true
		}
	}
	return false
}

// backoffOrStop checks for context cancellation, sleeps with the current
// backoff, and advances the backoff. Returns false if the loop should stop.
func (l *Loop) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

func (l *Loop) commitOffset(ctx context.Context, raw RawMessage) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		l.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
