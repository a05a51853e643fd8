//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/emberwatch/fire-danger-service/internal/adapter/kafka"
	"github.com/emberwatch/fire-danger-service/internal/cache"
	"github.com/emberwatch/fire-danger-service/internal/config"
	"github.com/emberwatch/fire-danger-service/internal/domain"
	"github.com/emberwatch/fire-danger-service/internal/ingest"
	"github.com/emberwatch/fire-danger-service/internal/observability"
	"github.com/emberwatch/fire-danger-service/internal/store"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testObservationTopic = "test-station-observations"

func observationPayload(t *testing.T, station string, tempF float64, at time.Time) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"station_id":            station,
		"temperature_f":         tempF,
		"relative_humidity_pct": 20,
		"wind_speed_mph":        15,
		"precipitation_in":      0,
		"observed_at":           at.Format(time.RFC3339),
	})
	require.NoError(t, err)
	return payload
}

// TestIngestEndToEnd runs the full observation path with real Kafka: publish
// station messages, consume them through the ingest loop, and verify the
// latest-observation store and the cache invalidation side effect.
func TestIngestEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testObservationTopic)

	cfg := &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaSourceTopic: testObservationTopic,
		KafkaGroupID:     fmt.Sprintf("test-ingest-%d", time.Now().UnixNano()),
	}

	now := time.Now().UTC().Truncate(time.Second)

	// Publish: a valid observation, a poison pill, and a newer observation
	// for the same station.
	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testObservationTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("KSTS"), Value: observationPayload(t, "KSTS", 85, now.Add(-time.Hour))},
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("KSTS"), Value: observationPayload(t, "KSTS", 95, now)},
	))

	// Seed the cache with a result that depends on the station, so ingest
	// must drop it.
	c := cache.New(nil)
	stale := domain.RoutedResult{
		ID:     "stale",
		Query:  "q",
		Report: &domain.DangerReport{Observation: domain.WeatherObservation{StationID: "KSTS"}},
	}
	require.NoError(t, c.Put("stale-key", stale))

	latest := store.NewLatestStore(nil)
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	loop := ingest.New(reader, latest, c, discardLogger(), observability.NewMetricsForTesting(), 10)

	loopCtx, loopCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(loopCtx) }()

	// Wait until the newest observation lands in the store.
	require.Eventually(t, func() bool {
		obs, ok := latest.Latest("KSTS")
		return ok && obs.TemperatureF == 95
	}, 90*time.Second, 500*time.Millisecond, "newest observation must reach the store")

	loopCancel()
	require.NoError(t, <-errCh)

	// The newer observation won; the poison pill was skipped.
	obs, ok := latest.Latest("KSTS")
	require.True(t, ok)
	assert.Equal(t, 95.0, obs.TemperatureF)
	assert.Equal(t, now, obs.Timestamp)

	// The cached result depending on the station was invalidated.
	_, _, hit, err := c.Get("stale-key")
	require.NoError(t, err)
	assert.False(t, hit, "stale cached result must be gone after ingest")

	assert.NoError(t, loop.CheckReadiness(ctx))
}
