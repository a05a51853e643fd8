package ingest_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emberwatch/fire-danger-service/internal/domain"
	"github.com/emberwatch/fire-danger-service/internal/ingest"
	"github.com/emberwatch/fire-danger-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]ingest.RawMessage
	index   atomic.Int64
	err     error
	errOnce atomic.Bool
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]ingest.RawMessage, error) {
	if m.err != nil && m.errOnce.CompareAndSwap(false, true) {
		return nil, m.err
	}
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockRecorder struct {
	mu       sync.Mutex
	recorded []domain.WeatherObservation
	replaced bool
}

func (m *mockRecorder) Record(obs domain.WeatherObservation) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, obs)
	return m.replaced
}

type mockInvalidator struct {
	mu    sync.Mutex
	calls int
	have  []domain.RoutedResult
	drop  int
}

func (m *mockInvalidator) InvalidateMatching(match func(domain.RoutedResult) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	removed := 0
	for _, r := range m.have {
		if match(r) {
			removed++
		}
	}
	m.drop = removed
	return removed
}

func observationMessage(t *testing.T, station string, tempF float64) ingest.RawMessage {
	t.Helper()
	value, err := json.Marshal(map[string]any{
		"station_id":            station,
		"temperature_f":         tempF,
		"relative_humidity_pct": 25,
		"wind_speed_mph":        10,
		"precipitation_in":      0,
		"observed_at":           time.Now().UTC().Format(time.RFC3339),
	})
	require.NoError(t, err)
	return ingest.RawMessage{Key: []byte(station), Value: value, Topic: "station-observations"}
}

func runLoop(t *testing.T, l *ingest.Loop, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, l.Run(ctx))
}

// --- tests ---

func TestLoop_Run_RecordsAndBecomesReady(t *testing.T) {
	ext := &mockExtractor{batches: [][]ingest.RawMessage{{
		observationMessage(t, "KSTS", 85),
		observationMessage(t, "KBUR", 95),
	}}}
	rec := &mockRecorder{replaced: true}
	inv := &mockInvalidator{}

	l := ingest.New(ext, rec, inv, slog.Default(), observability.NewMetricsForTesting(), 10)

	require.Error(t, l.CheckReadiness(context.Background()), "not ready before any message")
	runLoop(t, l, 200*time.Millisecond)

	require.Len(t, rec.recorded, 2)
	assert.Equal(t, "KSTS", rec.recorded[0].StationID)
	assert.NoError(t, l.CheckReadiness(context.Background()))
}

func TestLoop_Run_InvalidatesCachedResultsForUpdatedStations(t *testing.T) {
	stale := domain.RoutedResult{
		Report: &domain.DangerReport{Observation: domain.WeatherObservation{StationID: "KSTS"}},
	}
	unrelated := domain.RoutedResult{
		Report: &domain.DangerReport{Observation: domain.WeatherObservation{StationID: "KBUR"}},
	}
	staleStep := domain.RoutedResult{
		Steps: []domain.ExecutionStep{{
			Result: &domain.StepResult{Observation: &domain.WeatherObservation{StationID: "KSTS"}},
		}},
	}

	ext := &mockExtractor{batches: [][]ingest.RawMessage{{observationMessage(t, "KSTS", 85)}}}
	rec := &mockRecorder{replaced: true}
	inv := &mockInvalidator{have: []domain.RoutedResult{stale, unrelated, staleStep}}

	l := ingest.New(ext, rec, inv, slog.Default(), observability.NewMetricsForTesting(), 10)
	runLoop(t, l, 200*time.Millisecond)

	assert.Equal(t, 1, inv.calls)
	assert.Equal(t, 2, inv.drop, "both results touching the updated station are dropped")
}

func TestLoop_Run_StaleObservationSkipsInvalidation(t *testing.T) {
	ext := &mockExtractor{batches: [][]ingest.RawMessage{{observationMessage(t, "KSTS", 85)}}}
	rec := &mockRecorder{replaced: false} // older than what is stored
	inv := &mockInvalidator{}

	l := ingest.New(ext, rec, inv, slog.Default(), observability.NewMetricsForTesting(), 10)
	runLoop(t, l, 200*time.Millisecond)

	assert.Zero(t, inv.calls, "a dropped stale observation must not invalidate anything")
}

func TestLoop_Run_MalformedMessageSkippedAndCommitted(t *testing.T) {
	committed := atomic.Bool{}
	bad := ingest.RawMessage{
		Value:  []byte(`{"station_id": "KSTS"`),
		Commit: func(context.Context) error { committed.Store(true); return nil },
	}

	ext := &mockExtractor{batches: [][]ingest.RawMessage{{bad, observationMessage(t, "KBUR", 95)}}}
	rec := &mockRecorder{replaced: true}
	inv := &mockInvalidator{}

	l := ingest.New(ext, rec, inv, slog.Default(), observability.NewMetricsForTesting(), 10)
	runLoop(t, l, 200*time.Millisecond)

	require.Len(t, rec.recorded, 1)
	assert.Equal(t, "KBUR", rec.recorded[0].StationID)
	assert.True(t, committed.Load(), "bad messages are committed so they are not replayed")
}

func TestLoop_Run_OutOfRangeObservationRejected(t *testing.T) {
	value, err := json.Marshal(map[string]any{
		"station_id":            "KSTS",
		"temperature_f":         200,
		"relative_humidity_pct": 25,
		"wind_speed_mph":        10,
		"observed_at":           time.Now().UTC().Format(time.RFC3339),
	})
	require.NoError(t, err)

	ext := &mockExtractor{batches: [][]ingest.RawMessage{{{Value: value}}}}
	rec := &mockRecorder{}
	inv := &mockInvalidator{}

	l := ingest.New(ext, rec, inv, slog.Default(), observability.NewMetricsForTesting(), 10)
	runLoop(t, l, 200*time.Millisecond)

	assert.Empty(t, rec.recorded)
	require.Error(t, l.CheckReadiness(context.Background()))
}

func TestLoop_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no batches, will block
	l := ingest.New(ext, &mockRecorder{}, &mockInvalidator{}, slog.Default(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, l.Run(ctx))
}

func TestLoop_Run_ExtractErrorBacksOffAndRecovers(t *testing.T) {
	ext := &mockExtractor{
		err:     errors.New("broker unavailable"),
		batches: [][]ingest.RawMessage{{observationMessage(t, "KSTS", 85)}},
	}
	rec := &mockRecorder{replaced: true}

	l := ingest.New(ext, rec, &mockInvalidator{}, slog.Default(), observability.NewMetricsForTesting(), 10)
	runLoop(t, l, time.Second)

	require.Len(t, rec.recorded, 1, "loop must recover after a transient extract failure")
}

func TestParseObservation_Valid(t *testing.T) {
	msg := observationMessage(t, "KSTS", 85)
	obs, err := ingest.ParseObservation(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, "KSTS", obs.StationID)
	assert.Equal(t, 85.0, obs.TemperatureF)
	assert.Equal(t, time.UTC, obs.Timestamp.Location())
}

func TestParseObservation_Rejections(t *testing.T) {
	cases := []struct {
		name  string
		value string
	}{
		{"truncated json", `{"station_id": "KSTS"`},
		{"missing station", `{"temperature_f": 85, "relative_humidity_pct": 25, "wind_speed_mph": 10, "observed_at": "2026-08-23T12:00:00Z"}`},
		{"missing timestamp", `{"station_id": "KSTS", "temperature_f": 85, "relative_humidity_pct": 25, "wind_speed_mph": 10}`},
		{"bad timestamp", `{"station_id": "KSTS", "temperature_f": 85, "relative_humidity_pct": 25, "wind_speed_mph": 10, "observed_at": "yesterday"}`},
		{"out of range humidity", `{"station_id": "KSTS", "temperature_f": 85, "relative_humidity_pct": 120, "wind_speed_mph": 10, "observed_at": "2026-08-23T12:00:00Z"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ingest.ParseObservation([]byte(tc.value))
			assert.Error(t, err)
		})
	}
}
