package classify

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/emberwatch/fire-danger-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClassify_SimpleCalculationFromInlineConditions(t *testing.T) {
	c := New(discardLogger())

	intent, confidence, err := c.Classify("Calculate fire danger for 95F, 15% humidity, 20mph wind")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentSimpleCalculation, intent)
	assert.Equal(t, 1.0, confidence)
}

func TestClassify_Comparison(t *testing.T) {
	c := New(discardLogger())

	intent, confidence, err := c.Classify("Compare fire danger between Santa Rosa and Burbank")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentComplexComparison, intent)
	assert.Greater(t, confidence, 0.0)
}

func TestClassify_TemporalForecast(t *testing.T) {
	c := New(discardLogger())

	for _, q := range []string{
		"What is the fire danger outlook for the next 5 days?",
		"Give me a 3-day fire weather forecast for Sonoma county",
		"How will the danger trend through tomorrow?",
	} {
		intent, _, err := c.Classify(q)
		require.NoError(t, err, q)
		assert.Equal(t, domain.IntentTemporalForecast, intent, q)
	}
}

func TestClassify_ForecastComparisonResolvesToForecast(t *testing.T) {
	// Both the forecast and comparison rules match; table order picks the
	// forecast plan, and overlapping rules lower confidence.
	c := New(discardLogger())

	intent, confidence, err := c.Classify("Compare the 5-day forecast for the north coast")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentTemporalForecast, intent)
	assert.Equal(t, 0.7, confidence)
}

func TestClassify_DecisionSupport(t *testing.T) {
	c := New(discardLogger())

	intent, _, err := c.Classify("Should we deploy crews to the valley today?")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentDecisionSupport, intent)
}

func TestClassify_Delegated(t *testing.T) {
	c := New(discardLogger())

	for _, q := range []string{
		"Show me all fire records from last year",
		"How many incidents burned over 1000 acres?",
	} {
		intent, _, err := c.Classify(q)
		require.NoError(t, err, q)
		assert.Equal(t, domain.IntentDelegated, intent, q)
	}
}

func TestClassify_CheapestIntentWinsAcrossPriorities(t *testing.T) {
	// "list" (delegated) and "should" (decision support) both match;
	// decomposition is cheaper than delegation.
	c := New(discardLogger())

	intent, _, err := c.Classify("Should we list extra lookouts this weekend?")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentDecisionSupport, intent)
}

func TestClassify_AmbiguousFallsBackToDecomposition(t *testing.T) {
	c := New(discardLogger())

	intent, confidence, err := c.Classify("hazelnut umbrella")
	require.ErrorIs(t, err, domain.ErrAmbiguousIntent)
	assert.Equal(t, domain.IntentDecisionSupport, intent)
	assert.Equal(t, 0.0, confidence)
}

func TestClassify_EmptyQuery(t *testing.T) {
	c := New(discardLogger())

	_, _, err := c.Classify("   ")
	assert.ErrorIs(t, err, domain.ErrAmbiguousIntent)
}

func TestNewFromSpecs_RejectsUnknownIntent(t *testing.T) {
	_, err := NewFromSpecs([]RuleSpec{{Intent: "mind_reading", Patterns: []string{`x`}}}, discardLogger())
	assert.ErrorContains(t, err, "unknown intent")
}

func TestNewFromSpecs_RejectsBadPattern(t *testing.T) {
	_, err := NewFromSpecs([]RuleSpec{{Intent: "delegated", Patterns: []string{`([`}}}, discardLogger())
	assert.ErrorContains(t, err, "compile rule pattern")
}

func TestLoadRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `
- intent: delegated
  patterns:
    - '\barchive\b'
- intent: temporal_forecast
  patterns:
    - '\bprognosis\b'
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	specs, err := LoadRulesFile(path)
	require.NoError(t, err)
	require.Len(t, specs, 2)

	c, err := NewFromSpecs(specs, discardLogger())
	require.NoError(t, err)

	intent, _, err := c.Classify("pull the archive please")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentDelegated, intent)
}

func TestLoadRulesFile_Missing(t *testing.T) {
	_, err := LoadRulesFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestExtractConditions(t *testing.T) {
	cond, ok := ExtractConditions("calculate fire danger for 95F, 15% humidity, 20mph wind")
	require.True(t, ok)
	assert.Equal(t, 95.0, cond.TemperatureF)
	assert.Equal(t, 15.0, cond.RelativeHumidityPct)
	assert.Equal(t, 20.0, cond.WindSpeedMPH)
	assert.Equal(t, 0.0, cond.PrecipitationIn)
}

func TestExtractConditions_WithPrecipitation(t *testing.T) {
	cond, ok := ExtractConditions("danger at 70F, 80% humidity, 5mph wind after 0.5 inches of rain")
	require.True(t, ok)
	assert.Equal(t, 0.5, cond.PrecipitationIn)
}

func TestExtractConditions_IncompleteInput(t *testing.T) {
	_, ok := ExtractConditions("fire danger at 95F with some wind")
	assert.False(t, ok)
}
