package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExecutionPath names the route a query took through the coordinator.
type ExecutionPath string

const (
	PathDirect    ExecutionPath = "direct"
	PathDecompose ExecutionPath = "decompose"
	PathDelegate  ExecutionPath = "delegate"
)

// Freshness classifies the age of a cached value. Anything past the CACHED
// bound is treated as a miss and recomputed, never served.
type Freshness string

const (
	FreshnessLive    Freshness = "live"   // age < 30s
	FreshnessFresh   Freshness = "fresh"  // age < 5min
	FreshnessCached  Freshness = "cached" // age < 30min
	FreshnessExpired Freshness = "expired"
)

// StructuredResult is an opaque payload produced by an external delegate.
// The core passes it through without interpretation.
type StructuredResult struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
	Source  string          `json:"source,omitempty"`
}

// RoutedResult is the outcome of one query driven end-to-end by the
// coordinator.
type RoutedResult struct {
	ID         string        `json:"id"`
	Query      string        `json:"query"`
	Intent     Intent        `json:"intent"`
	Path       ExecutionPath `json:"path"`
	Freshness  Freshness     `json:"freshness"`
	ComputedAt time.Time     `json:"computed_at"`

	// Exactly one of the following is populated, by path.
	Report    *DangerReport     `json:"report,omitempty"`    // direct
	Steps     []ExecutionStep   `json:"steps,omitempty"`     // decompose
	Delegated *StructuredResult `json:"delegated,omitempty"` // delegate

	Summary string `json:"summary,omitempty"`

	// Degraded marks a result produced despite a collaborator failure or
	// timeout. Degraded results are never cached. Incomplete marks a
	// decomposition that aborted partway; completed steps are retained.
	Degraded   bool   `json:"degraded,omitempty"`
	Incomplete bool   `json:"incomplete,omitempty"`
	Cause      string `json:"cause,omitempty"`
}

// NewRoutedResult stamps a fresh result with an ID and computation time.
func NewRoutedResult(query string, intent Intent, path ExecutionPath) RoutedResult {
	return RoutedResult{
		ID:         uuid.NewString(),
		Query:      query,
		Intent:     intent,
		Path:       path,
		Freshness:  FreshnessLive,
		ComputedAt: clock.Now(),
	}
}

// IsDegraded reports whether the result must be kept out of the cache.
func (r RoutedResult) IsDegraded() bool { return r.Degraded }
