package coordinator

import (
	"context"

	"github.com/emberwatch/fire-danger-service/internal/domain"
)

// ConditionsSource resolves current weather conditions for a subject (a
// region name or station identifier).
type ConditionsSource interface {
	Conditions(ctx context.Context, subject string) (domain.WeatherObservation, error)
}

// ForecastSource resolves a projected observation for a subject on a given
// forecast day (1 = tomorrow).
type ForecastSource interface {
	ProjectedConditions(ctx context.Context, subject string, day int) (domain.WeatherObservation, error)
}

// Delegate is the narrow capability interface for queries the core cannot
// answer itself, such as free-text-to-structured-query translation. The
// returned payload is opaque to the core and passed through uninterpreted.
type Delegate interface {
	Resolve(ctx context.Context, query string) (domain.StructuredResult, error)
}
