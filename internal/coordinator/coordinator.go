// Package coordinator drives one query end-to-end: cache check, intent
// classification, routing to direct computation, decomposition, or
// delegation, and result caching.
//
// Each query owns an independent execution; the only state shared across
// queries is the freshness cache. Collaborator failures surface as degraded
// results carrying a human-readable cause — never as a panic and never as a
// cached value.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emberwatch/fire-danger-service/internal/cache"
	"github.com/emberwatch/fire-danger-service/internal/classify"
	"github.com/emberwatch/fire-danger-service/internal/domain"
	"github.com/emberwatch/fire-danger-service/internal/nfdrs"
	"github.com/emberwatch/fire-danger-service/internal/observability"
	"github.com/emberwatch/fire-danger-service/internal/plan"
	"golang.org/x/sync/singleflight"
)

// Options bound how long the coordinator waits on each path.
type Options struct {
	// DirectTimeout caps a direct calculation, the common case.
	DirectTimeout time.Duration
	// QueryTimeout caps any query end-to-end.
	QueryTimeout time.Duration
	// CollaboratorTimeout caps a single collaborator call.
	CollaboratorTimeout time.Duration
	// RetryMax is the number of retries (beyond the first attempt) for
	// idempotent collaborator reads.
	RetryMax int
	// RetryBackoff is the initial backoff between retries; it doubles per
	// retry up to maxBackoff.
	RetryBackoff time.Duration
}

// DefaultOptions returns the production timeout ceilings: sub-second for
// the direct path, 30 seconds end-to-end.
func DefaultOptions() Options {
	return Options{
		DirectTimeout:       time.Second,
		QueryTimeout:        30 * time.Second,
		CollaboratorTimeout: 5 * time.Second,
		RetryMax:            2,
		RetryBackoff:        200 * time.Millisecond,
	}
}

const maxBackoff = 5 * time.Second

// Coordinator is the per-process query router. It is safe for concurrent
// use; each Execute call runs an independent state machine.
type Coordinator struct {
	engine     *nfdrs.Engine
	classifier *classify.Classifier
	decomposer *plan.Decomposer
	cache      *cache.Cache
	conditions ConditionsSource
	forecast   ForecastSource
	delegate   Delegate
	logger     *slog.Logger
	metrics    *observability.Metrics
	opts       Options

	// group collapses concurrent misses on the same key into a single
	// computation.
	group singleflight.Group
}

// New wires a Coordinator. conditions and forecast are required; delegate
// may be nil, in which case delegated queries degrade with a clear cause.
func New(
	engine *nfdrs.Engine,
	classifier *classify.Classifier,
	decomposer *plan.Decomposer,
	c *cache.Cache,
	conditions ConditionsSource,
	forecast ForecastSource,
	delegate Delegate,
	logger *slog.Logger,
	metrics *observability.Metrics,
	opts Options,
) *Coordinator {
	return &Coordinator{
		engine:     engine,
		classifier: classifier,
		decomposer: decomposer,
		cache:      c,
		conditions: conditions,
		forecast:   forecast,
		delegate:   delegate,
		logger:     logger,
		metrics:    metrics,
		opts:       opts,
	}
}

// Execute drives a query through RECEIVED → CACHE_CHECK → CLASSIFY →
// {DIRECT | DECOMPOSE | DELEGATE} → CACHE_STORE → RETURN.
func (co *Coordinator) Execute(ctx context.Context, query string) (domain.RoutedResult, error) {
	co.metrics.QueriesInFlight.Inc()
	defer co.metrics.QueriesInFlight.Dec()

	key := cache.Fingerprint(query)

	cached, tier, ok, err := co.cache.Get(key)
	if err != nil {
		// A degraded value in the cache is a bug; refuse to serve and say so.
		co.logger.Error("cache inconsistency detected", "key", key, "error", err)
		co.metrics.QueriesTotal.WithLabelValues("unknown", "cached", "error").Inc()
		return domain.RoutedResult{}, err
	}
	if ok {
		co.metrics.CacheLookups.WithLabelValues("hit", string(tier)).Inc()
		cached.Freshness = tier
		return cached, nil
	}
	co.metrics.CacheLookups.WithLabelValues("miss", string(domain.FreshnessExpired)).Inc()

	// Collapse concurrent misses for the same key into one computation.
	v, err, _ := co.group.Do(key, func() (any, error) {
		return co.computeAndStore(ctx, key, query)
	})
	if err != nil {
		return domain.RoutedResult{}, err
	}
	return v.(domain.RoutedResult), nil
}

func (co *Coordinator) computeAndStore(ctx context.Context, key, query string) (domain.RoutedResult, error) {
	// Re-check under the flight: a caller that raced past the first lookup
	// may arrive after an earlier flight already stored the result.
	if cached, tier, ok, err := co.cache.Get(key); err != nil {
		return domain.RoutedResult{}, err
	} else if ok {
		co.metrics.CacheLookups.WithLabelValues("hit", string(tier)).Inc()
		cached.Freshness = tier
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, co.opts.QueryTimeout)
	defer cancel()

	start := time.Now()

	intent, confidence, err := co.classifier.Classify(query)
	if err != nil {
		if !errors.Is(err, domain.ErrAmbiguousIntent) {
			return domain.RoutedResult{}, err
		}
		// Ambiguity falls back to the decomposition path, the safer general
		// route; logged so the rule table can be tuned later.
		co.logger.Warn("ambiguous query intent, decomposing", "query", query)
	}
	co.logger.Debug("query classified", "intent", intent.String(), "confidence", confidence)

	var result domain.RoutedResult
	switch {
	case intent == domain.IntentSimpleCalculation:
		result, err = co.runDirect(ctx, query)
	case intent == domain.IntentDelegated:
		result = co.runDelegate(ctx, query)
	default:
		result, err = co.runDecompose(ctx, query, intent)
	}
	if err != nil {
		co.metrics.QueriesTotal.WithLabelValues(intent.String(), "none", "error").Inc()
		return domain.RoutedResult{}, err
	}

	co.metrics.QueryDuration.WithLabelValues(string(result.Path)).Observe(time.Since(start).Seconds())

	if result.Degraded {
		// Degraded results are never cached: a transient upstream failure
		// must not poison future lookups.
		co.metrics.QueriesTotal.WithLabelValues(intent.String(), string(result.Path), "degraded").Inc()
		return result, nil
	}

	if err := co.cache.Put(key, result); err != nil {
		return domain.RoutedResult{}, err
	}
	co.metrics.CacheEntries.Set(float64(co.cache.Len()))
	co.metrics.QueriesTotal.WithLabelValues(intent.String(), string(result.Path), "ok").Inc()
	return result, nil
}

// runDirect handles SIMPLE_CALCULATION, bypassing decomposition and
// delegation entirely to keep the common case fast.
func (co *Coordinator) runDirect(ctx context.Context, query string) (domain.RoutedResult, error) {
	ctx, cancel := context.WithTimeout(ctx, co.opts.DirectTimeout)
	defer cancel()

	var obs domain.WeatherObservation
	if cond, ok := classify.ExtractConditions(query); ok {
		var err error
		obs, err = domain.NewWeatherObservation(
			cond.TemperatureF, cond.RelativeHumidityPct, cond.WindSpeedMPH, cond.PrecipitationIn,
			time.Now().UTC(), "")
		if err != nil {
			// Bad input is fatal for this call and never retried.
			return domain.RoutedResult{}, err
		}
	} else {
		var err error
		obs, err = co.fetchConditions(ctx, "local area")
		if err != nil {
			return co.degraded(query, domain.IntentSimpleCalculation, domain.PathDirect, err), nil
		}
	}

	report, err := co.engine.CalculateFireDanger(obs)
	if err != nil {
		return domain.RoutedResult{}, err
	}

	result := domain.NewRoutedResult(query, domain.IntentSimpleCalculation, domain.PathDirect)
	result.Report = &report
	result.Summary = summarizeReport(report)
	return result, nil
}

// runDecompose expands the query into a plan and executes it strictly in
// order. A failed step aborts the rest, but completed steps are reported
// rather than discarded.
func (co *Coordinator) runDecompose(ctx context.Context, query string, intent domain.Intent) (domain.RoutedResult, error) {
	steps, err := co.decomposer.Decompose(query, intent)
	if err != nil {
		return domain.RoutedResult{}, err
	}
	if err := plan.Validate(steps); err != nil {
		return domain.RoutedResult{}, fmt.Errorf("invalid plan: %w", err)
	}

	result := domain.NewRoutedResult(query, intent, domain.PathDecompose)

	for i := range steps {
		if ctx.Err() != nil {
			// Discarding the coordinator between steps cancels the rest.
			result.Steps = steps
			result.Degraded = true
			result.Incomplete = true
			result.Cause = fmt.Sprintf("cancelled before step %d: %v", i, ctx.Err())
			return result, nil
		}

		if err := co.executeStep(ctx, steps, i); err != nil {
			steps[i].Status = domain.StepFailed
			steps[i].Failure = err.Error()
			co.metrics.StepFailures.Inc()
			co.logger.Warn("decomposition step failed, aborting plan",
				"step", i, "op", string(steps[i].Op), "error", err)

			result.Steps = steps
			result.Degraded = true
			result.Incomplete = true
			result.Cause = fmt.Sprintf("step %d (%s) failed: %v", i, steps[i].Op, err)
			return result, nil
		}
		steps[i].Status = domain.StepDone
		co.metrics.StepsExecuted.Inc()
	}

	result.Steps = steps
	if last := steps[len(steps)-1]; last.Result != nil {
		result.Summary = last.Result.Summary
	}
	return result, nil
}

// executeStep resolves one step's data requirement and computes its result.
func (co *Coordinator) executeStep(ctx context.Context, steps []domain.ExecutionStep, i int) error {
	step := &steps[i]

	switch step.Op {
	case domain.OpFetchConditions:
		obs, err := co.fetchConditions(ctx, step.Subject)
		if err != nil {
			return err
		}
		step.Result = &domain.StepResult{Observation: &obs}

	case domain.OpProjectDay:
		var obs domain.WeatherObservation
		err := co.withRetry(ctx, "forecast", func(callCtx context.Context) error {
			var ferr error
			obs, ferr = co.forecast.ProjectedConditions(callCtx, step.Subject, step.Day)
			return ferr
		})
		if err != nil {
			return err
		}
		report, err := co.engine.CalculateFireDanger(obs)
		if err != nil {
			return err
		}
		step.Result = &domain.StepResult{Observation: &obs, Report: &report}

	case domain.OpComputeDanger:
		dep, err := dependencyResult(steps, step, 0)
		if err != nil {
			return err
		}
		if dep.Observation == nil {
			return fmt.Errorf("step %d has no observation to compute from", step.Index)
		}
		report, err := co.engine.CalculateFireDanger(*dep.Observation)
		if err != nil {
			return err
		}
		step.Result = &domain.StepResult{Observation: dep.Observation, Report: &report}

	case domain.OpSynthesizeComparison:
		a, err := dependencyResult(steps, step, 0)
		if err != nil {
			return err
		}
		b, err := dependencyResult(steps, step, 1)
		if err != nil {
			return err
		}
		summary, err := synthesizeComparison(steps, step, a, b)
		if err != nil {
			return err
		}
		step.Result = &domain.StepResult{Summary: summary}

	case domain.OpSynthesizeTrend:
		summary, err := synthesizeTrend(steps, step)
		if err != nil {
			return err
		}
		step.Result = &domain.StepResult{Summary: summary}

	case domain.OpRecommend:
		dep, err := dependencyResult(steps, step, 0)
		if err != nil {
			return err
		}
		if dep.Report == nil {
			return fmt.Errorf("step %d has no danger report to recommend from", step.Index)
		}
		step.Result = &domain.StepResult{Report: dep.Report, Summary: recommend(step.Subject, *dep.Report)}

	default:
		return fmt.Errorf("unknown step op %q", step.Op)
	}
	return nil
}

// runDelegate hands the query to the external delegate. Failures — including
// a missing delegate — degrade instead of erroring so the caller always gets
// a well-formed result with a cause.
func (co *Coordinator) runDelegate(ctx context.Context, query string) domain.RoutedResult {
	if co.delegate == nil {
		return co.degraded(query, domain.IntentDelegated, domain.PathDelegate,
			errors.New("no delegate collaborator configured"))
	}

	start := time.Now()
	var payload domain.StructuredResult
	err := co.withRetry(ctx, "delegate", func(callCtx context.Context) error {
		var derr error
		payload, derr = co.delegate.Resolve(callCtx, query)
		return derr
	})
	co.metrics.DelegateDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		return co.degraded(query, domain.IntentDelegated, domain.PathDelegate, err)
	}
	if ctx.Err() != nil {
		// The caller is gone; a late result must be discarded, not cached.
		return co.degraded(query, domain.IntentDelegated, domain.PathDelegate, ctx.Err())
	}

	result := domain.NewRoutedResult(query, domain.IntentDelegated, domain.PathDelegate)
	result.Delegated = &payload
	result.Summary = fmt.Sprintf("delegated to %s", payload.Source)
	return result
}

func (co *Coordinator) fetchConditions(ctx context.Context, subject string) (domain.WeatherObservation, error) {
	var obs domain.WeatherObservation
	err := co.withRetry(ctx, "conditions", func(callCtx context.Context) error {
		var ferr error
		obs, ferr = co.conditions.Conditions(callCtx, subject)
		return ferr
	})
	return obs, err
}

// withRetry runs an idempotent collaborator read with bounded exponential
// backoff. Validation errors are not retried: identical invalid input
// cannot succeed.
func (co *Coordinator) withRetry(ctx context.Context, name string, fn func(context.Context) error) error {
	backoff := co.opts.RetryBackoff
	var lastErr error

	for attempt := 0; attempt <= co.opts.RetryMax; attempt++ {
		if attempt > 0 {
			co.metrics.CollaboratorRetries.Inc()
			if !sleepWithContext(ctx, backoff) {
				break
			}
			backoff = nextBackoff(backoff, maxBackoff)
		}

		callCtx, cancel := context.WithTimeout(ctx, co.opts.CollaboratorTimeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if domain.IsValidation(err) || ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return &domain.CollaboratorError{Collaborator: name, Err: lastErr}
}

func (co *Coordinator) degraded(query string, intent domain.Intent, path domain.ExecutionPath, cause error) domain.RoutedResult {
	result := domain.NewRoutedResult(query, intent, path)
	result.Degraded = true
	result.Cause = cause.Error()
	co.logger.Warn("query degraded", "intent", intent.String(), "path", string(path), "cause", cause)
	return result
}

func dependencyResult(steps []domain.ExecutionStep, step *domain.ExecutionStep, n int) (*domain.StepResult, error) {
	if n >= len(step.DependsOn) {
		return nil, fmt.Errorf("step %d missing dependency %d", step.Index, n)
	}
	dep := steps[step.DependsOn[n]]
	if dep.Status != domain.StepDone || dep.Result == nil {
		return nil, fmt.Errorf("step %d depends on incomplete step %d", step.Index, dep.Index)
	}
	return dep.Result, nil
}

func nextBackoff(current, ceiling time.Duration) time.Duration {
	next := current * 2
	if next > ceiling {
		return ceiling
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
