// Package plan expands complex query intents into ordered execution plans.
//
// A plan is a strictly sequential list of steps with backward-only data
// dependencies: step N may consume results of steps before it, never after.
// The decomposer performs no I/O — steps carry abstract data requirements
// that the coordinator resolves through its collaborators.
package plan

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/emberwatch/fire-danger-service/internal/domain"
)

// Forecast horizon bounds, in days. Queries that name no horizon get the
// default; absurd horizons are capped rather than rejected.
const (
	DefaultHorizonDays = 3
	MaxHorizonDays     = 10
)

var (
	horizonRe  = regexp.MustCompile(`(\d+)[\s-]day`)
	nextDaysRe = regexp.MustCompile(`next\s+(\d+)\s+days?`)
	betweenRe  = regexp.MustCompile(`between\s+(.+?)\s+and\s+(.+?)(?:[?.,;]|$)`)
	versusRe   = regexp.MustCompile(`([\w\s]+?)\s+(?:versus|vs\.?)\s+([\w\s]+?)(?:[?.,;]|$)`)
	subjectRe  = regexp.MustCompile(`(?:\bfor\b|\bin\b|\bat\b|\bnear\b)\s+(?:the\s+)?([a-z][a-z\s]*?)(?:[?.,;]|$)`)
)

// Decomposer builds execution plans for the decomposable intents.
type Decomposer struct{}

// New creates a Decomposer.
func New() *Decomposer { return &Decomposer{} }

// Decompose expands a query into an ordered step list for its intent.
// Intents that do not decompose (simple calculation, delegated) are an
// error: the coordinator routes those elsewhere.
func (d *Decomposer) Decompose(query string, intent domain.Intent) ([]domain.ExecutionStep, error) {
	lowered := strings.ToLower(query)

	switch intent {
	case domain.IntentComplexComparison:
		a, b := extractPair(lowered)
		return comparisonPlan(a, b), nil
	case domain.IntentTemporalForecast:
		return forecastPlan(extractSubject(lowered), extractHorizon(lowered)), nil
	case domain.IntentDecisionSupport:
		return decisionPlan(extractSubject(lowered)), nil
	default:
		return nil, fmt.Errorf("intent %s does not decompose", intent)
	}
}

// comparisonPlan: fetch both subjects, compute each, then synthesize the
// difference.
func comparisonPlan(a, b string) []domain.ExecutionStep {
	return []domain.ExecutionStep{
		{Index: 0, Op: domain.OpFetchConditions, Subject: a, Status: domain.StepPending},
		{Index: 1, Op: domain.OpFetchConditions, Subject: b, Status: domain.StepPending},
		{Index: 2, Op: domain.OpComputeDanger, Subject: a, DependsOn: []int{0}, Status: domain.StepPending},
		{Index: 3, Op: domain.OpComputeDanger, Subject: b, DependsOn: []int{1}, Status: domain.StepPending},
		{Index: 4, Op: domain.OpSynthesizeComparison, DependsOn: []int{2, 3}, Status: domain.StepPending},
	}
}

// forecastPlan: one projected-day step per day of the horizon, then a trend
// synthesis over all of them.
func forecastPlan(subject string, days int) []domain.ExecutionStep {
	steps := make([]domain.ExecutionStep, 0, days+1)
	deps := make([]int, 0, days)
	for day := 1; day <= days; day++ {
		steps = append(steps, domain.ExecutionStep{
			Index:   day - 1,
			Op:      domain.OpProjectDay,
			Subject: subject,
			Day:     day,
			Status:  domain.StepPending,
		})
		deps = append(deps, day-1)
	}
	steps = append(steps, domain.ExecutionStep{
		Index:     days,
		Op:        domain.OpSynthesizeTrend,
		Subject:   subject,
		DependsOn: deps,
		Status:    domain.StepPending,
	})
	return steps
}

// decisionPlan: fetch current conditions, compute danger, apply the
// recommendation rule.
func decisionPlan(subject string) []domain.ExecutionStep {
	return []domain.ExecutionStep{
		{Index: 0, Op: domain.OpFetchConditions, Subject: subject, Status: domain.StepPending},
		{Index: 1, Op: domain.OpComputeDanger, Subject: subject, DependsOn: []int{0}, Status: domain.StepPending},
		{Index: 2, Op: domain.OpRecommend, Subject: subject, DependsOn: []int{1}, Status: domain.StepPending},
	}
}

// Validate checks the backward-only dependency invariant. The decomposer
// constructs plans that satisfy it; the coordinator re-checks before
// executing anything.
func Validate(steps []domain.ExecutionStep) error {
	for i, s := range steps {
		if s.Index != i {
			return fmt.Errorf("step %d carries index %d", i, s.Index)
		}
		for _, dep := range s.DependsOn {
			if dep < 0 || dep >= i {
				return fmt.Errorf("step %d depends on step %d: dependencies must precede the step", i, dep)
			}
		}
	}
	return nil
}

func extractHorizon(lowered string) int {
	for _, re := range []*regexp.Regexp{nextDaysRe, horizonRe} {
		if m := re.FindStringSubmatch(lowered); len(m) == 2 {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return min(n, MaxHorizonDays)
			}
		}
	}
	return DefaultHorizonDays
}

// extractPair finds the two comparison subjects. Falls back to generic
// labels so a malformed comparison still produces a well-shaped plan.
func extractPair(lowered string) (string, string) {
	if m := betweenRe.FindStringSubmatch(lowered); len(m) == 3 {
		return cleanSubject(m[1]), cleanSubject(m[2])
	}
	if m := versusRe.FindStringSubmatch(lowered); len(m) == 3 {
		return cleanSubject(m[1]), cleanSubject(m[2])
	}
	return "subject a", "subject b"
}

func extractSubject(lowered string) string {
	if m := subjectRe.FindStringSubmatch(lowered); len(m) == 2 {
		if s := cleanSubject(m[1]); s != "" {
			return s
		}
	}
	return "local area"
}

var noiseWords = map[string]bool{
	"fire": true, "danger": true, "weather": true, "risk": true,
	"conditions": true, "forecast": true, "the": true, "a": true,
	"today": true, "tomorrow": true,
}

// cleanSubject strips filler so "fire danger in the napa valley today"
// yields "napa valley".
func cleanSubject(s string) string {
	fields := strings.Fields(strings.TrimSpace(s))
	kept := fields[:0]
	for _, f := range fields {
		if !noiseWords[f] {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}
