package coordinator

import (
	"fmt"
	"strings"

	"github.com/emberwatch/fire-danger-service/internal/domain"
)

// recommendAgainstClass is the lowest classification at which the
// recommendation flips to "restrict": HIGH and above advise against
// burn activity.
const recommendAgainstClass = domain.DangerHigh

func summarizeReport(r domain.DangerReport) string {
	return fmt.Sprintf("fire danger %s (burning index %.1f, spread %.1f, energy release %.1f)",
		r.Class, r.Components.BurningIndex, r.Components.SpreadComponent, r.Components.EnergyReleaseComponent)
}

// synthesizeComparison reads two computed danger steps and states which
// subject rates higher and by how much.
func synthesizeComparison(steps []domain.ExecutionStep, step *domain.ExecutionStep, a, b *domain.StepResult) (string, error) {
	if a.Report == nil || b.Report == nil {
		return "", fmt.Errorf("step %d comparison dependencies carry no danger reports", step.Index)
	}

	subjectA := steps[step.DependsOn[0]].Subject
	subjectB := steps[step.DependsOn[1]].Subject
	biA := a.Report.Components.BurningIndex
	biB := b.Report.Components.BurningIndex

	switch {
	case biA > biB:
		return fmt.Sprintf("%s rates higher than %s: burning index %.1f vs %.1f (%s vs %s)",
			subjectA, subjectB, biA, biB, a.Report.Class, b.Report.Class), nil
	case biB > biA:
		return fmt.Sprintf("%s rates higher than %s: burning index %.1f vs %.1f (%s vs %s)",
			subjectB, subjectA, biB, biA, b.Report.Class, a.Report.Class), nil
	default:
		return fmt.Sprintf("%s and %s rate equally: burning index %.1f (%s)",
			subjectA, subjectB, biA, a.Report.Class), nil
	}
}

// synthesizeTrend summarizes per-day forecast reports into a direction
// (rising, easing, steady) plus the peak day.
func synthesizeTrend(steps []domain.ExecutionStep, step *domain.ExecutionStep) (string, error) {
	if len(step.DependsOn) == 0 {
		return "", fmt.Errorf("step %d trend synthesis has no day steps", step.Index)
	}

	var (
		parts   []string
		peakDay int
		peakBI  float64
		first   float64
		last    float64
	)
	for n, depIdx := range step.DependsOn {
		dep, err := dependencyResult(steps, step, n)
		if err != nil {
			return "", err
		}
		if dep.Report == nil {
			return "", fmt.Errorf("step %d has no danger report for day step %d", step.Index, depIdx)
		}
		day := steps[depIdx].Day
		bi := dep.Report.Components.BurningIndex
		parts = append(parts, fmt.Sprintf("day %d %s (%.1f)", day, dep.Report.Class, bi))

		if n == 0 {
			first = bi
		}
		last = bi
		if bi > peakBI || n == 0 {
			peakBI, peakDay = bi, day
		}
	}

	direction := "steady"
	if last > first+1 {
		direction = "rising"
	} else if last < first-1 {
		direction = "easing"
	}

	return fmt.Sprintf("%s fire danger over %d days is %s, peaking day %d: %s",
		step.Subject, len(step.DependsOn), direction, peakDay, strings.Join(parts, ", ")), nil
}

// recommend applies the activity threshold rule: HIGH or worse advises
// restricting burn activity, anything lower permits it with the usual
// caution.
func recommend(subject string, report domain.DangerReport) string {
	if report.Class >= recommendAgainstClass {
		return fmt.Sprintf("%s: fire danger is %s (burning index %.1f), recommend restricting burn activity and staging suppression resources",
			subject, report.Class, report.Components.BurningIndex)
	}
	return fmt.Sprintf("%s: fire danger is %s (burning index %.1f), burn activity permissible with standard precautions",
		subject, report.Class, report.Components.BurningIndex)
}
