package domain

// StepOp identifies the operation a decomposition step performs.
type StepOp string

const (
	// OpFetchConditions resolves current conditions for a subject through
	// the conditions collaborator.
	OpFetchConditions StepOp = "fetch_conditions"
	// OpProjectDay resolves one projected-day observation through the
	// forecast collaborator and computes its fire danger.
	OpProjectDay StepOp = "project_day"
	// OpComputeDanger runs the calculation engine on a prior step's
	// observation.
	OpComputeDanger StepOp = "compute_danger"
	// OpSynthesizeComparison combines two computed danger reports into a
	// difference summary.
	OpSynthesizeComparison StepOp = "synthesize_comparison"
	// OpSynthesizeTrend summarizes the per-day reports of a forecast plan.
	OpSynthesizeTrend StepOp = "synthesize_trend"
	// OpRecommend applies the threshold recommendation rule to a computed
	// danger report.
	OpRecommend StepOp = "recommend"
)

// StepStatus tracks a step through its lifetime.
type StepStatus string

const (
	StepPending StepStatus = "PENDING"
	StepDone    StepStatus = "DONE"
	StepFailed  StepStatus = "FAILED"
)

// StepResult is the value a completed step leaves behind for later steps.
type StepResult struct {
	Observation *WeatherObservation `json:"observation,omitempty"`
	Report      *DangerReport       `json:"report,omitempty"`
	Summary     string              `json:"summary,omitempty"`
}

// ExecutionStep is one unit of a multi-step query plan. A step may depend
// only on steps before it; the coordinator executes steps strictly in index
// order and never starts step N+1 before step N completes.
type ExecutionStep struct {
	Index     int         `json:"index"`
	Op        StepOp      `json:"op"`
	Subject   string      `json:"subject,omitempty"`
	Day       int         `json:"day,omitempty"` // 1-based forecast day for OpProjectDay
	DependsOn []int       `json:"depends_on,omitempty"`
	Status    StepStatus  `json:"status"`
	Result    *StepResult `json:"result,omitempty"`
	Failure   string      `json:"failure,omitempty"`
}
