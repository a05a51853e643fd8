// Package classify maps free-text analytic queries to an execution intent.
//
// Classification is a cheap, deterministic, auditable table of regular
// expression rules — not natural language understanding. It performs no I/O
// and completes in microseconds, so it can sit on the hot path of every
// query.
package classify

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/emberwatch/fire-danger-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// RuleSpec is the serializable form of one classification rule, loadable
// from a YAML rules file for tuning without a rebuild.
type RuleSpec struct {
	Intent   string   `yaml:"intent"`
	Patterns []string `yaml:"patterns"`
}

type rule struct {
	intent   domain.Intent
	priority int
	patterns []*regexp.Regexp
}

// Rule priorities. When several rules match, the cheapest executable intent
// wins: direct calculation over decomposition, decomposition over
// delegation.
const (
	prioritySimple    = 0
	priorityDecompose = 1
	priorityDelegate  = 2
)

// Classifier resolves query text to an intent. Immutable after construction
// and safe for concurrent use.
type Classifier struct {
	rules  []rule
	logger *slog.Logger
}

// defaultSpecs is the built-in rule table. Order matters within a priority:
// the first matching rule wins ties, so the forecast rule precedes the
// comparison rule — a "5-day forecast comparison" executes as a forecast
// plan, which already covers the per-day work.
var defaultSpecs = []RuleSpec{
	{Intent: "temporal_forecast", Patterns: []string{
		`\bforecast\b`, `\bnext\s+\d+\s+days?\b`, `\b\d+[\s-]day\b`,
		`\btomorrow\b`, `\boutlook\b`, `\btrend\b`, `\bcoming\s+days\b`,
	}},
	{Intent: "complex_comparison", Patterns: []string{
		`\bcompare\b`, `\bversus\b`, `\bvs\.?\b`, `\bcontrast\b`,
		`\bdifference\s+between\b`, `\bbetween\b.*\band\b`,
	}},
	{Intent: "decision_support", Patterns: []string{
		`\bshould\b`, `\brecommend\b`, `\badvise\b`, `\bsafe\s+to\b`,
		`\bbest\b`, `\boptimal\b`, `\bdeploy\b`, `\bwhere\s+to\b`,
		`\bevacuat`,
	}},
	{Intent: "delegated", Patterns: []string{
		`\bshow\s+me\b`, `\blist\b`, `\brecords?\b`, `\bdatabase\b`,
		`\bhistor(?:y|ical)\b`, `\bhow\s+many\b`, `\bincidents?\b`,
		`\blast\s+(?:year|month|season)\b`, `\bacres\b`,
	}},
}

// New builds a Classifier from the built-in rule table.
func New(logger *slog.Logger) *Classifier {
	c, err := NewFromSpecs(defaultSpecs, logger)
	if err != nil {
		// The built-in table is compiled in tests; a failure here is a
		// programming error.
		panic(err)
	}
	return c
}

// NewFromSpecs builds a Classifier from explicit rule specs, validating
// intent names and compiling every pattern up front.
func NewFromSpecs(specs []RuleSpec, logger *slog.Logger) (*Classifier, error) {
	rules := make([]rule, 0, len(specs))
	for _, spec := range specs {
		intent, priority, err := intentForName(spec.Intent)
		if err != nil {
			return nil, err
		}
		r := rule{intent: intent, priority: priority}
		for _, p := range spec.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("compile rule pattern %q: %w", p, err)
			}
			r.patterns = append(r.patterns, re)
		}
		rules = append(rules, r)
	}
	return &Classifier{rules: rules, logger: logger}, nil
}

// LoadRulesFile reads a YAML rules file.
func LoadRulesFile(path string) ([]RuleSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var specs []RuleSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("rules file %s contains no rules", path)
	}
	return specs, nil
}

// Classify resolves text to (intent, confidence). A query carrying inline
// weather conditions is always a simple calculation, the cheapest path.
// When no rule matches, it returns ErrAmbiguousIntent along with the
// decision-support fallback intent, the safer general path.
func (c *Classifier) Classify(text string) (domain.Intent, float64, error) {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return domain.IntentDecisionSupport, 0, domain.ErrAmbiguousIntent
	}

	if _, ok := ExtractConditions(lowered); ok {
		return domain.IntentSimpleCalculation, 1.0, nil
	}

	best := -1
	matched := 0
	for i, r := range c.rules {
		if !r.matches(lowered) {
			continue
		}
		matched++
		if best == -1 || r.priority < c.rules[best].priority {
			best = i
		}
	}

	if best == -1 {
		if c.logger != nil {
			c.logger.Warn("no classification rule matched, falling back to decomposition", "query", text)
		}
		return domain.IntentDecisionSupport, 0, domain.ErrAmbiguousIntent
	}

	// A single matching rule is a confident call; overlapping rules lower
	// confidence but resolution stays deterministic via priority and table
	// order.
	confidence := 0.9
	if matched > 1 {
		confidence = 0.7
	}
	return c.rules[best].intent, confidence, nil
}

func (r rule) matches(lowered string) bool {
	for _, re := range r.patterns {
		if re.MatchString(lowered) {
			return true
		}
	}
	return false
}

func intentForName(name string) (domain.Intent, int, error) {
	switch name {
	case "simple_calculation":
		return domain.IntentSimpleCalculation, prioritySimple, nil
	case "complex_comparison":
		return domain.IntentComplexComparison, priorityDecompose, nil
	case "temporal_forecast":
		return domain.IntentTemporalForecast, priorityDecompose, nil
	case "decision_support":
		return domain.IntentDecisionSupport, priorityDecompose, nil
	case "delegated":
		return domain.IntentDelegated, priorityDelegate, nil
	default:
		return 0, 0, fmt.Errorf("unknown intent %q in rules", name)
	}
}
