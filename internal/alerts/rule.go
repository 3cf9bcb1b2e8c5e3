package alerts

import (
	"fmt"
)

// Severity ranks how urgent an alert is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func (s Severity) valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

// Metric selects which value a rule compares against its threshold.
type Metric string

const (
	MetricOverallScore      Metric = "overall_score"
	MetricLossPct           Metric = "loss_pct"
	MetricAvailabilityScore Metric = "availability_score"
	MetricJitterMs          Metric = "jitter_ms"
	MetricAvgLatencyMs      Metric = "avg_latency_ms"
)

func (m Metric) valid() bool {
	switch m {
	case MetricOverallScore, MetricLossPct, MetricAvailabilityScore,
		MetricJitterMs, MetricAvgLatencyMs:
		return true
	}
	return false
}

// Op is the comparator applied between the observed value and the
// rule threshold.
type Op string

const (
	OpLess      Op = "<"
	OpLessEq    Op = "<="
	OpGreater   Op = ">"
	OpGreaterEq Op = ">="
)

func (o Op) apply(value, threshold float64) bool {
	switch o {
	case OpLess:
		return value < threshold
	case OpLessEq:
		return value <= threshold
	case OpGreater:
		return value > threshold
	case OpGreaterEq:
		return value >= threshold
	}
	return false
}

func (o Op) valid() bool {
	switch o {
	case OpLess, OpLessEq, OpGreater, OpGreaterEq:
		return true
	}
	return false
}

// defaultSustain is the number of consecutive breaching ticks required
// before a rule triggers when the rule does not set its own.
const defaultSustain = 3

// Rule is one threshold condition evaluated per endpoint on every tick.
type Rule struct {
	ID        string   `yaml:"id" json:"id"`
	Metric    Metric   `yaml:"metric" json:"metric"`
	Op        Op       `yaml:"op" json:"op"`
	Threshold float64  `yaml:"threshold" json:"threshold"`
	Severity  Severity `yaml:"severity" json:"severity"`

	// Sustain is how many consecutive breaching ticks trigger the
	// rule. ClearAfter is the symmetric count of non-breaching ticks
	// needed to resolve it; zero means "same as Sustain".
	Sustain    int `yaml:"sustain" json:"sustain"`
	ClearAfter int `yaml:"clear_after" json:"clear_after"`
}

// Normalize fills rule defaults in place.
func (r *Rule) Normalize() {
	if r.Severity == "" {
		r.Severity = SeverityWarning
	}
	if r.Sustain <= 0 {
		r.Sustain = defaultSustain
	}
	if r.ClearAfter <= 0 {
		r.ClearAfter = r.Sustain
	}
}

// Validate reports the first invalid field, by name.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("alerts: rule id is empty")
	}
	if !r.Metric.valid() {
		return fmt.Errorf("alerts: rule %q: unknown metric %q", r.ID, r.Metric)
	}
	if !r.Op.valid() {
		return fmt.Errorf("alerts: rule %q: unknown comparator %q", r.ID, r.Op)
	}
	if !r.Severity.valid() {
		return fmt.Errorf("alerts: rule %q: unknown severity %q", r.ID, r.Severity)
	}
	if r.Sustain <= 0 {
		return fmt.Errorf("alerts: rule %q: sustain must be positive, got %d", r.ID, r.Sustain)
	}
	if r.ClearAfter <= 0 {
		return fmt.Errorf("alerts: rule %q: clear_after must be positive, got %d", r.ID, r.ClearAfter)
	}
	return nil
}
