package alerts

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/netwatch/netwatch/internal/metrics"
	"github.com/netwatch/netwatch/internal/scoring"
)

// Event is emitted once per state transition: when a rule triggers and
// again when it resolves. ResolvedAt is nil on the trigger event.
type Event struct {
	RuleID      string     `json:"rule_id"`
	EndpointID  string     `json:"endpoint_id"`
	Severity    Severity   `json:"severity"`
	Message     string     `json:"message"`
	Value       float64    `json:"value"`
	TriggeredAt time.Time  `json:"triggered_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Resolved reports whether this event closes an alert.
func (e Event) Resolved() bool { return e.ResolvedAt != nil }

// Input is one endpoint's snapshot for a single evaluation tick.
type Input struct {
	EndpointID string
	Metrics    metrics.Aggregated
	Score      scoring.Components
}

// ruleState tracks one (endpoint, rule) pair between ticks.
type ruleState struct {
	triggered bool
	since     time.Time
	breaches  int
	clears    int
}

// Evaluator runs every rule against every endpoint snapshot it is
// handed. State transitions follow sustain counts in both directions:
// Sustain consecutive breaches to trigger, ClearAfter consecutive
// clean ticks to resolve. While triggered, further breaches are
// absorbed without re-emitting.
type Evaluator struct {
	rules []Rule
	log   *slog.Logger
	now   func() time.Time

	mu     sync.Mutex
	states map[string]*ruleState // keyed by endpointID + "\x00" + ruleID
}

// NewEvaluator validates and normalizes the rule set. An invalid rule
// fails construction so a bad config never silently disables alerting.
func NewEvaluator(rules []Rule, log *slog.Logger) (*Evaluator, error) {
	if log == nil {
		log = slog.Default()
	}
	normalized := make([]Rule, len(rules))
	for i, r := range rules {
		r.Normalize()
		if err := r.Validate(); err != nil {
			return nil, err
		}
		normalized[i] = r
	}
	return &Evaluator{
		rules:  normalized,
		log:    log,
		now:    time.Now,
		states: make(map[string]*ruleState),
	}, nil
}

// Evaluate applies every rule to one endpoint snapshot and returns the
// events produced by state transitions on this tick.
func (e *Evaluator) Evaluate(in Input) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	var events []Event
	for _, rule := range e.rules {
		value, ok := metricValue(rule.Metric, in)
		if !ok {
			continue
		}

		key := in.EndpointID + "\x00" + rule.ID
		st := e.states[key]
		if st == nil {
			st = &ruleState{}
			e.states[key] = st
		}

		breaching := rule.Op.apply(value, rule.Threshold)
		if ev, emitted := st.step(rule, in.EndpointID, value, breaching, e.now()); emitted {
			events = append(events, ev)
			e.log.Info("alert transition",
				"rule", rule.ID,
				"endpoint", in.EndpointID,
				"severity", rule.Severity,
				"resolved", ev.Resolved(),
				"value", value)
		}
	}
	return events
}

// step advances one state machine by one tick.
func (st *ruleState) step(rule Rule, endpointID string, value float64, breaching bool, now time.Time) (Event, bool) {
	if breaching {
		st.clears = 0
		if st.triggered {
			return Event{}, false
		}
		st.breaches++
		if st.breaches < rule.Sustain {
			return Event{}, false
		}
		st.triggered = true
		st.since = now
		return Event{
			RuleID:     rule.ID,
			EndpointID: endpointID,
			Severity:   rule.Severity,
			Message: fmt.Sprintf("%s %s %g (observed %.2f) for %d consecutive windows",
				rule.Metric, rule.Op, rule.Threshold, value, rule.Sustain),
			Value:       value,
			TriggeredAt: now,
		}, true
	}

	st.breaches = 0
	if !st.triggered {
		return Event{}, false
	}
	st.clears++
	if st.clears < rule.ClearAfter {
		return Event{}, false
	}

	triggeredAt := st.since
	resolvedAt := now
	*st = ruleState{}
	return Event{
		RuleID:     rule.ID,
		EndpointID: endpointID,
		Severity:   rule.Severity,
		Message: fmt.Sprintf("%s back within range (observed %.2f)",
			rule.Metric, value),
		Value:       value,
		TriggeredAt: triggeredAt,
		ResolvedAt:  &resolvedAt,
	}, true
}

// ActiveAlert describes one currently open (endpoint, rule) pair.
type ActiveAlert struct {
	RuleID      string    `json:"rule_id"`
	EndpointID  string    `json:"endpoint_id"`
	Severity    Severity  `json:"severity"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// Active lists all currently triggered alerts, ordered by endpoint
// then rule.
func (e *Evaluator) Active() []ActiveAlert {
	e.mu.Lock()
	defer e.mu.Unlock()

	byID := make(map[string]Rule, len(e.rules))
	for _, r := range e.rules {
		byID[r.ID] = r
	}

	var out []ActiveAlert
	for key, st := range e.states {
		if !st.triggered {
			continue
		}
		endpointID, ruleID, _ := strings.Cut(key, "\x00")
		out = append(out, ActiveAlert{
			RuleID:      ruleID,
			EndpointID:  endpointID,
			Severity:    byID[ruleID].Severity,
			TriggeredAt: st.since,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EndpointID != out[j].EndpointID {
			return out[i].EndpointID < out[j].EndpointID
		}
		return out[i].RuleID < out[j].RuleID
	})
	return out
}

// metricValue extracts the rule's metric from the snapshot. Score-based
// metrics are unavailable while the endpoint is unscored.
func metricValue(m Metric, in Input) (float64, bool) {
	switch m {
	case MetricOverallScore:
		return in.Score.Overall, in.Score.Scored
	case MetricAvailabilityScore:
		return in.Score.AvailabilityScore, in.Score.Scored
	case MetricLossPct:
		return in.Metrics.LossPct, in.Metrics.Samples > 0
	case MetricJitterMs:
		return in.Metrics.JitterMs, in.Metrics.Samples > 0
	case MetricAvgLatencyMs:
		return in.Metrics.AvgMs, in.Metrics.Samples > 0
	}
	return 0, false
}
