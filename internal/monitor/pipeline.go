package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/netwatch/netwatch/internal/alerts"
	"github.com/netwatch/netwatch/internal/broadcast"
	"github.com/netwatch/netwatch/internal/config"
	"github.com/netwatch/netwatch/internal/metrics"
	"github.com/netwatch/netwatch/internal/probe"
	"github.com/netwatch/netwatch/internal/registry"
	"github.com/netwatch/netwatch/internal/scheduler"
	"github.com/netwatch/netwatch/internal/scoring"
)

// EndpointStatus is one endpoint's full current state, assembled on
// demand for the API and WebSocket surfaces.
type EndpointStatus struct {
	Endpoint registry.Endpoint  `json:"endpoint"`
	Short    metrics.Aggregated `json:"short"`
	Long     metrics.Aggregated `json:"long"`
	Score    scoring.Components `json:"score"`
}

// Pipeline owns every stage between the endpoint registry and the
// broadcaster. Construct with New, then call Run once.
type Pipeline struct {
	reg     *registry.Registry
	agg     *metrics.Aggregator
	sched   *scheduler.Scheduler
	eval    *alerts.Evaluator
	bcast   *broadcast.Broadcaster
	weights scoring.Weights
	tick    time.Duration
	log     *slog.Logger
}

// New assembles the pipeline from validated config. The registry is
// loaded by the caller so a bad endpoint file fails before any stage
// spins up.
func New(cfg *config.Config, reg *registry.Registry, log *slog.Logger) (*Pipeline, error) {
	if log == nil {
		log = slog.Default()
	}

	eval, err := alerts.NewEvaluator(cfg.Alerts.Rules, log)
	if err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}

	agg := metrics.New(metrics.Config{
		ShortWindow: cfg.Monitor.ShortWindow,
		LongWindow:  cfg.Monitor.LongWindow,
		EWMAAlpha:   cfg.Monitor.EWMAAlpha,
	})

	prober := probe.New(probe.Config{
		Timeout:      cfg.Monitor.ProbeTimeout,
		Retries:      cfg.Monitor.Retries,
		RetryBackoff: cfg.Monitor.RetryBackoff,
	})

	sched := scheduler.New(scheduler.Config{
		Interval:  cfg.Monitor.ProbeInterval,
		JitterPct: cfg.Monitor.JitterPct,
		MaxProbes: cfg.Monitor.MaxProbes,
		Grace:     cfg.Monitor.Grace,
	}, prober, agg.Observe, log)

	return &Pipeline{
		reg:     reg,
		agg:     agg,
		sched:   sched,
		eval:    eval,
		bcast:   broadcast.New(log),
		weights: cfg.Scoring.Weights,
		tick:    cfg.Monitor.EvalInterval,
		log:     log,
	}, nil
}

// Broadcaster exposes the event fan-out for subscribers (webhook
// notifier, WebSocket hub, tests).
func (p *Pipeline) Broadcaster() *broadcast.Broadcaster { return p.bcast }

// Registry returns the session's endpoint registry.
func (p *Pipeline) Registry() *registry.Registry { return p.reg }

// ActiveAlerts lists currently open alerts.
func (p *Pipeline) ActiveAlerts() []alerts.ActiveAlert { return p.eval.Active() }

// Run starts the scheduler and the evaluation ticker and blocks until
// ctx is cancelled. On shutdown the scheduler drains first, then one
// final evaluation runs so no alert transition is lost, and the
// broadcaster closes.
func (p *Pipeline) Run(ctx context.Context) {
	p.log.Info("monitor: pipeline starting",
		"endpoints", p.reg.Len(), "eval_interval", p.tick)

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		p.sched.Run(ctx, p.reg.All())
	}()

	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.evaluate()
		case <-ctx.Done():
			<-schedDone
			p.evaluate() // drain tick
			p.bcast.Close()
			p.log.Info("monitor: pipeline stopped")
			return
		}
	}
}

// evaluate snapshots every enabled endpoint's short window, scores it,
// and runs the alert rules, publishing any transitions.
func (p *Pipeline) evaluate() {
	for _, ep := range p.reg.Enabled() {
		m, ok := p.agg.Snapshot(ep.ID, metrics.WindowShort)
		if !ok {
			continue
		}
		score := scoring.Score(m, p.weights)
		for _, ev := range p.eval.Evaluate(alerts.Input{
			EndpointID: ep.ID,
			Metrics:    m,
			Score:      score,
		}) {
			p.bcast.Publish(ev)
		}
	}
}

// Status assembles the full state for one endpoint.
func (p *Pipeline) Status(id string) (EndpointStatus, bool) {
	ep, ok := p.reg.Get(id)
	if !ok {
		return EndpointStatus{}, false
	}

	st := EndpointStatus{Endpoint: ep}
	if m, ok := p.agg.Snapshot(id, metrics.WindowShort); ok {
		st.Short = m
		st.Score = scoring.Score(m, p.weights)
	} else {
		st.Score = scoring.Unscored(id)
	}
	if m, ok := p.agg.Snapshot(id, metrics.WindowLong); ok {
		st.Long = m
	}
	return st, true
}

// Overview assembles the state of every endpoint, in registry order.
func (p *Pipeline) Overview() []EndpointStatus {
	eps := p.reg.All()
	out := make([]EndpointStatus, 0, len(eps))
	for _, ep := range eps {
		if st, ok := p.Status(ep.ID); ok {
			out = append(out, st)
		}
	}
	return out
}

// Metrics returns one window snapshot for one endpoint.
func (p *Pipeline) Metrics(id string, kind metrics.WindowKind) (metrics.Aggregated, bool) {
	if _, ok := p.reg.Get(id); !ok {
		return metrics.Aggregated{}, false
	}
	m, ok := p.agg.Snapshot(id, kind)
	if !ok {
		// Known endpoint with no samples yet: an empty snapshot, not a 404.
		return metrics.Aggregated{EndpointID: id}, true
	}
	return m, true
}

// Scores returns the current score of every endpoint with samples.
func (p *Pipeline) Scores() []scoring.Components {
	all := p.agg.SnapshotAll(metrics.WindowShort)
	out := make([]scoring.Components, 0, len(all))
	for _, m := range all {
		out = append(out, scoring.Score(m, p.weights))
	}
	return out
}
