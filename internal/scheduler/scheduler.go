package scheduler

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/netwatch/netwatch/internal/probe"
	"github.com/netwatch/netwatch/internal/registry"
)

const (
	defaultInterval  = 5 * time.Second
	defaultMaxProbes = 64
	defaultJitterPct = 10
	defaultGrace     = 3 * time.Second
)

// Prober runs one probe against one endpoint. Satisfied by
// *probe.Prober.
type Prober interface {
	Probe(ctx context.Context, ep registry.Endpoint) probe.Record
}

// Sink receives completed probe records, in completion order per
// endpoint.
type Sink func(probe.Record)

// Config tunes the scheduling loops.
type Config struct {
	// Interval between probes of the same endpoint.
	Interval time.Duration `yaml:"interval"`
	// JitterPct spreads each loop's ticks by ±N percent of Interval so
	// endpoints sharing a start time do not fire together.
	JitterPct int `yaml:"jitter_pct"`
	// MaxProbes bounds probes in flight across all endpoints.
	MaxProbes int64 `yaml:"max_probes"`
	// Grace is how long in-flight probes get to finish after shutdown.
	Grace time.Duration `yaml:"grace"`
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.MaxProbes <= 0 {
		c.MaxProbes = defaultMaxProbes
	}
	if c.JitterPct < 0 {
		c.JitterPct = defaultJitterPct
	}
	if c.Grace <= 0 {
		c.Grace = defaultGrace
	}
}

// Scheduler owns one goroutine per enabled endpoint and a shared
// semaphore bounding concurrent probes.
type Scheduler struct {
	cfg    Config
	prober Prober
	sink   Sink
	log    *slog.Logger
	sem    *semaphore.Weighted
	rng    *rand.Rand
	rngMu  sync.Mutex
}

func New(cfg Config, prober Prober, sink Sink, log *slog.Logger) *Scheduler {
	cfg.defaults()
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cfg:    cfg,
		prober: prober,
		sink:   sink,
		log:    log,
		sem:    semaphore.NewWeighted(cfg.MaxProbes),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run starts one loop per enabled endpoint and blocks until ctx is
// cancelled and every loop has stopped. Disabled endpoints are skipped.
func (s *Scheduler) Run(ctx context.Context, endpoints []registry.Endpoint) {
	var wg sync.WaitGroup
	started := 0
	for _, ep := range endpoints {
		if !ep.Enabled {
			s.log.Debug("scheduler: skipping disabled endpoint", "endpoint", ep.ID)
			continue
		}
		wg.Add(1)
		started++
		go func(ep registry.Endpoint) {
			defer wg.Done()
			s.loop(ctx, ep)
		}(ep)
	}
	s.log.Info("scheduler: started", "endpoints", started,
		"interval", s.cfg.Interval, "max_probes", s.cfg.MaxProbes)
	wg.Wait()
	s.log.Info("scheduler: stopped")
}

// loop probes one endpoint on a jittered interval until ctx is done.
// The first probe fires after a random fraction of the interval so
// startup does not burst every endpoint at once.
func (s *Scheduler) loop(ctx context.Context, ep registry.Endpoint) {
	timer := time.NewTimer(s.initialDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.probeOnce(ctx, ep)

		select {
		case <-ctx.Done():
			return
		default:
		}
		timer.Reset(s.jittered())
	}
}

// probeOnce acquires a concurrency slot, runs the probe, and forwards
// the record. A probe still in flight at cancellation gets Grace to
// finish and its record still lands, so the final evaluation sees it;
// only a probe cut off by grace expiry is abandoned unreported.
func (s *Scheduler) probeOnce(ctx context.Context, ep registry.Endpoint) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.sem.Release(1)

	probeCtx := ctx
	if s.cfg.Grace > 0 {
		// Detach from the parent so cancellation starts the grace
		// clock instead of killing the dial mid-handshake.
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithCancel(context.Background())
		defer cancel()
		stop := context.AfterFunc(ctx, func() {
			time.AfterFunc(s.cfg.Grace, cancel)
		})
		defer stop()
	}

	rec := s.prober.Probe(probeCtx, ep)

	if probeCtx.Err() != nil {
		return
	}
	s.sink(rec)
}

// jittered returns Interval ± JitterPct percent.
func (s *Scheduler) jittered() time.Duration {
	if s.cfg.JitterPct == 0 {
		return s.cfg.Interval
	}
	span := int64(s.cfg.Interval) * int64(s.cfg.JitterPct) / 100
	s.rngMu.Lock()
	off := s.rng.Int63n(2*span+1) - span
	s.rngMu.Unlock()
	return s.cfg.Interval + time.Duration(off)
}

// initialDelay spreads loop start times across [0, Interval).
func (s *Scheduler) initialDelay() time.Duration {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return time.Duration(s.rng.Int63n(int64(s.cfg.Interval)))
}
