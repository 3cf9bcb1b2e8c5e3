package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/netwatch/netwatch/internal/probe"
)

// WindowKind selects which sliding window a snapshot is computed from.
type WindowKind string

const (
	WindowShort WindowKind = "short"
	WindowLong  WindowKind = "long"
)

// Default aggregation parameters.
const (
	DefaultShortWindow = 60
	DefaultLongWindow  = 720
	DefaultEWMAAlpha   = 0.2
)

// Config holds aggregation window sizes and the jitter smoothing factor.
type Config struct {
	ShortWindow int
	LongWindow  int
	EWMAAlpha   float64
}

// Aggregated is a point-in-time statistical summary of one endpoint's window.
// It is always a fresh value object derived from a window snapshot.
type Aggregated struct {
	EndpointID string     `json:"endpoint_id"`
	Window     WindowKind `json:"window"`

	AvgMs    float64 `json:"avg_ms"`
	MinMs    float64 `json:"min_ms"`
	MaxMs    float64 `json:"max_ms"`
	MedianMs float64 `json:"median_ms"`
	P95Ms    float64 `json:"p95_ms"`
	P99Ms    float64 `json:"p99_ms"`

	JitterMs    float64 `json:"jitter_ms"`
	LossPct     float64 `json:"loss_pct"`
	SuccessRate float64 `json:"success_rate"`
	StdDevMs    float64 `json:"std_dev_ms"`

	Samples   int           `json:"samples"`
	WindowAge time.Duration `json:"window_age"`
}

// shard is the per-endpoint aggregation state. A single scheduler loop
// writes it; snapshot readers briefly take the shard mutex to copy values
// out. No lock is ever shared across endpoints.
type shard struct {
	mu sync.Mutex

	short *window
	long  *window

	jitterMs float64
	lastRTT  float64
	hasLast  bool
}

// Aggregator owns all endpoint shards and fans probe records into them.
type Aggregator struct {
	cfg Config
	now func() time.Time

	mu     sync.RWMutex
	shards map[string]*shard
}

// New creates an Aggregator. Zero-valued config fields fall back to the
// package defaults; sizes are assumed validated by the config layer.
func New(cfg Config) *Aggregator {
	if cfg.ShortWindow <= 0 {
		cfg.ShortWindow = DefaultShortWindow
	}
	if cfg.LongWindow <= 0 {
		cfg.LongWindow = DefaultLongWindow
	}
	if cfg.EWMAAlpha <= 0 || cfg.EWMAAlpha > 1 {
		cfg.EWMAAlpha = DefaultEWMAAlpha
	}
	return &Aggregator{
		cfg:    cfg,
		now:    time.Now,
		shards: make(map[string]*shard),
	}
}

// Observe folds one probe record into the endpoint's short and long windows
// and advances the EWMA jitter estimate.
func (a *Aggregator) Observe(rec probe.Record) {
	sh := a.shardFor(rec.EndpointID)

	s := sample{
		at:  rec.Timestamp,
		rtt: float64(rec.RTT) / float64(time.Millisecond),
		ok:  rec.OK,
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.short.push(s)
	sh.long.push(s)

	// Jitter is a pure fold over the successful latency sequence: failed
	// probes leave both the estimate and the last-RTT anchor untouched.
	if s.ok {
		if sh.hasLast {
			delta := math.Abs(s.rtt - sh.lastRTT)
			sh.jitterMs = a.cfg.EWMAAlpha*delta + (1-a.cfg.EWMAAlpha)*sh.jitterMs
		}
		sh.lastRTT = s.rtt
		sh.hasLast = true
	}
}

// Snapshot computes an Aggregated summary for one endpoint from the chosen
// window. ok is false when the endpoint has never been observed.
func (a *Aggregator) Snapshot(endpointID string, kind WindowKind) (Aggregated, bool) {
	a.mu.RLock()
	sh, ok := a.shards[endpointID]
	a.mu.RUnlock()
	if !ok {
		return Aggregated{}, false
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	w := sh.short
	if kind == WindowLong {
		w = sh.long
	}

	out := Aggregated{
		EndpointID: endpointID,
		Window:     kind,
		JitterMs:   sh.jitterMs,
		Samples:    w.len(),
	}

	if w.count == 0 {
		return out, true
	}

	if oldest, has := w.oldest(); has {
		out.WindowAge = a.now().Sub(oldest)
	}

	out.LossPct = 100 * float64(w.count-w.successes) / float64(w.count)
	out.SuccessRate = 100 - out.LossPct

	if w.successes > 0 {
		n := float64(w.successes)
		out.AvgMs = w.sumMs / n
		variance := w.sumSqMs/n - out.AvgMs*out.AvgMs
		if variance > 0 {
			out.StdDevMs = math.Sqrt(variance)
		}

		lat := w.latencies()
		sort.Float64s(lat)
		out.MinMs = lat[0]
		out.MaxMs = lat[len(lat)-1]
		out.MedianMs = percentile(lat, 50)
		out.P95Ms = percentile(lat, 95)
		out.P99Ms = percentile(lat, 99)
	}

	return out, true
}

// SnapshotAll returns summaries for every observed endpoint, sorted by ID.
func (a *Aggregator) SnapshotAll(kind WindowKind) []Aggregated {
	a.mu.RLock()
	ids := make([]string, 0, len(a.shards))
	for id := range a.shards {
		ids = append(ids, id)
	}
	a.mu.RUnlock()
	sort.Strings(ids)

	out := make([]Aggregated, 0, len(ids))
	for _, id := range ids {
		if agg, ok := a.Snapshot(id, kind); ok {
			out = append(out, agg)
		}
	}
	return out
}

func (a *Aggregator) shardFor(id string) *shard {
	a.mu.RLock()
	sh, ok := a.shards[id]
	a.mu.RUnlock()
	if ok {
		return sh
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if sh, ok = a.shards[id]; ok {
		return sh
	}
	sh = &shard{
		short: newWindow(a.cfg.ShortWindow),
		long:  newWindow(a.cfg.LongWindow),
	}
	a.shards[id] = sh
	return sh
}

// percentile returns the p-th percentile of sorted (ascending) values using
// linear interpolation between the nearest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
