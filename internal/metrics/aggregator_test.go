package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/netwatch/netwatch/internal/probe"
)

func okRecord(id string, at time.Time, rttMs float64) probe.Record {
	return probe.Record{
		EndpointID: id,
		Timestamp:  at,
		RTT:        time.Duration(rttMs * float64(time.Millisecond)),
		OK:         true,
	}
}

func failRecord(id string, at time.Time) probe.Record {
	return probe.Record{EndpointID: id, Timestamp: at, OK: false, Err: probe.ErrTimeout}
}

func TestSnapshotBasicStats(t *testing.T) {
	agg := New(Config{ShortWindow: 10, LongWindow: 100, EWMAAlpha: 0.2})
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	agg.now = func() time.Time { return base.Add(10 * time.Second) }

	for i, rtt := range []float64{10, 20, 30, 40} {
		agg.Observe(okRecord("ep", base.Add(time.Duration(i)*time.Second), rtt))
	}
	agg.Observe(failRecord("ep", base.Add(4*time.Second)))

	m, ok := agg.Snapshot("ep", WindowShort)
	if !ok {
		t.Fatal("Snapshot not found")
	}

	if m.Samples != 5 {
		t.Errorf("Samples = %d, want 5", m.Samples)
	}
	if m.AvgMs != 25 {
		t.Errorf("AvgMs = %v, want 25", m.AvgMs)
	}
	if m.MinMs != 10 || m.MaxMs != 40 {
		t.Errorf("Min/Max = %v/%v, want 10/40", m.MinMs, m.MaxMs)
	}
	if m.MedianMs != 25 {
		t.Errorf("MedianMs = %v, want 25", m.MedianMs)
	}
	if m.LossPct != 20 {
		t.Errorf("LossPct = %v, want 20", m.LossPct)
	}
	if m.SuccessRate != 80 {
		t.Errorf("SuccessRate = %v, want 80", m.SuccessRate)
	}

	// Population std dev of {10,20,30,40} = sqrt(125).
	if math.Abs(m.StdDevMs-math.Sqrt(125)) > 1e-9 {
		t.Errorf("StdDevMs = %v, want %v", m.StdDevMs, math.Sqrt(125))
	}
	if m.WindowAge != 10*time.Second {
		t.Errorf("WindowAge = %v, want 10s", m.WindowAge)
	}
}

func TestShortAndLongWindowsDiverge(t *testing.T) {
	agg := New(Config{ShortWindow: 2, LongWindow: 10, EWMAAlpha: 0.2})
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// Old slow samples roll out of the short window but stay in the long one.
	agg.Observe(okRecord("ep", base, 100))
	agg.Observe(okRecord("ep", base.Add(time.Second), 100))
	agg.Observe(okRecord("ep", base.Add(2*time.Second), 10))
	agg.Observe(okRecord("ep", base.Add(3*time.Second), 10))

	short, _ := agg.Snapshot("ep", WindowShort)
	long, _ := agg.Snapshot("ep", WindowLong)

	if short.AvgMs != 10 {
		t.Errorf("short AvgMs = %v, want 10", short.AvgMs)
	}
	if long.AvgMs != 55 {
		t.Errorf("long AvgMs = %v, want 55", long.AvgMs)
	}
	if short.Samples != 2 || long.Samples != 4 {
		t.Errorf("Samples short/long = %d/%d, want 2/4", short.Samples, long.Samples)
	}
}

func TestEWMAJitterDeterministic(t *testing.T) {
	seq := []float64{20, 30, 25, 45, 25, 60}
	const alpha = 0.2

	run := func() float64 {
		agg := New(Config{ShortWindow: 10, LongWindow: 10, EWMAAlpha: alpha})
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, rtt := range seq {
			agg.Observe(okRecord("ep", base.Add(time.Duration(i)*time.Second), rtt))
		}
		m, _ := agg.Snapshot("ep", WindowShort)
		return m.JitterMs
	}

	first, second := run(), run()
	if first != second {
		t.Fatalf("jitter not deterministic: %v vs %v", first, second)
	}

	// Fold the recurrence by hand: j = 0.2*|delta| + 0.8*j, seeded at 0.
	var want, last float64
	for i, rtt := range seq {
		if i > 0 {
			want = alpha*math.Abs(rtt-last) + (1-alpha)*want
		}
		last = rtt
	}
	if math.Abs(first-want) > 1e-12 {
		t.Errorf("JitterMs = %v, want %v", first, want)
	}
}

func TestJitterIgnoresFailures(t *testing.T) {
	agg := New(Config{ShortWindow: 10, LongWindow: 10, EWMAAlpha: 0.2})
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	agg.Observe(okRecord("ep", base, 20))
	agg.Observe(failRecord("ep", base.Add(time.Second)))
	agg.Observe(okRecord("ep", base.Add(2*time.Second), 30))

	m, _ := agg.Snapshot("ep", WindowShort)
	// One successful delta of 10ms: j = 0.2*10 = 2.
	if math.Abs(m.JitterMs-2) > 1e-12 {
		t.Errorf("JitterMs = %v, want 2", m.JitterMs)
	}
}

func TestSnapshotEmptyAndUnknown(t *testing.T) {
	agg := New(Config{})

	if _, ok := agg.Snapshot("missing", WindowShort); ok {
		t.Error("Snapshot returned ok for an unobserved endpoint")
	}

	// All-failure window: no latencies, but loss stats still present.
	agg.Observe(failRecord("down", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	m, ok := agg.Snapshot("down", WindowShort)
	if !ok {
		t.Fatal("Snapshot not found")
	}
	if m.LossPct != 100 || m.SuccessRate != 0 {
		t.Errorf("LossPct/SuccessRate = %v/%v, want 100/0", m.LossPct, m.SuccessRate)
	}
	if m.AvgMs != 0 || m.P99Ms != 0 {
		t.Errorf("latency stats should be zero with no successes, got avg=%v p99=%v", m.AvgMs, m.P99Ms)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	tests := []struct {
		p    float64
		want float64
	}{
		{50, 55},
		{95, 95.5},
		{99, 99.1},
		{0, 10},
		{100, 100},
	}
	for _, tc := range tests {
		if got := percentile(sorted, tc.p); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("percentile(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}

	if got := percentile(nil, 50); got != 0 {
		t.Errorf("percentile(nil) = %v, want 0", got)
	}
	if got := percentile([]float64{7}, 99); got != 7 {
		t.Errorf("percentile(single) = %v, want 7", got)
	}
}

func TestSnapshotAllSorted(t *testing.T) {
	agg := New(Config{})
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"zeta", "alpha", "mid"} {
		agg.Observe(okRecord(id, base, 10))
	}

	all := agg.SnapshotAll(WindowShort)
	if len(all) != 3 {
		t.Fatalf("SnapshotAll returned %d, want 3", len(all))
	}
	if all[0].EndpointID != "alpha" || all[2].EndpointID != "zeta" {
		t.Errorf("order = [%s %s %s], want alphabetical", all[0].EndpointID, all[1].EndpointID, all[2].EndpointID)
	}
}
