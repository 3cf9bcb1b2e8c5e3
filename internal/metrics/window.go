package metrics

import "time"

// sample is one probe outcome stored in a window.
type sample struct {
	at  time.Time
	rtt float64 // milliseconds; meaningful only when ok
	ok  bool
}

// window is a fixed-capacity ring of recent probe outcomes with FIFO
// eviction. It maintains running sums over the successful samples it
// currently holds, so mean and standard deviation never rescan the ring.
// Not safe for concurrent use; the owning shard serializes access.
type window struct {
	samples []sample
	head    int // next write position
	count   int

	successes int
	sumMs     float64 // sum of successful latencies
	sumSqMs   float64 // sum of squared successful latencies
}

func newWindow(capacity int) *window {
	return &window{samples: make([]sample, capacity)}
}

// push inserts s, evicting the oldest sample once the ring is full and
// folding the eviction out of the running sums.
func (w *window) push(s sample) {
	if w.count == len(w.samples) {
		old := w.samples[w.head]
		if old.ok {
			w.successes--
			w.sumMs -= old.rtt
			w.sumSqMs -= old.rtt * old.rtt
		}
	} else {
		w.count++
	}

	w.samples[w.head] = s
	w.head = (w.head + 1) % len(w.samples)

	if s.ok {
		w.successes++
		w.sumMs += s.rtt
		w.sumSqMs += s.rtt * s.rtt
	}
}

func (w *window) len() int { return w.count }

// oldest returns the timestamp of the oldest sample in the ring.
func (w *window) oldest() (time.Time, bool) {
	if w.count == 0 {
		return time.Time{}, false
	}
	start := w.head
	if w.count < len(w.samples) {
		start = 0
	}
	return w.samples[start].at, true
}

// latencies returns the successful sample latencies, oldest first.
// The returned slice is a fresh copy safe for the caller to sort.
func (w *window) latencies() []float64 {
	out := make([]float64, 0, w.successes)
	start := w.head
	if w.count < len(w.samples) {
		start = 0
	}
	for i := 0; i < w.count; i++ {
		s := w.samples[(start+i)%len(w.samples)]
		if s.ok {
			out = append(out, s.rtt)
		}
	}
	return out
}
