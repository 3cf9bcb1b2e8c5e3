package broadcast

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/netwatch/netwatch/internal/alerts"
)

// DefaultQueueDepth is used when a subscriber registers with a
// non-positive depth.
const DefaultQueueDepth = 32

type subscriber struct {
	ch      chan alerts.Event
	dropped atomic.Uint64
}

// Broadcaster delivers every published event to every registered
// subscriber without ever blocking the publisher. Registration and
// removal are safe to call concurrently with Publish.
type Broadcaster struct {
	log *slog.Logger

	mu     sync.RWMutex
	subs   map[string]*subscriber
	closed bool
}

func New(log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{log: log, subs: make(map[string]*subscriber)}
}

// Subscribe registers a named subscriber and returns its receive
// channel. The channel is closed by Unsubscribe or Close. Subscribing
// twice under the same name is a caller bug and fails.
func (b *Broadcaster) Subscribe(name string, depth int) (<-chan alerts.Event, error) {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("broadcast: subscribe %q: broadcaster closed", name)
	}
	if _, ok := b.subs[name]; ok {
		return nil, fmt.Errorf("broadcast: subscriber %q already registered", name)
	}
	sub := &subscriber{ch: make(chan alerts.Event, depth)}
	b.subs[name] = sub
	b.log.Debug("subscriber registered", "name", name, "depth", depth)
	return sub.ch, nil
}

// Unsubscribe removes a subscriber and closes its channel. Unknown
// names are ignored.
func (b *Broadcaster) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[name]
	if !ok {
		return
	}
	delete(b.subs, name)
	close(sub.ch)
	b.log.Debug("subscriber removed", "name", name, "dropped", sub.dropped.Load())
}

// Publish offers the event to every subscriber. A full queue drops the
// event for that subscriber only; other subscribers and the caller are
// unaffected.
func (b *Broadcaster) Publish(ev alerts.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for name, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			n := sub.dropped.Add(1)
			b.log.Warn("subscriber queue full, event dropped",
				"name", name, "rule", ev.RuleID, "endpoint", ev.EndpointID, "total_dropped", n)
		}
	}
}

// Dropped returns how many events have been dropped for the named
// subscriber so far.
func (b *Broadcaster) Dropped(name string) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if sub, ok := b.subs[name]; ok {
		return sub.dropped.Load()
	}
	return 0
}

// Close shuts the broadcaster down, closing every subscriber channel.
// Publish becomes a no-op afterwards.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for name, sub := range b.subs {
		delete(b.subs, name)
		close(sub.ch)
	}
}
