// Package snapshotbus is the single-producer/many-observer holder of
// the live AppConfig, plus a fan-out event stream of status snapshots
// for SSE-style UI consumption. It is the control link back to the
// scheduler: every Publish triggers a broadcast that wakes any
// goroutine awaiting a config change.
package snapshotbus

import (
	"sync"

	"github.com/netwatch/netwatch/pkg/model"
)

// Bus holds the current AppConfig and lets observers await changes
// independently of one another, and fans out arbitrary status events
// to subscribers — two independent surfaces sharing one struct.
type Bus struct {
	mu      sync.RWMutex
	config  model.AppConfig
	waiters []chan struct{}

	eventMu     sync.Mutex
	subscribers map[chan []byte]struct{}
}

// New creates a Bus seeded with the initial config.
func New(initial model.AppConfig) *Bus {
	return &Bus{
		config:      initial,
		subscribers: make(map[chan []byte]struct{}),
	}
}

// Config returns a deep copy of the current AppConfig.
func (b *Bus) Config() model.AppConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config.Clone()
}

// Publish replaces the held AppConfig and notifies every goroutine
// currently waiting in Changed.
func (b *Bus) Publish(cfg model.AppConfig) {
	b.mu.Lock()
	b.config = cfg
	waiters := b.waiters
	b.waiters = nil
	b.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
}

// Changed returns a channel that closes the next time Publish is
// called. Each call to Changed registers a fresh, independent waiter
// so multiple observers can each await the next change without
// interfering with one another.
func (b *Bus) Changed() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan struct{})
	b.waiters = append(b.waiters, ch)
	return ch
}

// Subscribe registers a new status-event observer. The returned
// channel receives every event broadcast after subscription (late
// subscribers do not receive history — the HTTP layer is responsible
// for synthesizing an init snapshot). Unsubscribe must be called when
// the observer is done listening.
func (b *Bus) Subscribe(buffer int) (ch chan []byte, unsubscribe func()) {
	ch = make(chan []byte, buffer)
	b.eventMu.Lock()
	b.subscribers[ch] = struct{}{}
	b.eventMu.Unlock()

	unsubscribe = func() {
		b.eventMu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.eventMu.Unlock()
	}
	return ch, unsubscribe
}

// BroadcastEvent fans payload out to every current subscriber. A
// subscriber whose buffer is full is considered lagged: its channel is
// closed and removed so the reader observes a closed channel and can
// surface a "stream lagged" error event. This drop-on-overflow
// behavior is only acceptable because it's best-effort UI streaming;
// the persistence worker consumes StateChanged directly rather than
// through this bus precisely so it is never subject to it.
func (b *Bus) BroadcastEvent(payload []byte) {
	b.eventMu.Lock()
	defer b.eventMu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- payload:
		default:
			delete(b.subscribers, ch)
			close(ch)
		}
	}
}
