// Package events fans out per-session state changes to websocket subscribers.
package events

import (
	"sync"
	"time"

	"drivelens/internal/metrics"
)

const subscriberBuffer = 64

const (
	PreviewLoading = "preview.loading"
	PreviewReady   = "preview.ready"
	PreviewError   = "preview.error"
	PreviewIdle    = "preview.idle"
	ListingLoading = "listing.loading"
	ListingReady   = "listing.ready"
	ListingError   = "listing.error"
	MutationDone   = "mutation.done"
	SessionClosed  = "session.closed"
)

type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	Time      time.Time   `json:"time"`
	Data      interface{} `json:"data,omitempty"`
}

// Broker delivers events to every current subscriber. Publishing never
// blocks; a subscriber whose buffer is full misses the event.
type Broker struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a channel of events and a function that ends the
// subscription. The channel is closed when the broker closes.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	metrics.AddEventSubscribers(1)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
				metrics.AddEventSubscribers(-1)
			}
		})
	}
}

// Publish sends ev to all subscribers. It reports how many received it.
func (b *Broker) Publish(ev Event) int {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	delivered := 0
	for ch := range b.subs {
		select {
		case ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// Close ends every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
		metrics.AddEventSubscribers(-1)
	}
	b.subs = nil
}

func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
