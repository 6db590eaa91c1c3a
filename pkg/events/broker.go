package events

import (
	"context"
	"sync"
)

// subscriberBuffer bounds each subscriber channel. Slow consumers drop
// events instead of blocking the pipeline.
const subscriberBuffer = 64

// Broker is an in-process EventSink that fans events out to per-conversation
// subscribers. It backs the HTTP streaming endpoints and is the sink of
// choice in tests that need to observe emission order.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Envelope]struct{} // conversationID -> subscribers
	closed bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan Envelope]struct{})}
}

// Append implements EventSink. Events for conversations with no subscribers
// are discarded; a full subscriber channel drops the event for that
// subscriber only.
func (b *Broker) Append(_ context.Context, envelope Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	for ch := range b.subs[envelope.ConversationID] {
		select {
		case ch <- envelope:
		default:
		}
	}
	return nil
}

// Subscribe registers a listener for a conversation's events. The returned
// cancel function must be called when the listener goes away; it closes the
// channel.
func (b *Broker) Subscribe(conversationID string) (<-chan Envelope, func()) {
	ch := make(chan Envelope, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	set, ok := b.subs[conversationID]
	if !ok {
		set = make(map[chan Envelope]struct{})
		b.subs[conversationID] = set
	}
	set[ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			// Close only if still registered; Close() may have beaten us.
			set, ok := b.subs[conversationID]
			if !ok {
				return
			}
			if _, ok := set[ch]; !ok {
				return
			}
			delete(set, ch)
			if len(set) == 0 {
				delete(b.subs, conversationID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Close shuts the broker down and closes every subscriber channel.
// Subsequent Append calls are silently discarded.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, set := range b.subs {
		for ch := range set {
			close(ch)
		}
	}
	b.subs = make(map[string]map[chan Envelope]struct{})
}
