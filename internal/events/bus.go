package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher delivers domain events to a transport. "Published" means handed
// to the transport; subscriber delivery guarantees are transport-specific.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	HasSubscribers() bool
}

// subscriberQueueSize bounds each subscriber's queue. When a subscriber's
// queue is full, newly published events are dropped for it rather than
// stalling publishers.
const subscriberQueueSize = 256

// Bus is an in-process publisher. Each subscriber observes events in
// publish order per publisher; no order is promised across publishers.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan Event
	closed      bool
}

var _ Publisher = (*Bus)(nil)

// NewBus creates an in-process event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a subscriber and returns its event channel plus an
// unsubscribe function.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberQueueSize)

	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subscribers {
			if sub == ch {
				b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}

// Publish delivers the event to every subscriber queue. Fire-and-forget
// from the caller's perspective: a full queue drops the event for that
// subscriber.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}

	for _, sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			slog.Warn("event_dropped",
				slog.String("kind", string(event.Kind)))
		}
	}
	return nil
}

// HasSubscribers reports whether anyone is listening.
func (b *Bus) HasSubscribers() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers) > 0
}

// Close shuts the bus; subsequent publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subscribers {
		close(sub)
	}
	b.subscribers = nil
}

// NopPublisher discards every event. Useful where callers require a
// publisher but nothing listens.
type NopPublisher struct{}

var _ Publisher = NopPublisher{}

// Publish discards the event.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// HasSubscribers always reports false.
func (NopPublisher) HasSubscribers() bool { return false }

// Recorder captures published events for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

var _ Publisher = (*Recorder)(nil)

// NewRecorder creates an event recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish appends the event to the record.
func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// HasSubscribers always reports true.
func (r *Recorder) HasSubscribers() bool { return true }

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the recorded event kinds in publish order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}
