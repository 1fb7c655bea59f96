// Package events provides the in-process event bus that decouples the file
// monitor, the state manager and the UI. Dispatch is synchronous: Publish
// returns only after every matching handler has run, in subscription order.
package events

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/logging"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	Timestamp() time.Time
	Source() string
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	Type   string    `json:"type"`
	Time   time.Time `json:"timestamp"`
	Origin string    `json:"source,omitempty"`
}

func (e BaseEvent) EventType() string    { return e.Type }
func (e BaseEvent) Timestamp() time.Time { return e.Time }
func (e BaseEvent) Source() string       { return e.Origin }

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType, source string) BaseEvent {
	return BaseEvent{
		Type:   eventType,
		Time:   time.Now(),
		Origin: source,
	}
}

// Handler receives published events. A returned error (or a panic) is
// isolated to that handler and reported as a HandlerErrorEvent.
type Handler func(Event) error

// SubscriptionID identifies a handler registration.
type SubscriptionID string

type subscription struct {
	id      SubscriptionID
	types   map[string]bool // Empty means all types
	handler Handler
	sink    *chanSink
}

func (s *subscription) matches(eventType string) bool {
	return len(s.types) == 0 || s.types[eventType]
}

// Bus is a synchronous publish/subscribe hub.
type Bus struct {
	mu      sync.RWMutex
	subs    []*subscription
	dropped int64
	closed  bool
	logger  *logging.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report handler failures.
func WithLogger(logger *logging.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a new Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:   make([]*subscription, 0),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for one event type. Multiple handlers per type
// are allowed and run in subscription order.
func (b *Bus) Subscribe(eventType string, handler Handler) SubscriptionID {
	return b.subscribe(handler, nil, eventType)
}

// SubscribeAll registers handler for every event type, or for the listed
// types when any are given.
func (b *Bus) SubscribeAll(handler Handler, types ...string) SubscriptionID {
	return b.subscribe(handler, nil, types...)
}

func (b *Bus) subscribe(handler Handler, sink *chanSink, types ...string) SubscriptionID {
	sub := &subscription{
		id:      SubscriptionID(uuid.NewString()),
		types:   make(map[string]bool, len(types)),
		handler: handler,
		sink:    sink,
	}
	for _, t := range types {
		sub.types[t] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		if sink != nil {
			sink.close()
		}
		return sub.id
	}
	b.subs = append(b.subs, sub)
	return sub.id
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.id != id {
			result = append(result, sub)
		} else if sub.sink != nil {
			sub.sink.close()
		}
	}
	b.subs = result
}

// Clear stops delivery of eventType to every typed subscription. A
// subscription listing several types keeps the others and is removed once
// none remain. Catch-all subscriptions are untouched. An empty eventType
// clears all subscriptions.
func (b *Bus) Clear(eventType string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if eventType != "" && !sub.types[eventType] {
			result = append(result, sub)
			continue
		}
		if eventType != "" && len(sub.types) > 1 {
			types := make(map[string]bool, len(sub.types)-1)
			for t := range sub.types {
				if t != eventType {
					types[t] = true
				}
			}
			sub.types = types
			result = append(result, sub)
			continue
		}
		if sub.sink != nil {
			sub.sink.close()
		}
	}
	b.subs = result
}

// HandlerCount returns the number of subscriptions that would receive eventType.
func (b *Bus) HandlerCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, sub := range b.subs {
		if sub.matches(eventType) {
			n++
		}
	}
	return n
}

// Publish delivers event to every matching handler and returns once all of
// them have run. Handlers are invoked outside the bus lock, so they may
// subscribe or unsubscribe; such changes take effect from the next Publish.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	eventType := event.EventType()
	matched := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.matches(eventType) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		if err := b.invoke(sub, event); err != nil {
			b.reportFailure(sub, event, err)
		}
	}
}

func (b *Bus) invoke(sub *subscription, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if sub.sink != nil {
		if !sub.sink.send(event) {
			atomic.AddInt64(&b.dropped, 1)
		}
		return nil
	}
	return sub.handler(event)
}

func (b *Bus) reportFailure(sub *subscription, event Event, err error) {
	herr := &core.HandlerError{
		EventType: event.EventType(),
		HandlerID: string(sub.id),
		Cause:     err,
	}
	b.logger.Warn("event handler failed",
		"event", herr.EventType,
		"handler", herr.HandlerID,
		"error", err)

	// A failing HandlerError subscriber must not trigger another round.
	if event.EventType() == TypeHandlerError {
		return
	}
	b.Publish(NewHandlerErrorEvent(herr))
}

// DroppedCount returns the number of events dropped by channel subscribers.
func (b *Bus) DroppedCount() int64 {
	return atomic.LoadInt64(&b.dropped)
}

// Close drops all subscriptions and closes subscriber channels. Publishing
// after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		if sub.sink != nil {
			sub.sink.close()
		}
	}
	b.subs = nil
}
