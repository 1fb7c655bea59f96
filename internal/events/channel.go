package events

import "sync"

// chanSink adapts a subscription to a buffered channel for goroutine
// consumers such as the TUI. When the buffer is full the oldest event is
// dropped to make room (ring buffer behavior).
type chanSink struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// send delivers event and reports whether it went through without loss.
func (s *chanSink) send(event Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return true
	}
	select {
	case s.ch <- event:
		return true
	default:
	}

	// Buffer full, drop oldest and try again
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- event:
	default:
	}
	return false
}

func (s *chanSink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Channel subscribes a buffered channel to the listed event types, or to all
// types when none are given. The channel is closed by Unsubscribe or Close.
func (b *Bus) Channel(bufferSize int, types ...string) (<-chan Event, SubscriptionID) {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	sink := &chanSink{ch: make(chan Event, bufferSize)}
	id := b.subscribe(nil, sink, types...)
	return sink.ch, id
}
