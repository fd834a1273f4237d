// Package broadcast implements a single-producer, multi-consumer event log.
//
// Every Receiver reads the same ordered, append-only log from its own cursor,
// so a receiver attached after events were published still observes the full
// sequence. Items are never removed once published; a Stream is meant to live
// for exactly one job and be dropped afterwards.
package broadcast

import (
	"context"
	"io"
	"sync"
)

// Stream is the producer side of the log.
type Stream[T, R any] struct {
	mu        sync.Mutex
	items     []T
	completed bool
	waiters   map[chan struct{}]struct{}
	active    int
	format    func(T) R
	onIdle    func()
	idleFired bool
}

// New creates a Stream whose receivers map every item through format when it
// is read, not when it is published.
func New[T, R any](format func(T) R) *Stream[T, R] {
	return &Stream[T, R]{
		waiters: make(map[chan struct{}]struct{}),
		format:  format,
	}
}

// OnIdle registers fn to run once, the first time the number of open
// receivers drops to zero.
func (s *Stream[T, R]) OnIdle(fn func()) {
	s.mu.Lock()
	s.onIdle = fn
	s.mu.Unlock()
}

// Subscribe returns a new receiver positioned at the start of the log.
func (s *Stream[T, R]) Subscribe() *Receiver[T, R] {
	s.mu.Lock()
	s.active++
	s.mu.Unlock()
	return &Receiver[T, R]{stream: s}
}

// Publish appends item and wakes every pending receiver. It reports false and
// drops the item when the stream is already complete.
func (s *Stream[T, R]) Publish(item T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return false
	}
	s.items = append(s.items, item)
	s.wakeLocked()
	return true
}

// Complete marks the end of the log. Receivers that have consumed every item
// observe io.EOF. Calling Complete more than once is a no-op.
func (s *Stream[T, R]) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return
	}
	s.completed = true
	s.wakeLocked()
}

// Completed reports whether Complete has been called.
func (s *Stream[T, R]) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// ActiveReceivers returns the number of receivers not yet closed.
func (s *Stream[T, R]) ActiveReceivers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Len returns the number of published items.
func (s *Stream[T, R]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Stream[T, R]) wakeLocked() {
	for ch := range s.waiters {
		close(ch)
	}
	clear(s.waiters)
}

func (s *Stream[T, R]) release() {
	s.mu.Lock()
	s.active--
	var fn func()
	if s.active == 0 && !s.idleFired && s.onIdle != nil {
		s.idleFired = true
		fn = s.onIdle
	}
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Receiver is one consumer of a Stream. A Receiver must not be read from
// multiple goroutines at once; Close may be called from any goroutine.
type Receiver[T, R any] struct {
	stream    *Stream[T, R]
	cursor    int
	closeOnce sync.Once
}

// Next returns the item at the receiver's cursor, blocking until one is
// published. It returns io.EOF once the stream is complete and drained, and
// ctx.Err() if ctx ends first.
func (r *Receiver[T, R]) Next(ctx context.Context) (R, error) {
	s := r.stream
	for {
		s.mu.Lock()
		if r.cursor < len(s.items) {
			item := s.items[r.cursor]
			r.cursor++
			s.mu.Unlock()
			return s.format(item), nil
		}
		if s.completed {
			s.mu.Unlock()
			var zero R
			return zero, io.EOF
		}
		wake := make(chan struct{})
		s.waiters[wake] = struct{}{}
		s.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			s.mu.Lock()
			delete(s.waiters, wake)
			s.mu.Unlock()
			var zero R
			return zero, ctx.Err()
		}
	}
}

// Close detaches the receiver from its stream.
func (r *Receiver[T, R]) Close() {
	r.closeOnce.Do(r.stream.release)
}
