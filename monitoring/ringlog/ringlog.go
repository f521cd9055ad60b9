// Package ringlog provides a fixed-capacity, newest-first event log.
// Every tracker stores its recent events in one of these so memory stays
// bounded regardless of traffic; once the capacity is reached the oldest
// entries are dropped silently.
package ringlog

import "sync"

// Log is a bounded, newest-first list of events. All methods are safe for
// concurrent use.
type Log[T any] struct {
	mu       sync.RWMutex
	entries  []T
	capacity int
}

// New creates a log that holds at most capacity entries.
func New[T any](capacity int) *Log[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Log[T]{
		entries:  make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push prepends an entry and truncates from the tail when over capacity.
func (l *Log[T]) Push(entry T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
	copy(l.entries[1:], l.entries)
	l.entries[0] = entry

	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}
}

// All returns a copy of the entries, newest first.
func (l *Log[T]) All() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]T, len(l.entries))
	copy(out, l.entries)
	return out
}

// Filter returns the entries matching pred, preserving newest-first order.
func (l *Log[T]) Filter(pred func(T) bool) []T {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []T
	for _, e := range l.entries {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of entries matching pred.
func (l *Log[T]) Count(pred func(T) bool) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, e := range l.entries {
		if pred(e) {
			n++
		}
	}
	return n
}

// Retain keeps only the entries matching pred and reports how many were
// dropped. Used by the periodic cleanup passes.
func (l *Log[T]) Retain(pred func(T) bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[:0]
	for _, e := range l.entries {
		if pred(e) {
			kept = append(kept, e)
		}
	}
	dropped := len(l.entries) - len(kept)
	l.entries = kept
	return dropped
}

// Len returns the current number of entries.
func (l *Log[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Capacity returns the fixed capacity.
func (l *Log[T]) Capacity() int {
	return l.capacity
}
