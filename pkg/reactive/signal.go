// Package reactive provides small observable building blocks for derived
// layout state: State holds a value and notifies listeners on change,
// Computed memoizes a derived value behind a dirty flag and recomputes on
// demand after invalidation.
package reactive

import "sync"

// State represents a reactive value with change listeners.
type State[T any] struct {
	mu    sync.RWMutex
	value T

	listenersMu sync.RWMutex
	listeners   map[int]func(T)
	nextID      int
}

// NewState creates a new reactive state.
func NewState[T any](initial T) *State[T] {
	return &State[T]{
		value:     initial,
		listeners: make(map[int]func(T)),
	}
}

// Get returns the current value.
func (s *State[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set updates the value and notifies listeners.
func (s *State[T]) Set(value T) {
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
	s.notify(value)
}

// Update atomically reads, modifies, and writes the value.
func (s *State[T]) Update(fn func(T) T) {
	s.mu.Lock()
	s.value = fn(s.value)
	value := s.value
	s.mu.Unlock()
	s.notify(value)
}

// Subscribe registers a listener called on every Set/Update. The returned
// function removes the listener.
func (s *State[T]) Subscribe(fn func(T)) (cancel func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// notify calls listeners outside the value lock to avoid deadlock when a
// listener reads the state back.
func (s *State[T]) notify(value T) {
	s.listenersMu.RLock()
	fns := make([]func(T), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(value)
	}
}

// Computed represents a memoized derived value guarded by a dirty flag.
// Get recomputes only after Invalidate has been called.
type Computed[T any] struct {
	mu      sync.Mutex
	compute func() T
	value   T
	valid   bool
}

// NewComputed creates a new computed value. The compute function runs
// lazily on first Get and after each Invalidate.
func NewComputed[T any](compute func() T) *Computed[T] {
	return &Computed[T]{compute: compute}
}

// Get returns the computed value, recalculating if necessary.
func (c *Computed[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		c.value = c.compute()
		c.valid = true
	}
	return c.value
}

// Invalidate marks the computed value as needing recalculation.
func (c *Computed[T]) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}
