package weave

import (
	"sync"
	"time"
)

// StateStore is the circuit breaker state provider. The default is an
// in-process CircuitStore; hosts may inject an implementation backed
// by an external keyed store to share circuit state across processes.
type StateStore interface {
	// OpenUntil returns the timestamp until which the named circuit is
	// open; the zero time means closed.
	OpenUntil(name string) time.Time

	// SetOpenUntil records the open-until timestamp for the named
	// circuit. The zero time closes the circuit.
	SetOpenUntil(name string, t time.Time)
}

// CircuitStore is the in-process StateStore. Constructed once per
// process (or per test) and injected into the weaver, never captured
// from package scope, so tests stay isolated.
type CircuitStore struct {
	mu        sync.Mutex
	openUntil map[string]time.Time
}

// NewCircuitStore creates an empty circuit state store.
func NewCircuitStore() *CircuitStore {
	return &CircuitStore{openUntil: make(map[string]time.Time)}
}

// OpenUntil implements StateStore.
func (s *CircuitStore) OpenUntil(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openUntil[name]
}

// SetOpenUntil implements StateStore.
func (s *CircuitStore) SetOpenUntil(name string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.IsZero() {
		delete(s.openUntil, name)
		return
	}
	s.openUntil[name] = t
}
