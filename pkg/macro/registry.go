package macro

import (
	"fmt"
	"sync"

	"github.com/loomworks/loom/pkg/fault"
	"github.com/loomworks/loom/pkg/meta"
)

// Registry is an ordered list of macros. Order is semantic: it decides
// merge-conflict resolution during resolution and the invocation
// sequence of before/after/onError hooks.
type Registry struct {
	mu     sync.RWMutex
	macros []Macro
	byKey  map[string]bool
}

// NewRegistry creates a registry pre-populated with the given macros.
// Registration failures here panic; a malformed default registry is a
// programming error.
func NewRegistry(macros ...Macro) *Registry {
	r := &Registry{byKey: make(map[string]bool)}
	for _, m := range macros {
		if err := r.Register(m); err != nil {
			panic(fmt.Sprintf("macro registry: %v", err))
		}
	}
	return r
}

// Register appends a macro. Keys must be unique within a registry.
func (r *Registry) Register(m Macro) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := m.Key()
	if r.byKey[key] {
		return fault.Structural(fmt.Sprintf("macro %q already registered", key), nil)
	}
	r.byKey[key] = true
	r.macros = append(r.macros, m)
	return nil
}

// Keys returns the registered macro keys in registration order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.macros))
	for _, m := range r.macros {
		keys = append(keys, m.Key())
	}
	return keys
}

// Has reports whether a macro with the given key is registered.
func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byKey[key]
}

// Matched returns the macros whose Match predicate accepts m, in
// registration order.
func (r *Registry) Matched(m meta.Meta) []Macro {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []Macro
	for _, mac := range r.macros {
		if mac.Match(m) {
			matched = append(matched, mac)
		}
	}
	return matched
}
