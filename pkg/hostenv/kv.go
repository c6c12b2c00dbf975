package hostenv

import (
	"context"
	"sync"
	"time"

	"github.com/loomworks/loom/pkg/ports"
)

// memKV is a process-local KV store with per-entry TTL. All namespaces
// created from one store share its map; namespacing is done by key
// prefix so entries from different namespaces never collide.
type memKV struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// newMemKV creates an empty in-memory store.
func newMemKV() *memKV {
	return &memKV{entries: make(map[string]memEntry), now: time.Now}
}

// namespace returns a KV port view over the store with all keys
// prefixed by ns.
func (s *memKV) namespace(ns string) ports.KV {
	return &memKVView{store: s, prefix: ns + "/"}
}

func (s *memKV) get(key string) ([]byte, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry.
		if cur, ok := s.entries[key]; ok && !cur.expiresAt.IsZero() && s.now().After(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

func (s *memKV) set(key string, value []byte, ttl time.Duration) {
	e := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
}

func (s *memKV) delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

type memKVView struct {
	store  *memKV
	prefix string
}

func (v *memKVView) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, ok := v.store.get(v.prefix + key)
	return val, ok, nil
}

func (v *memKVView) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	v.store.set(v.prefix+key, value, ttl)
	return nil
}

func (v *memKVView) Delete(_ context.Context, key string) error {
	v.store.delete(v.prefix + key)
	return nil
}
