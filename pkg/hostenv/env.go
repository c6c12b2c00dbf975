package hostenv

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/loomworks/loom/pkg/lease"
	"github.com/loomworks/loom/pkg/macro"
	"github.com/loomworks/loom/pkg/ports"
	"github.com/loomworks/loom/pkg/stores"
)

// KV backend selectors.
const (
	KVMemory = "memory"
	KVSQLite = "sqlite"
)

// Config holds host environment configuration.
type Config struct {
	// KVBackend selects the KV store: "memory" (default) keeps entries
	// in process, "sqlite" persists them through the store.
	KVBackend string

	// StorePath is the SQLite database path. Required when any binding
	// needs the store (sqlite KV backend or the database port).
	StorePath string

	// HTTPTimeout bounds the underlying HTTP client. Zero selects 30s.
	// Per-step budgets are enforced by the weaver, not here.
	HTTPTimeout time.Duration

	// QueueBuffer is the per-topic channel capacity. Zero selects 64.
	QueueBuffer int
}

// Host owns the long-lived resources behind the macro environment. It
// is safe for concurrent use; per-execution ports are cheap views over
// it.
type Host struct {
	cfg    Config
	logger zerolog.Logger

	store  *stores.SQLiteStore
	mem    *memKV
	broker *broker
	client *http.Client

	locksMu sync.Mutex
	locks   map[string]*lease.Pool[ports.LockHandle]
}

// New creates a host from the configuration. The SQLite store is
// opened and migrated only when the configuration names a path; a
// memory-only host needs no files at all.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Host, error) {
	if cfg.KVBackend == "" {
		cfg.KVBackend = KVMemory
	}
	if cfg.KVBackend != KVMemory && cfg.KVBackend != KVSQLite {
		return nil, fmt.Errorf("unsupported kv backend: %s", cfg.KVBackend)
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.QueueBuffer <= 0 {
		cfg.QueueBuffer = 64
	}
	if cfg.KVBackend == KVSQLite && cfg.StorePath == "" {
		return nil, fmt.Errorf("sqlite kv backend requires a store path")
	}

	h := &Host{
		cfg:    cfg,
		logger: logger,
		mem:    newMemKV(),
		broker: newBroker(cfg.QueueBuffer),
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		locks:  make(map[string]*lease.Pool[ports.LockHandle]),
	}

	if cfg.StorePath != "" {
		store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.StorePath})
		if err != nil {
			return nil, err
		}
		if err := store.Init(ctx); err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		h.store = store
	}
	return h, nil
}

// Close releases the host's long-lived resources.
func (h *Host) Close() error {
	h.locksMu.Lock()
	for _, p := range h.locks {
		p.Close()
	}
	h.locksMu.Unlock()
	if h.store != nil {
		return h.store.Close()
	}
	return nil
}

// Store exposes the SQLite store, nil for memory-only hosts.
func (h *Host) Store() *stores.SQLiteStore {
	return h.store
}

// Env returns the macro environment backed by this host. Factories for
// bindings the host cannot provide (a database port without a store)
// are left nil so the corresponding macros fail at resolve time with a
// clear fault.
func (h *Host) Env() macro.Env {
	env := macro.Env{
		NewHTTP:    h.newHTTP,
		NewKV:      h.newKV,
		NewQueue:   h.newQueue,
		NewClock:   newClock,
		NewCrypto:  newCrypto,
		NewLog:     h.newLog,
		NewTempDir: newTempDir,
		NewLock:    h.newLock,
		NewSocket:  newSocket,
	}
	if h.store != nil {
		env.NewDB = h.newDB
	}
	return env
}

// newKV returns the namespaced KV port for the configured backend.
func (h *Host) newKV(namespace string) ports.KV {
	if h.cfg.KVBackend == KVSQLite {
		return &storeKV{store: h.store, namespace: namespace}
	}
	return h.mem.namespace(namespace)
}
