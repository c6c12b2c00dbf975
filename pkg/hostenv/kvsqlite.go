package hostenv

import (
	"context"
	"time"

	"github.com/loomworks/loom/pkg/stores"
)

// storeKV adapts the SQLite store to the KV port for one namespace.
type storeKV struct {
	store     *stores.SQLiteStore
	namespace string
}

func (s *storeKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.store.GetEntry(ctx, s.namespace, key)
}

func (s *storeKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.store.PutEntry(ctx, s.namespace, key, value, ttl)
}

func (s *storeKV) Delete(ctx context.Context, key string) error {
	return s.store.DeleteEntry(ctx, s.namespace, key)
}
