// Package ports defines the effect interfaces a step may declare a
// need for, the lease-opener shapes for scoped resources, and the Caps
// container assembled fresh for every execution. The package is purely
// structural: concrete bindings live in pkg/hostenv, policy wrapping in
// pkg/weave.
package ports

import (
	"context"
	"database/sql"
	"time"

	"github.com/loomworks/loom/pkg/lease"
)

// Request is the transport-agnostic HTTP request shape.
type Request struct {
	Method string
	URL    string
	Header map[string]string
	Body   []byte
}

// Response is the transport-agnostic HTTP response shape.
type Response struct {
	Status int
	Header map[string]string
	Body   []byte
}

// HTTP is the outbound HTTP effect port.
type HTTP interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// KV is the key-value effect port. A zero TTL stores without expiry.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Row is one database result row.
type Row map[string]any

// DB is the database effect port for direct (non-leased) access.
type DB interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	Exec(ctx context.Context, query string, args ...any) (int64, error)
}

// Queue is the message queue effect port.
type Queue interface {
	Publish(ctx context.Context, topic string, msg []byte) error
	Consume(ctx context.Context, topic string) ([]byte, error)
}

// Clock is the time effect port. Sleep honors context cancellation.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// Crypto is the randomness/hashing effect port.
type Crypto interface {
	UUID() string
	Hash(data []byte) []byte
	RandHex(n int) (string, error)
}

// Log is the structured logging effect port.
type Log interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// Opener is the shape of every lease acquire function exposed to steps.
type Opener[T any] func(ctx context.Context) (*lease.Releasable[T], error)

// LockHandle is the value held while a named lock lease is live.
type LockHandle struct {
	Name string
}

// TxFunc is a transaction body run by a TxRunner.
type TxFunc func(ctx context.Context, tx *sql.Tx) error

// TxRunner runs fn inside a transaction, committing on success and
// rolling back on error. It carries its own bracket/rollback
// discipline, which is why the weaver never wraps it: generic retry or
// timeout wrapping would risk double-executing a transaction body.
type TxRunner func(ctx context.Context, fn TxFunc) error
