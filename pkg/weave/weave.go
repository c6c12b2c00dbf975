// Package weave applies the cross-cutting policy stack declared in a
// step's metadata to its resolved capability set.
//
// Port methods are wrapped, innermost to outermost, as
// circuit → log → retry → timeout: the circuit check runs before any
// I/O, logging records each individual attempt, retries re-attempt the
// logged-and-guarded call, and the timeout budget bounds one full
// logical operation including its retries. Lease acquire functions use
// a reduced stack tuned for acquisition safety, innermost to
// outermost: acquire-timeout → circuit → log → retry, where the
// acquire-timeout wrapper additionally releases a late-arriving
// resource itself.
//
// The Tx helper is intentionally never woven: it carries its own
// bracket/rollback discipline, and generic retry or timeout wrapping
// would risk double-executing a transaction body.
package weave

import (
	"context"
	"time"

	"github.com/loomworks/loom/pkg/lease"
	"github.com/loomworks/loom/pkg/meta"
	"github.com/loomworks/loom/pkg/ports"
)

// WeaveCall composes the port policy stack around one call shape
// according to the metadata's policy declarations.
func WeaveCall[T any](m meta.Meta, opts Options, port, op string, fn func(ctx context.Context) (T, error)) func(ctx context.Context) (T, error) {
	o := opts.normalized()
	wrapped := call[T](fn)
	if m.Circuit != nil {
		wrapped = wrapCircuit(o, circuitName(m, port), m.Circuit.HalfOpenAfter(), port, op, wrapped)
	}
	wrapped = wrapLog(o, port, op, wrapped)
	if m.Retry != nil {
		wrapped = wrapRetry(o, *m.Retry, port, op, wrapped)
	}
	if m.Timeout != nil && m.Timeout.MS > 0 {
		wrapped = wrapTimeout(o, time.Duration(m.Timeout.MS)*time.Millisecond, port, op, wrapped)
	}
	return wrapped
}

// WeaveAcquire composes the acquire policy stack around a lease
// opener.
func WeaveAcquire[T any](m meta.Meta, opts Options, kind string, acquire ports.Opener[T]) ports.Opener[T] {
	o := opts.normalized()
	chain := call[*lease.Releasable[T]](acquire)
	if m.Timeout != nil && m.Timeout.AcquireMS > 0 {
		chain = wrapAcquireTimeout(o, time.Duration(m.Timeout.AcquireMS)*time.Millisecond, kind, chain)
	}
	port := "lease." + kind
	if m.Circuit != nil {
		chain = wrapCircuit(o, circuitName(m, port), m.Circuit.HalfOpenAfter(), port, "acquire", chain)
	}
	chain = wrapLog(o, port, "acquire", chain)
	if m.Retry != nil {
		chain = wrapRetry(o, *m.Retry, port, "acquire", chain)
	}

	return func(ctx context.Context) (*lease.Releasable[T], error) {
		r, err := chain(ctx)
		if err == nil && o.Metrics != nil {
			o.Metrics.RecordLeaseAcquired(kind)
		}
		return r, err
	}
}

// Weave wraps every resolved port and lease opener in caps with the
// policy stack declared in m, mutating caps in place and returning it.
func Weave(m meta.Meta, caps *ports.Caps, opts Options) *ports.Caps {
	o := opts.normalized()
	if caps.HTTP != nil {
		caps.HTTP = &wovenHTTP{m: m, o: o, next: caps.HTTP}
	}
	if caps.KV != nil {
		caps.KV = &wovenKV{m: m, o: o, next: caps.KV}
	}
	if caps.DB != nil {
		caps.DB = &wovenDB{m: m, o: o, next: caps.DB}
	}
	if caps.Queue != nil {
		caps.Queue = &wovenQueue{m: m, o: o, next: caps.Queue}
	}

	if caps.Lease.DB != nil {
		caps.Lease.DB = WeaveAcquire(m, o, "db", caps.Lease.DB)
	}
	if caps.Lease.Lock != nil {
		caps.Lease.Lock = WeaveAcquire(m, o, "lock", caps.Lease.Lock)
	}
	if caps.Lease.TempDir != nil {
		caps.Lease.TempDir = WeaveAcquire(m, o, "tempDir", caps.Lease.TempDir)
	}
	if caps.Lease.Socket != nil {
		caps.Lease.Socket = WeaveAcquire(m, o, "socket", caps.Lease.Socket)
	}
	// caps.Lease.Tx deliberately untouched.
	return caps
}

// circuitName resolves the circuit identity: the configured name when
// set, otherwise the port name.
func circuitName(m meta.Meta, port string) string {
	if m.Circuit != nil && m.Circuit.Name != "" {
		return m.Circuit.Name
	}
	return port
}

// The woven port decorators below are explicit per-port-kind types
// rather than a reflective wrap-every-method utility, trading
// genericity for type safety.

type wovenHTTP struct {
	m    meta.Meta
	o    Options
	next ports.HTTP
}

func (w *wovenHTTP) Do(ctx context.Context, req ports.Request) (ports.Response, error) {
	return WeaveCall(w.m, w.o, "http", "do", func(ctx context.Context) (ports.Response, error) {
		return w.next.Do(ctx, req)
	})(ctx)
}

type wovenKV struct {
	m    meta.Meta
	o    Options
	next ports.KV
}

func (w *wovenKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	type pair struct {
		val []byte
		ok  bool
	}
	p, err := WeaveCall(w.m, w.o, "kv", "get", func(ctx context.Context) (pair, error) {
		val, ok, err := w.next.Get(ctx, key)
		return pair{val, ok}, err
	})(ctx)
	return p.val, p.ok, err
}

func (w *wovenKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := WeaveCall(w.m, w.o, "kv", "set", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.next.Set(ctx, key, value, ttl)
	})(ctx)
	return err
}

func (w *wovenKV) Delete(ctx context.Context, key string) error {
	_, err := WeaveCall(w.m, w.o, "kv", "delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.next.Delete(ctx, key)
	})(ctx)
	return err
}

type wovenDB struct {
	m    meta.Meta
	o    Options
	next ports.DB
}

func (w *wovenDB) Query(ctx context.Context, query string, args ...any) ([]ports.Row, error) {
	return WeaveCall(w.m, w.o, "db", "query", func(ctx context.Context) ([]ports.Row, error) {
		return w.next.Query(ctx, query, args...)
	})(ctx)
}

func (w *wovenDB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return WeaveCall(w.m, w.o, "db", "exec", func(ctx context.Context) (int64, error) {
		return w.next.Exec(ctx, query, args...)
	})(ctx)
}

type wovenQueue struct {
	m    meta.Meta
	o    Options
	next ports.Queue
}

func (w *wovenQueue) Publish(ctx context.Context, topic string, msg []byte) error {
	_, err := WeaveCall(w.m, w.o, "queue", "publish", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.next.Publish(ctx, topic, msg)
	})(ctx)
	return err
}

func (w *wovenQueue) Consume(ctx context.Context, topic string) ([]byte, error) {
	return WeaveCall(w.m, w.o, "queue", "consume", func(ctx context.Context) ([]byte, error) {
		return w.next.Consume(ctx, topic)
	})(ctx)
}
