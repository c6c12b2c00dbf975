package ports

import (
	"context"
	"database/sql"
	"net"

	"github.com/loomworks/loom/pkg/fault"
	"github.com/loomworks/loom/pkg/lease"
)

// LeaseSet is the merged lease surface contributed by the matched
// macros. Each field is an acquire function (or the unwrapped Tx
// helper); a nil field means no macro contributed that lease. Merging
// is field-by-field with later macros winning, so the set is a typed
// accumulator rather than an untyped key/value merge.
type LeaseSet struct {
	// DB leases a dedicated connection from the host's pool.
	DB Opener[*sql.Conn]

	// Tx runs a function inside a transaction. Never woven.
	Tx TxRunner

	// Lock leases a named in-process (or host-defined) lock.
	Lock Opener[LockHandle]

	// TempDir leases a temporary directory, removed on release.
	TempDir Opener[string]

	// Socket leases a dialed network connection.
	Socket Opener[net.Conn]
}

// merge overlays other onto the receiver, later contribution winning
// per field.
func (l *LeaseSet) merge(other *LeaseSet) {
	if other == nil {
		return
	}
	if other.DB != nil {
		l.DB = other.DB
	}
	if other.Tx != nil {
		l.Tx = other.Tx
	}
	if other.Lock != nil {
		l.Lock = other.Lock
	}
	if other.TempDir != nil {
		l.TempDir = other.TempDir
	}
	if other.Socket != nil {
		l.Socket = other.Socket
	}
}

// Partial is one macro's capability contribution: any subset of ports
// plus an optional lease contribution. Nil fields contribute nothing.
type Partial struct {
	HTTP   HTTP
	KV     KV
	DB     DB
	Queue  Queue
	Clock  Clock
	Crypto Crypto
	Log    Log
	Lease  *LeaseSet
}

// Caps is the per-execution assembled capability set. It is created
// fresh at resolve time, mutated in place at weave time (ports are
// replaced with their policy-wrapped versions), and discarded when the
// execution ends. It is never shared between executions.
type Caps struct {
	HTTP   HTTP
	KV     KV
	DB     DB
	Queue  Queue
	Clock  Clock
	Crypto Crypto
	Log    Log

	// Lease is the merged lease surface, empty when no macro
	// contributed leases.
	Lease LeaseSet
}

// Apply overlays a macro contribution onto the capability set. Later
// applications win on collision; lease contributions deep-merge
// field-by-field.
func (c *Caps) Apply(p Partial) {
	if p.HTTP != nil {
		c.HTTP = p.HTTP
	}
	if p.KV != nil {
		c.KV = p.KV
	}
	if p.DB != nil {
		c.DB = p.DB
	}
	if p.Queue != nil {
		c.Queue = p.Queue
	}
	if p.Clock != nil {
		c.Clock = p.Clock
	}
	if p.Crypto != nil {
		c.Crypto = p.Crypto
	}
	if p.Log != nil {
		c.Log = p.Log
	}
	c.Lease.merge(p.Lease)
}

// The bracket helpers below are per-kind decorations over
// lease.Bracket, giving steps a release-safe entry point for each
// lease kind without reaching for the generic combinator. Calling a
// helper whose lease was never contributed fails with a structural
// fault rather than dereferencing the nil opener.

func undeclaredLease(kind string) error {
	return fault.Structural("step did not declare the "+kind+" lease", nil).WithPort("lease." + kind)
}

// WithDB brackets a leased database connection.
func (c *Caps) WithDB(ctx context.Context, use func(ctx context.Context, conn *sql.Conn) error) error {
	if c.Lease.DB == nil {
		return undeclaredLease("db")
	}
	_, err := lease.Bracket(ctx, lease.Acquire[*sql.Conn](c.Lease.DB),
		func(ctx context.Context, conn *sql.Conn) (struct{}, error) {
			return struct{}{}, use(ctx, conn)
		})
	return err
}

// WithLock brackets a named lock lease.
func (c *Caps) WithLock(ctx context.Context, use func(ctx context.Context, h LockHandle) error) error {
	if c.Lease.Lock == nil {
		return undeclaredLease("lock")
	}
	_, err := lease.Bracket(ctx, lease.Acquire[LockHandle](c.Lease.Lock),
		func(ctx context.Context, h LockHandle) (struct{}, error) {
			return struct{}{}, use(ctx, h)
		})
	return err
}

// WithTempDir brackets a temporary directory lease.
func (c *Caps) WithTempDir(ctx context.Context, use func(ctx context.Context, dir string) error) error {
	if c.Lease.TempDir == nil {
		return undeclaredLease("tempDir")
	}
	_, err := lease.Bracket(ctx, lease.Acquire[string](c.Lease.TempDir),
		func(ctx context.Context, dir string) (struct{}, error) {
			return struct{}{}, use(ctx, dir)
		})
	return err
}

// WithSocket brackets a dialed connection lease.
func (c *Caps) WithSocket(ctx context.Context, use func(ctx context.Context, conn net.Conn) error) error {
	if c.Lease.Socket == nil {
		return undeclaredLease("socket")
	}
	_, err := lease.Bracket(ctx, lease.Acquire[net.Conn](c.Lease.Socket),
		func(ctx context.Context, conn net.Conn) (struct{}, error) {
			return struct{}{}, use(ctx, conn)
		})
	return err
}
