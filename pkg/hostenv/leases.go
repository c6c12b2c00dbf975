package hostenv

import (
	"context"
	"net"
	"os"

	"github.com/loomworks/loom/pkg/fault"
	"github.com/loomworks/loom/pkg/lease"
	"github.com/loomworks/loom/pkg/ports"
)

// newTempDir returns an opener leasing a fresh temporary directory,
// removed recursively on release.
func newTempDir() ports.Opener[string] {
	return func(_ context.Context) (*lease.Releasable[string], error) {
		dir, err := os.MkdirTemp("", "loom-")
		if err != nil {
			return nil, fault.Acquire("failed to create temp directory", err)
		}
		return &lease.Releasable[string]{
			Value: dir,
			Release: func(context.Context) error {
				return os.RemoveAll(dir)
			},
		}, nil
	}
}

// newLock returns an opener leasing the named in-process lock. Each
// name is backed by a capacity-one pool, so at most one holder exists
// and contenders queue in FIFO order.
func (h *Host) newLock(name string) ports.Opener[ports.LockHandle] {
	h.locksMu.Lock()
	pool, ok := h.locks[name]
	if !ok {
		pool = lease.NewPool(1, func(context.Context) (ports.LockHandle, error) {
			return ports.LockHandle{Name: name}, nil
		})
		h.locks[name] = pool
	}
	h.locksMu.Unlock()

	return pool.Acquire
}

// newSocket returns an opener leasing a dialed connection.
func newSocket(network, address string) ports.Opener[net.Conn] {
	return func(ctx context.Context) (*lease.Releasable[net.Conn], error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, address)
		if err != nil {
			return nil, fault.Acquire("failed to dial socket", err)
		}
		return &lease.Releasable[net.Conn]{
			Value: conn,
			Release: func(context.Context) error {
				return conn.Close()
			},
		}, nil
	}
}
