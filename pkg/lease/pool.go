package lease

import (
	"context"
	"sync"

	"github.com/loomworks/loom/pkg/fault"
)

// Pool is a bounded FIFO resource pool. Acquire returns an idle
// instance if one exists, otherwise creates a new one up to the
// capacity limit, otherwise enqueues the caller; releases resolve
// waiters in strict FIFO order. There is no preemption, no priority,
// and no instance health-checking.
type Pool[T any] struct {
	mu       sync.Mutex
	factory  func(ctx context.Context) (T, error)
	idle     []T
	total    int
	capacity int
	waiters  []chan T
	closed   bool
}

// NewPool creates a pool that manufactures instances with factory, up
// to capacity concurrent instances. A non-positive capacity defaults
// to 1.
func NewPool[T any](capacity int, factory func(ctx context.Context) (T, error)) *Pool[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Pool[T]{factory: factory, capacity: capacity}
}

// Acquire obtains an instance from the pool. The returned Releasable's
// Release puts the instance back (it is never destroyed by the pool).
// When the pool is at capacity, Acquire blocks in FIFO order until a
// release or context cancellation.
func (p *Pool[T]) Acquire(ctx context.Context) (*Releasable[T], error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fault.Acquire("pool is closed", nil).WithCode(fault.CodePoolExhausted)
	}

	if n := len(p.idle); n > 0 {
		v := p.idle[0]
		p.idle = p.idle[1:]
		p.mu.Unlock()
		return p.releasable(v), nil
	}

	if p.total < p.capacity {
		p.total++
		p.mu.Unlock()
		v, err := p.factory(ctx)
		if err != nil {
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			return nil, err
		}
		return p.releasable(v), nil
	}

	// At capacity: enqueue a waiter resolved by the next release.
	ch := make(chan T, 1)
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	select {
	case v := <-ch:
		return p.releasable(v), nil
	case <-ctx.Done():
		p.mu.Lock()
		for i, w := range p.waiters {
			if w == ch {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				p.mu.Unlock()
				return nil, ctx.Err()
			}
		}
		p.mu.Unlock()
		// A release already delivered to our channel; hand the
		// instance back so it is not lost.
		p.put(<-ch)
		return nil, ctx.Err()
	}
}

// releasable wraps an instance with an idempotent release back into
// the pool.
func (p *Pool[T]) releasable(v T) *Releasable[T] {
	released := false
	var mu sync.Mutex
	return &Releasable[T]{
		Value: v,
		Release: func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			if released {
				return nil
			}
			released = true
			p.put(v)
			return nil
		},
	}
}

// put returns an instance to the first waiter, or to the idle list.
func (p *Pool[T]) put(v T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		w <- v
		return
	}
	p.idle = append(p.idle, v)
}

// Idle reports the number of idle instances.
func (p *Pool[T]) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Close marks the pool closed; subsequent Acquire calls fail. Held
// instances may still be released back.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}
