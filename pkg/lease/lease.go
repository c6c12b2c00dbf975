package lease

import (
	"context"
	"sync/atomic"

	"github.com/loomworks/loom/pkg/fault"
)

// Releasable pairs a resource value with its release function. It is
// the transient wrapper returned by acquire functions and consumed
// immediately by Bracket; it is not meant to be retained.
type Releasable[T any] struct {
	// Value is the acquired resource.
	Value T

	// Release returns the resource. It must be safe to call exactly
	// once; Bracket guarantees it is called exactly once.
	Release func(ctx context.Context) error
}

// Acquire is the shape of every resource acquire function.
type Acquire[T any] func(ctx context.Context) (*Releasable[T], error)

// scopeIDs issues process-unique scope identities.
var scopeIDs atomic.Uint64

// Scope identifies one bracket invocation. A Lease can only be
// unwrapped with the scope it was issued under.
type Scope struct {
	id uint64
}

// NewScope creates a fresh scope identity.
func NewScope() *Scope {
	return &Scope{id: scopeIDs.Add(1)}
}

// Lease is a scope-checked handle to a resource. The zero Lease is
// invalid. Construction goes through Issue inside a bracket; unwrapping
// requires the issuing scope, so a lease that leaks out of its bracket
// cannot be used.
type Lease[T any] struct {
	value T
	scope *Scope
}

// Issue creates a lease bound to the given scope.
func Issue[T any](s *Scope, value T) Lease[T] {
	return Lease[T]{value: value, scope: s}
}

// Open returns the leased value when s is the issuing scope.
func (l Lease[T]) Open(s *Scope) (T, error) {
	var zero T
	if l.scope == nil {
		return zero, fault.Acquire("lease is not bound to any scope", nil).WithCode(fault.CodeLeaseScope)
	}
	if s == nil || s.id != l.scope.id {
		return zero, fault.Acquire("lease opened outside its issuing scope", nil).WithCode(fault.CodeLeaseScope)
	}
	return l.value, nil
}
