package lease

import (
	"context"

	"github.com/rs/zerolog"
)

// Finalizer runs against the acquired value before release on every
// exit path of a bracket. Finalizer errors are swallowed: they are
// logged, never propagated, so they cannot mask the primary outcome or
// disturb cleanup ordering.
type Finalizer[T any] func(ctx context.Context, value T) error

// Bracket acquires a resource, runs use against it, and releases it on
// every exit path.
//
// If acquire fails, Bracket returns its error and nothing else runs.
// Otherwise the finalizers run first (in order, errors swallowed), then
// Release runs (error swallowed). The return value is always use's
// outcome: when both use and a finalizer fail, the use error wins and
// the finalizer error is discarded after logging.
func Bracket[T, R any](
	ctx context.Context,
	acquire Acquire[T],
	use func(ctx context.Context, value T) (R, error),
	finalizers ...Finalizer[T],
) (R, error) {
	var zero R

	r, err := acquire(ctx)
	if err != nil {
		return zero, err
	}

	defer func() {
		log := zerolog.Ctx(ctx)
		for _, fin := range finalizers {
			if ferr := fin(ctx, r.Value); ferr != nil {
				log.Warn().Err(ferr).Msg("bracket finalizer failed; error swallowed")
			}
		}
		if r.Release == nil {
			return
		}
		if rerr := r.Release(ctx); rerr != nil {
			log.Debug().Err(rerr).Msg("bracket release failed; error swallowed")
		}
	}()

	return use(ctx, r.Value)
}

// BracketScoped is Bracket with scope-checked handle issuance: use
// receives a Lease bound to a fresh Scope instead of the raw value.
// The lease is unusable once the bracket returns, because no other
// scope can open it.
func BracketScoped[T, R any](
	ctx context.Context,
	acquire Acquire[T],
	use func(ctx context.Context, scope *Scope, l Lease[T]) (R, error),
	finalizers ...Finalizer[T],
) (R, error) {
	return Bracket(ctx, acquire, func(ctx context.Context, value T) (R, error) {
		scope := NewScope()
		return use(ctx, scope, Issue(scope, value))
	}, finalizers...)
}
