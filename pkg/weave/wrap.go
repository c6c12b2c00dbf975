package weave

import (
	"context"
	"fmt"
	"time"

	"github.com/loomworks/loom/pkg/fault"
	"github.com/loomworks/loom/pkg/lease"
	"github.com/loomworks/loom/pkg/meta"
)

// call is the uniform shape every wrapper decorates.
type call[T any] func(ctx context.Context) (T, error)

// wrapCircuit rejects calls while the named circuit is open, trips the
// circuit on failure, and closes it on success. The check happens
// before any I/O; an open circuit is the cheapest possible fast-fail.
func wrapCircuit[T any](o Options, name string, halfOpen time.Duration, port, op string, fn call[T]) call[T] {
	return func(ctx context.Context) (T, error) {
		var zero T
		now := o.Now()
		if until := o.Circuits.OpenUntil(name); now.Before(until) {
			remaining := until.Sub(now)
			o.Logger.Warn().
				Str("circuit", name).
				Dur("cooldown_remaining", remaining).
				Msg("circuit open; rejecting call")
			if o.Metrics != nil {
				o.Metrics.RecordCircuitShort(name)
			}
			return zero, fault.CircuitOpen(fmt.Sprintf("circuit %q open for another %s", name, remaining)).
				WithCode(fault.CodeCircuitOpen).WithPort(port).WithOp(op)
		}

		v, err := fn(ctx)
		if err != nil {
			o.Circuits.SetOpenUntil(name, o.Now().Add(halfOpen))
			if o.Metrics != nil {
				o.Metrics.RecordCircuitTrip(name)
			}
			return zero, err
		}
		o.Circuits.SetOpenUntil(name, time.Time{})
		return v, nil
	}
}

// wrapLog logs each individual attempt, so failures inside the retry
// loop are each recorded: debug with elapsed ms on success, error with
// elapsed ms and the stringified error on failure.
func wrapLog[T any](o Options, port, op string, fn call[T]) call[T] {
	return func(ctx context.Context) (T, error) {
		start := o.Now()
		v, err := fn(ctx)
		elapsed := o.Now().Sub(start)
		if err != nil {
			o.Logger.Error().
				Str("port", port).
				Str("op", op).
				Dur("elapsed", elapsed).
				Str("error", err.Error()).
				Msg("port call failed")
			if o.Metrics != nil {
				o.Metrics.RecordPortCall(port, op, "error", elapsed)
			}
			return v, err
		}
		o.Logger.Debug().
			Str("port", port).
			Str("op", op).
			Dur("elapsed", elapsed).
			Msg("port call succeeded")
		if o.Metrics != nil {
			o.Metrics.RecordPortCall(port, op, "ok", elapsed)
		}
		return v, nil
	}
}

// wrapRetry attempts the call up to times+1 total times, sleeping
// delayMs (jittered uniformly in [0.5d, 1.5d] when enabled) between
// attempts. Non-retryable errors (circuit-open rejections) return
// immediately: the breaker already knows the downstream is failing.
func wrapRetry[T any](o Options, spec meta.RetrySpec, port, op string, fn call[T]) call[T] {
	return func(ctx context.Context) (T, error) {
		var zero T
		var lastErr error
		for attempt := 0; attempt <= spec.Times; attempt++ {
			if attempt > 0 {
				delay := time.Duration(spec.DelayMS) * time.Millisecond
				if spec.Jitter {
					delay = time.Duration(float64(delay) * (0.5 + o.Rand()))
				}
				if o.Metrics != nil {
					o.Metrics.RecordRetry(port)
				}
				if err := o.Sleep(ctx, delay); err != nil {
					return zero, err
				}
			}
			v, err := fn(ctx)
			if err == nil {
				return v, nil
			}
			lastErr = err
			if !fault.IsRetryable(err) {
				return zero, err
			}
		}
		return zero, lastErr
	}
}

// wrapTimeout races the call against a timer. On expiry the caller
// gets a distinct effect-timeout error; the original call is not
// cancelled; the dangling goroutine is accepted, and host ports are
// expected to tolerate orphaned in-flight calls or be idempotent.
func wrapTimeout[T any](o Options, d time.Duration, port, op string, fn call[T]) call[T] {
	return func(ctx context.Context) (T, error) {
		var zero T
		type outcome struct {
			v   T
			err error
		}
		ch := make(chan outcome, 1)
		go func() {
			v, err := fn(ctx)
			ch <- outcome{v, err}
		}()

		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case out := <-ch:
			return out.v, out.err
		case <-timer.C:
			return zero, fault.Timeout(fmt.Sprintf("%s.%s exceeded %s budget", port, op, d)).
				WithCode(fault.CodeTimeout).WithPort(port).WithOp(op)
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// wrapAcquireTimeout bounds a lease acquisition with its own budget.
// Unlike wrapTimeout, a losing acquire is compensated: if the acquire
// resolves after the timer already fired, the wrapper releases the
// late-arriving resource itself, since the caller has moved on and can
// never call Release. A timed-out acquire must never leak.
func wrapAcquireTimeout[T any](o Options, d time.Duration, kind string, fn call[*lease.Releasable[T]]) call[*lease.Releasable[T]] {
	return func(ctx context.Context) (*lease.Releasable[T], error) {
		type outcome struct {
			r   *lease.Releasable[T]
			err error
		}
		ch := make(chan outcome, 1)
		go func() {
			r, err := fn(ctx)
			ch <- outcome{r, err}
		}()

		releaseLate := func() {
			out := <-ch
			if out.err != nil || out.r == nil || out.r.Release == nil {
				return
			}
			if rerr := out.r.Release(context.Background()); rerr != nil {
				o.Logger.Debug().Err(rerr).Str("lease", kind).Msg("late-acquire release failed")
				return
			}
			o.Logger.Debug().Str("lease", kind).Msg("released late-arriving acquire after timeout")
		}

		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case out := <-ch:
			return out.r, out.err
		case <-timer.C:
			if o.Metrics != nil {
				o.Metrics.RecordAcquireTimeout(kind)
			}
			go releaseLate()
			return nil, fault.AcquireTimeout(fmt.Sprintf("lease %q acquire exceeded %s budget", kind, d)).
				WithCode(fault.CodeAcquireTimeout).WithPort("lease").WithOp(kind)
		case <-ctx.Done():
			go releaseLate()
			return nil, ctx.Err()
		}
	}
}
