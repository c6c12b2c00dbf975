// Package result provides a small generic success/failure container
// used by the composition helpers to collect outcomes from concurrent
// branches without juggling parallel value/error slices.
package result

// Result holds either a value or an error, never both.
type Result[T any] struct {
	value T
	err   error
}

// Ok creates a successful result.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Err creates a failed result.
func Err[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// Of converts a conventional (value, error) pair into a Result.
func Of[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

// IsOk reports whether the result holds a value.
func (r Result[T]) IsOk() bool {
	return r.err == nil
}

// Get returns the conventional (value, error) pair.
func (r Result[T]) Get() (T, error) {
	return r.value, r.err
}

// Err returns the error, or nil on success.
func (r Result[T]) Err() error {
	return r.err
}

// OrElse returns the value, or fallback when the result failed.
func (r Result[T]) OrElse(fallback T) T {
	if r.err != nil {
		return fallback
	}
	return r.value
}

// Map transforms a successful result's value; errors pass through.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if r.err != nil {
		return Err[U](r.err)
	}
	return Ok(fn(r.value))
}

// AndThen chains a fallible transformation; errors pass through.
func AndThen[T, U any](r Result[T], fn func(T) (U, error)) Result[U] {
	if r.err != nil {
		return Err[U](r.err)
	}
	return Of(fn(r.value))
}

// Recover replaces a failed result using fn; successes pass through.
func (r Result[T]) Recover(fn func(error) (T, error)) Result[T] {
	if r.err == nil {
		return r
	}
	return Of(fn(r.err))
}

// Option holds an optional value.
type Option[T any] struct {
	value T
	ok    bool
}

// Some creates a present option.
func Some[T any](v T) Option[T] {
	return Option[T]{value: v, ok: true}
}

// None creates an absent option.
func None[T any]() Option[T] {
	return Option[T]{}
}

// Get returns the value and whether it is present.
func (o Option[T]) Get() (T, bool) {
	return o.value, o.ok
}

// OrElse returns the value, or fallback when absent.
func (o Option[T]) OrElse(fallback T) T {
	if !o.ok {
		return fallback
	}
	return o.value
}
