package chain

// Result is the outcome of a system that either succeeds with a T or fails with an E. Both
// branches are ordinary control flow; a ResultSystem always hands one of them to a continuation.
type Result[T, E any] struct {
	value T
	err   E
	ok    bool
}

// Ok returns a successful Result.
func Ok[T, E any](value T) Result[T, E] {
	return Result[T, E]{value: value, ok: true}
}

// Err returns a failed Result.
func Err[T, E any](err E) Result[T, E] {
	return Result[T, E]{err: err}
}

// FromError returns Ok(value) when err is nil and Err(err) otherwise.
func FromError[T any](value T, err error) Result[T, error] {
	if err != nil {
		return Err[T](err)
	}
	return Ok[T, error](value)
}

// IsOk reports whether the result is the success branch.
func (r Result[T, E]) IsOk() bool {
	return r.ok
}

// Value returns the success payload and whether the result is Ok.
func (r Result[T, E]) Value() (T, bool) {
	return r.value, r.ok
}

// Error returns the failure payload and whether the result is Err.
func (r Result[T, E]) Error() (E, bool) {
	return r.err, !r.ok
}

// Option is the outcome of a system that may or may not produce a T.
type Option[T any] struct {
	value T
	some  bool
}

// Some returns an Option holding value.
func Some[T any](value T) Option[T] {
	return Option[T]{value: value, some: true}
}

// None returns an empty Option.
func None[T any]() Option[T] {
	return Option[T]{}
}

// IsSome reports whether the option holds a value.
func (o Option[T]) IsSome() bool {
	return o.some
}

// Get returns the value and whether there is one.
func (o Option[T]) Get() (T, bool) {
	return o.value, o.some
}
