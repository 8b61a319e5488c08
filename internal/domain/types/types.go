// Package types contains common types used across the application
package types

// Result is the outcome of one independent task: either a value or an error,
// never both. A failed Result carries the zero value.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps an error.
func Fail[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// Succeeded reports whether the task produced a value.
func (r Result[T]) Succeeded() bool {
	return r.Err == nil
}

// Get returns the value and whether it is usable.
func (r Result[T]) Get() (T, bool) {
	return r.Value, r.Err == nil
}
