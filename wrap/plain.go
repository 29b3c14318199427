package wrap

import "github.com/wippyai/ffi-runtime/ownership"

// Plain holds a trivially copyable value. Ownership tags do not apply:
// every wrap and unwrap is a copy, and nothing is ever released.
type Plain[T any] struct {
	v T
}

// WrapPlain copies v. The tag is accepted for call-site symmetry.
func WrapPlain[T any](v T, _ ownership.Tag) Plain[T] {
	return Plain[T]{v: v}
}

// Value returns the held value.
func (p Plain[T]) Value() T { return p.v }

// Unwrap returns a copy of the value.
func (p Plain[T]) Unwrap(ownership.Tag) T { return p.v }

// Copy returns p.
func (p Plain[T]) Copy() Plain[T] { return p }
