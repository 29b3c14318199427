package wrap

import (
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/ownership"
)

// Boxed exclusively owns one boxed value. The zero value is the nil
// wrapper. Two Boxed wrappers never claim the same handle; aliasing goes
// through Copy.
type Boxed[C BoxedClass] struct {
	h Handle
}

// WrapBoxed takes ownership of h according to tag. None duplicates, Full
// adopts.
func WrapBoxed[C BoxedClass](h Handle, tag ownership.Tag) (Boxed[C], error) {
	if h == 0 {
		return Boxed[C]{}, nil
	}
	switch tag {
	case ownership.None:
		var c C
		dup, err := c.Copy(h)
		if err != nil {
			return Boxed[C]{}, err
		}
		return Boxed[C]{h: dup}, nil
	case ownership.Full:
		return Boxed[C]{h: h}, nil
	default:
		errors.Violation(errors.PhaseWrap, "boxed wrap with tag %s", tag)
		return Boxed[C]{}, nil
	}
}

// Handle returns the raw handle. The wrapper keeps ownership.
func (b Boxed[C]) Handle() Handle { return b.h }

// IsNil reports whether the wrapper holds no handle.
func (b Boxed[C]) IsNil() bool { return b.h == 0 }

// Unwrap hands the handle out while keeping the wrapper intact. With Full
// the callee receives a duplicate, which is only allowed for classes
// implementing CheapCopier; other classes must be consumed with Take or
// duplicated explicitly with Copy.
func (b Boxed[C]) Unwrap(tag ownership.Tag) (Handle, error) {
	if b.h == 0 {
		return 0, nil
	}
	switch tag {
	case ownership.None:
		return b.h, nil
	case ownership.Full:
		if !isCheap[C]() {
			errors.Violation(errors.PhaseUnwrap, "implicit duplication of boxed value %#x; use Take or Copy", uintptr(b.h))
		}
		var c C
		return c.Copy(b.h)
	default:
		errors.Violation(errors.PhaseUnwrap, "boxed unwrap with tag %s", tag)
		return 0, nil
	}
}

// Take consumes the wrapper, moving the value to the callee. Only Full can
// consume a boxed value; to lend one, pass Handle and Close afterwards.
func (b *Boxed[C]) Take(tag ownership.Tag) Handle {
	if b.h == 0 {
		errors.Violation(errors.PhaseUnwrap, "take from a nil or consumed boxed wrapper")
	}
	if tag != ownership.Full {
		errors.Violation(errors.PhaseUnwrap, "boxed take with tag %s", tag)
	}
	return b.Release()
}

// Release detaches the handle without freeing it.
func (b *Boxed[C]) Release() Handle {
	h := b.h
	b.h = 0
	return h
}

// Move transfers ownership to the returned wrapper, leaving b nil.
func (b *Boxed[C]) Move() Boxed[C] {
	return Boxed[C]{h: b.Release()}
}

// Copy duplicates the value into a new owner.
func (b Boxed[C]) Copy() (Boxed[C], error) {
	return WrapBoxed[C](b.h, ownership.None)
}

// View returns a non-owning reference. It must not outlive b.
func (b Boxed[C]) View() BoxedRef[C] {
	return BoxedRef[C]{h: b.h}
}

// Close frees the value. Closing a nil wrapper is a no-op.
func (b *Boxed[C]) Close() {
	if b.h == 0 {
		return
	}
	var c C
	c.Free(b.h)
	b.h = 0
}

// BoxedRef is a borrowed view of a boxed value owned by a Boxed wrapper.
// It has the same layout as Boxed and supports the reads that need no
// duplication.
type BoxedRef[C BoxedClass] struct {
	h Handle
}

// Handle returns the raw handle.
func (r BoxedRef[C]) Handle() Handle { return r.h }

// IsNil reports whether the view refers to nothing.
func (r BoxedRef[C]) IsNil() bool { return r.h == 0 }

// Copy promotes the view to an owner by duplicating the value.
func (r BoxedRef[C]) Copy() (Boxed[C], error) {
	return WrapBoxed[C](r.h, ownership.None)
}
