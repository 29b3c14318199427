package wrap

import (
	"go.uber.org/zap"

	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/ownership"
)

// Object owns one reference to a ref-counted instance. The zero value is
// the nil wrapper.
type Object[C RefClass] struct {
	h Handle
}

// Wrap takes ownership of h according to tag. None joins ownership by
// adding a reference; Full adopts the caller's reference. Either way a
// floating reference is sunk, so the wrapper always holds a real one.
func Wrap[C RefClass](h Handle, tag ownership.Tag) Object[C] {
	if h == 0 {
		return Object[C]{}
	}
	var c C
	switch tag {
	case ownership.None:
		c.RefSink(h)
	case ownership.Full:
		if c.IsFloating(h) {
			c.RefSink(h)
		}
	default:
		errors.Violation(errors.PhaseWrap, "object wrap with tag %s", tag)
	}
	return Object[C]{h: h}
}

// Handle returns the raw handle. The wrapper keeps ownership.
func (o Object[C]) Handle() Handle { return o.h }

// IsNil reports whether the wrapper holds no handle.
func (o Object[C]) IsNil() bool { return o.h == 0 }

// Unwrap hands the handle out while keeping the wrapper intact. With Full
// the callee receives a reference of its own.
func (o Object[C]) Unwrap(tag ownership.Tag) Handle {
	if o.h == 0 {
		return 0
	}
	switch tag {
	case ownership.None:
		return o.h
	case ownership.Full:
		var c C
		return c.Ref(o.h)
	default:
		errors.Violation(errors.PhaseUnwrap, "object unwrap with tag %s", tag)
		return 0
	}
}

// Take consumes the wrapper and hands its reference across the boundary.
//
// With Full the reference moves to the callee. With None the callee will
// take a reference of its own, so ours must go: if it is the only
// outstanding reference it is turned floating instead of dropped, leaving
// the instance alive for the caller to sink. The check and the change are
// a single atomic step in the class, so no other holder can slip in
// between. Otherwise the reference is released.
//
// Taking from a nil or already consumed wrapper is a contract violation.
func (o *Object[C]) Take(tag ownership.Tag) Handle {
	if o.h == 0 {
		errors.Violation(errors.PhaseUnwrap, "take from a nil or consumed object wrapper")
	}
	h := o.h
	switch tag {
	case ownership.Full:
	case ownership.None:
		var c C
		if c.FloatIfSole(h) {
			Logger().Debug("floating reference rescue", zap.Uintptr("handle", uintptr(h)))
		} else {
			c.Unref(h)
		}
	default:
		errors.Violation(errors.PhaseUnwrap, "object take with tag %s", tag)
	}
	o.h = 0
	return h
}

// Release detaches the handle without dropping the reference. The caller
// becomes responsible for it.
func (o *Object[C]) Release() Handle {
	h := o.h
	o.h = 0
	return h
}

// Move transfers ownership to the returned wrapper, leaving o nil.
func (o *Object[C]) Move() Object[C] {
	return Object[C]{h: o.Release()}
}

// Copy returns a second owner of the same instance.
func (o Object[C]) Copy() Object[C] {
	if o.h == 0 {
		return Object[C]{}
	}
	var c C
	return Object[C]{h: c.Ref(o.h)}
}

// View returns a non-owning reference. It must not outlive o.
func (o Object[C]) View() ObjectRef[C] {
	return ObjectRef[C]{h: o.h}
}

// Close drops the wrapper's reference. Closing a nil wrapper is a no-op.
func (o *Object[C]) Close() {
	if o.h == 0 {
		return
	}
	var c C
	c.Unref(o.h)
	o.h = 0
}

// ObjectRef is a borrowed view of an instance owned elsewhere.
type ObjectRef[C RefClass] struct {
	h Handle
}

// Handle returns the raw handle.
func (r ObjectRef[C]) Handle() Handle { return r.h }

// IsNil reports whether the view refers to nothing.
func (r ObjectRef[C]) IsNil() bool { return r.h == 0 }

// Copy promotes the view to an owner by adding a reference.
func (r ObjectRef[C]) Copy() Object[C] {
	return Object[C]{h: r.h}.Copy()
}
