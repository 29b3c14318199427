package collection

import (
	ffiruntime "github.com/wippyai/ffi-runtime"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/foreign"
	"github.com/wippyai/ffi-runtime/ownership"
)

// Handle is an opaque foreign address.
type Handle = ffiruntime.Handle

// Element duplicates and frees the elements of a collection.
// Implementations are zero-size types.
type Element interface {
	Dup(h Handle) (Handle, error)
	Free(h Handle)
}

type base[E Element] struct {
	rt       *foreign.Runtime
	retained []Handle
	owned    bool
}

func (b *base[E]) elem() E {
	var e E
	return e
}

// Owned reports whether the collection owns its shell and elements.
func (b *base[E]) Owned() bool { return b.owned }

// take returns an element reference owned by the collection.
func (b *base[E]) take(h Handle, tag ownership.Tag) (Handle, error) {
	switch tag {
	case ownership.Full:
		return h, nil
	case ownership.None:
		return b.elem().Dup(h)
	default:
		errors.Violation(errors.PhaseCollection, "element insert with tag %s", tag)
		return 0, nil
	}
}

func (b *base[E]) mustOwn(op string) {
	if !b.owned {
		errors.Violation(errors.PhaseCollection, "%s on a borrowed collection", op)
	}
}

func (b *base[E]) releaseRetained() {
	e := b.elem()
	for _, h := range b.retained {
		e.Free(h)
	}
	b.retained = nil
}

func (b *base[E]) freeAll(hs []Handle) {
	e := b.elem()
	for _, h := range hs {
		e.Free(h)
	}
}

// dupAll duplicates hs. On failure nothing stays allocated.
func (b *base[E]) dupAll(hs []Handle) ([]Handle, error) {
	e := b.elem()
	out := make([]Handle, 0, len(hs))
	for _, h := range hs {
		d, err := e.Dup(h)
		if err != nil {
			b.freeAll(out)
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func outOfRange(i, n int) error {
	return errors.OutOfBounds(errors.PhaseCollection, nil, i, n)
}

func checkAdoptTag(tag ownership.Tag) {
	if tag > ownership.Container {
		errors.Violation(errors.PhaseCollection, "adopt with tag %s", tag)
	}
}

// Source is a collection Convert can drain.
type Source[E Element] interface {
	elem() E
	// drain empties the collection. moved reports that the returned
	// element references now belong to the caller; otherwise they are
	// still owned elsewhere and must be duplicated.
	drain() (elems []Handle, moved bool)
}

// Sink is a collection Convert can fill.
type Sink[E Element] interface {
	elem() E
	// adopt appends an element reference the collection now owns.
	adopt(h Handle) error
}

// Convert moves the elements of src into dst, in src's iteration order.
// Elements of an owning src are re-homed without duplication and src is
// left empty with its shell freed. Elements of a borrowed src are
// duplicated. dst must own its elements.
func Convert[E Element](dst Sink[E], src Source[E]) error {
	var e E
	elems, moved := src.drain()
	if !moved {
		dups := make([]Handle, 0, len(elems))
		for _, h := range elems {
			d, err := e.Dup(h)
			if err != nil {
				for _, x := range dups {
					e.Free(x)
				}
				return err
			}
			dups = append(dups, d)
		}
		elems = dups
	}
	for i, h := range elems {
		if err := dst.adopt(h); err != nil {
			for _, rest := range elems[i:] {
				e.Free(rest)
			}
			return err
		}
	}
	return nil
}
