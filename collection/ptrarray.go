package collection

import (
	"iter"
	"slices"

	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/foreign"
	"github.com/wippyai/ffi-runtime/ownership"
)

// PtrArray adapts a foreign ref-counted pointer vector. An owning PtrArray
// holds one reference to the array.
type PtrArray[E Element] struct {
	base[E]
	arr Handle
}

// NewPtrArray returns an empty owning array. The foreign array is created
// on first push.
func NewPtrArray[E Element](rt *foreign.Runtime) *PtrArray[E] {
	return &PtrArray[E]{base: base[E]{rt: rt, owned: true}}
}

// PtrArrayFromSlice builds an owning array of duplicates of elems.
func PtrArrayFromSlice[E Element](rt *foreign.Runtime, elems []Handle) (*PtrArray[E], error) {
	a := NewPtrArray[E](rt)
	for _, h := range elems {
		if err := a.Push(h, ownership.None); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// PtrArrayFromHandle adopts or borrows a foreign array according to tag.
// Adopting takes over the caller's reference to the array.
func PtrArrayFromHandle[E Element](rt *foreign.Runtime, arr Handle, tag ownership.Tag) (*PtrArray[E], error) {
	checkAdoptTag(tag)
	a := &PtrArray[E]{base: base[E]{rt: rt, owned: tag != ownership.None}, arr: arr}
	if tag == ownership.Container && arr != 0 {
		dups, err := a.dupAll(slices.Collect(a.All()))
		if err != nil {
			rt.PtrArraySetFreeFunc(arr, nil)
			rt.PtrArrayUnref(arr)
			return nil, err
		}
		for i, h := range dups {
			rt.PtrArraySet(arr, i, h)
		}
	}
	return a, nil
}

// Handle returns the array handle.
func (a *PtrArray[E]) Handle() Handle { return a.arr }

// Push appends an element. Full adopts h, None duplicates it.
func (a *PtrArray[E]) Push(h Handle, tag ownership.Tag) error {
	a.mustOwn("push")
	h, err := a.take(h, tag)
	if err != nil {
		return err
	}
	if err := a.adopt(h); err != nil {
		a.elem().Free(h)
		return err
	}
	return nil
}

func (a *PtrArray[E]) adopt(h Handle) error {
	a.mustOwn("push")
	if a.arr == 0 {
		arr, err := a.rt.PtrArrayNew(nil)
		if err != nil {
			return err
		}
		a.arr = arr
	}
	return a.rt.PtrArrayAdd(a.arr, h)
}

// Len returns the element count.
func (a *PtrArray[E]) Len() int {
	if a.arr == 0 {
		return 0
	}
	return a.rt.PtrArrayLen(a.arr)
}

// At returns element i.
func (a *PtrArray[E]) At(i int) (Handle, error) {
	n := a.Len()
	if i < 0 || i >= n {
		return 0, outOfRange(i, n)
	}
	return a.rt.PtrArrayIndex(a.arr, i), nil
}

// Front returns the first element.
func (a *PtrArray[E]) Front() (Handle, error) { return a.At(0) }

// Back returns the last element.
func (a *PtrArray[E]) Back() (Handle, error) { return a.At(a.Len() - 1) }

// All yields the elements in index order.
func (a *PtrArray[E]) All() iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		for i := range a.Len() {
			if !yield(a.rt.PtrArrayIndex(a.arr, i)) {
				return
			}
		}
	}
}

// Clear removes every element, destroying them if owned. The array shell
// is kept.
func (a *PtrArray[E]) Clear() {
	if !a.owned {
		a.arr = 0
		return
	}
	a.freeAll(a.steal())
}

// steal empties the foreign array without freeing elements.
func (a *PtrArray[E]) steal() []Handle {
	var out []Handle
	for a.Len() > 0 {
		out = append(out, a.rt.PtrArrayStealIndex(a.arr, 0))
	}
	return out
}

// Unwrap hands the array to foreign code. With Full the array's free
// function is set so the foreign side releases elements with it; with
// Container it is cleared and the element references stay here until
// Close.
func (a *PtrArray[E]) Unwrap(tag ownership.Tag) (Handle, error) {
	switch tag {
	case ownership.None:
		return a.arr, nil
	case ownership.Full:
		if !a.owned {
			return a.rebuild(true)
		}
		if a.arr != 0 {
			a.rt.PtrArraySetFreeFunc(a.arr, a.elem().Free)
		}
		return a.Release(), nil
	case ownership.Container:
		if !a.owned {
			return a.rebuild(false)
		}
		if a.arr != 0 {
			a.retained = append(a.retained, slices.Collect(a.All())...)
			a.rt.PtrArraySetFreeFunc(a.arr, nil)
		}
		return a.Release(), nil
	}
	errors.Violation(errors.PhaseUnwrap, "pointer array unwrap with tag %s", tag)
	return 0, nil
}

func (a *PtrArray[E]) rebuild(dup bool) (Handle, error) {
	elems := slices.Collect(a.All())
	if dup {
		var err error
		if elems, err = a.dupAll(elems); err != nil {
			return 0, err
		}
	}
	var free func(Handle)
	if dup {
		free = a.elem().Free
	}
	arr, err := a.rt.PtrArrayNew(free)
	if err != nil {
		if dup {
			a.freeAll(elems)
		}
		return 0, err
	}
	for i, h := range elems {
		if err := a.rt.PtrArrayAdd(arr, h); err != nil {
			a.rt.PtrArrayUnref(arr)
			if dup {
				a.freeAll(elems[i:])
			}
			return 0, err
		}
	}
	return arr, nil
}

// Release detaches the array reference without dropping it.
func (a *PtrArray[E]) Release() Handle {
	h := a.arr
	a.arr = 0
	return h
}

// Close drops an owned array reference. If other references remain the
// elements are left to the array's last owner through its free function.
func (a *PtrArray[E]) Close() {
	if a.owned && a.arr != 0 {
		a.rt.PtrArraySetFreeFunc(a.arr, a.elem().Free)
		a.rt.PtrArrayUnref(a.arr)
	}
	a.arr = 0
	a.releaseRetained()
}

func (a *PtrArray[E]) drain() ([]Handle, bool) {
	if !a.owned {
		return slices.Collect(a.All()), false
	}
	if a.arr == 0 {
		return nil, true
	}
	elems := a.steal()
	a.rt.PtrArraySetFreeFunc(a.arr, nil)
	a.rt.PtrArrayUnref(a.arr)
	a.arr = 0
	return elems, true
}
