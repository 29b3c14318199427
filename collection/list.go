package collection

import (
	"iter"
	"slices"

	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/foreign"
	"github.com/wippyai/ffi-runtime/ownership"
)

// List adapts a foreign doubly linked list. The list handle is its head
// node; the empty list is 0.
type List[E Element] struct {
	base[E]
	head Handle
	tail Handle
}

// NewList returns an empty owning list.
func NewList[E Element](rt *foreign.Runtime) *List[E] {
	return &List[E]{base: base[E]{rt: rt, owned: true}}
}

// ListFromSlice builds an owning list of duplicates of elems.
func ListFromSlice[E Element](rt *foreign.Runtime, elems []Handle) (*List[E], error) {
	l := NewList[E](rt)
	for _, h := range elems {
		if err := l.Push(h, ownership.None); err != nil {
			l.Close()
			return nil, err
		}
	}
	return l, nil
}

// ListFromHandle adopts or borrows a foreign list according to tag.
func ListFromHandle[E Element](rt *foreign.Runtime, head Handle, tag ownership.Tag) (*List[E], error) {
	checkAdoptTag(tag)
	l := &List[E]{base: base[E]{rt: rt, owned: tag != ownership.None}, head: head}
	l.tail = rt.ListLast(head)
	if tag == ownership.Container {
		var nodes, elems []Handle
		for n := head; n != 0; n = rt.ListNext(n) {
			nodes = append(nodes, n)
			elems = append(elems, rt.ListData(n))
		}
		dups, err := l.dupAll(elems)
		if err != nil {
			rt.ListFree(head)
			return nil, err
		}
		for i, n := range nodes {
			rt.ListSetData(n, dups[i])
		}
	}
	return l, nil
}

// Handle returns the head node.
func (l *List[E]) Handle() Handle { return l.head }

// Push appends an element. Full adopts h, None duplicates it.
func (l *List[E]) Push(h Handle, tag ownership.Tag) error {
	l.mustOwn("push")
	h, err := l.take(h, tag)
	if err != nil {
		return err
	}
	if err := l.adopt(h); err != nil {
		l.elem().Free(h)
		return err
	}
	return nil
}

// PushFront prepends an element.
func (l *List[E]) PushFront(h Handle, tag ownership.Tag) error {
	l.mustOwn("push")
	h, err := l.take(h, tag)
	if err != nil {
		return err
	}
	head, err := l.rt.ListPrepend(l.head, h)
	if err != nil {
		l.elem().Free(h)
		return err
	}
	if l.head == 0 {
		l.tail = head
	}
	l.head = head
	return nil
}

func (l *List[E]) adopt(h Handle) error {
	l.mustOwn("push")
	if l.head == 0 {
		head, err := l.rt.ListAppend(0, h)
		if err != nil {
			return err
		}
		l.head, l.tail = head, head
		return nil
	}
	if _, err := l.rt.ListAppend(l.tail, h); err != nil {
		return err
	}
	l.tail = l.rt.ListNext(l.tail)
	return nil
}

// Len walks the list.
func (l *List[E]) Len() int { return l.rt.ListLength(l.head) }

// At returns element i.
func (l *List[E]) At(i int) (Handle, error) {
	if i >= 0 {
		k := 0
		for n := l.head; n != 0; n = l.rt.ListNext(n) {
			if k == i {
				return l.rt.ListData(n), nil
			}
			k++
		}
	}
	return 0, outOfRange(i, l.Len())
}

// Front returns the first element.
func (l *List[E]) Front() (Handle, error) { return l.At(0) }

// Back returns the last element without walking.
func (l *List[E]) Back() (Handle, error) {
	if l.tail == 0 {
		return 0, outOfRange(0, 0)
	}
	return l.rt.ListData(l.tail), nil
}

// All yields the elements in list order.
func (l *List[E]) All() iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		for n := l.head; n != 0; n = l.rt.ListNext(n) {
			if !yield(l.rt.ListData(n)) {
				return
			}
		}
	}
}

// Backward yields the elements from the tail.
func (l *List[E]) Backward() iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		for n := l.tail; n != 0; n = l.rt.ListPrev(n) {
			if !yield(l.rt.ListData(n)) {
				return
			}
		}
	}
}

// Clear empties the list, destroying elements and nodes if owned.
func (l *List[E]) Clear() {
	if l.owned {
		l.rt.ListFreeFull(l.head, l.elem().Free)
	}
	l.head, l.tail = 0, 0
}

// Unwrap hands the list to foreign code, see SList.Unwrap.
func (l *List[E]) Unwrap(tag ownership.Tag) (Handle, error) {
	switch tag {
	case ownership.None:
		return l.head, nil
	case ownership.Full:
		if l.owned {
			return l.Release(), nil
		}
		return l.rebuild(true)
	case ownership.Container:
		if l.owned {
			l.retained = append(l.retained, slices.Collect(l.All())...)
			return l.Release(), nil
		}
		return l.rebuild(false)
	}
	errors.Violation(errors.PhaseUnwrap, "list unwrap with tag %s", tag)
	return 0, nil
}

func (l *List[E]) rebuild(dup bool) (Handle, error) {
	elems := slices.Collect(l.All())
	if dup {
		var err error
		if elems, err = l.dupAll(elems); err != nil {
			return 0, err
		}
	}
	var head, tail Handle
	for _, h := range elems {
		var err error
		if head == 0 {
			head, err = l.rt.ListAppend(0, h)
			tail = head
		} else {
			_, err = l.rt.ListAppend(tail, h)
			tail = l.rt.ListNext(tail)
		}
		if err != nil {
			l.rt.ListFree(head)
			if dup {
				l.freeAll(elems)
			}
			return 0, err
		}
	}
	return head, nil
}

// Release detaches the list without destroying anything.
func (l *List[E]) Release() Handle {
	h := l.head
	l.head, l.tail = 0, 0
	return h
}

// Close destroys an owned list and any retained element references.
func (l *List[E]) Close() {
	l.Clear()
	l.releaseRetained()
}

func (l *List[E]) drain() ([]Handle, bool) {
	elems := slices.Collect(l.All())
	if !l.owned {
		return elems, false
	}
	l.rt.ListFree(l.head)
	l.head, l.tail = 0, 0
	return elems, true
}
