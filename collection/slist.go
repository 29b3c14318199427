package collection

import (
	"iter"
	"slices"

	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/foreign"
	"github.com/wippyai/ffi-runtime/ownership"
)

// SList adapts a foreign singly linked list. The list handle is its head
// node; the empty list is 0.
type SList[E Element] struct {
	base[E]
	head Handle
	tail Handle
}

// NewSList returns an empty owning list. Nodes are allocated on first push.
func NewSList[E Element](rt *foreign.Runtime) *SList[E] {
	return &SList[E]{base: base[E]{rt: rt, owned: true}}
}

// SListFromSlice builds an owning list of duplicates of elems.
func SListFromSlice[E Element](rt *foreign.Runtime, elems []Handle) (*SList[E], error) {
	l := NewSList[E](rt)
	for _, h := range elems {
		if err := l.Push(h, ownership.None); err != nil {
			l.Close()
			return nil, err
		}
	}
	return l, nil
}

// SListFromHandle adopts or borrows a foreign list according to tag.
func SListFromHandle[E Element](rt *foreign.Runtime, head Handle, tag ownership.Tag) (*SList[E], error) {
	checkAdoptTag(tag)
	l := &SList[E]{base: base[E]{rt: rt, owned: tag != ownership.None}, head: head}
	if tag == ownership.Container {
		var nodes []Handle
		var elems []Handle
		for n := head; n != 0; n = rt.SListNext(n) {
			nodes = append(nodes, n)
			elems = append(elems, rt.SListData(n))
		}
		dups, err := l.dupAll(elems)
		if err != nil {
			rt.SListFree(head)
			return nil, err
		}
		for i, n := range nodes {
			rt.SListSetData(n, dups[i])
		}
	}
	return l, nil
}

// Handle returns the head node.
func (l *SList[E]) Handle() Handle { return l.head }

// Push appends an element. Full adopts h, None duplicates it.
func (l *SList[E]) Push(h Handle, tag ownership.Tag) error {
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

func (l *SList[E]) adopt(h Handle) error {
	l.mustOwn("push")
	if l.head == 0 {
		head, err := l.rt.SListAppend(0, h)
		if err != nil {
			return err
		}
		l.head, l.tail = head, head
		return nil
	}
	if l.tail == 0 {
		l.tail = l.last()
	}
	if _, err := l.rt.SListAppend(l.tail, h); err != nil {
		return err
	}
	l.tail = l.rt.SListNext(l.tail)
	return nil
}

func (l *SList[E]) last() Handle {
	n := l.head
	for next := l.rt.SListNext(n); next != 0; next = l.rt.SListNext(n) {
		n = next
	}
	return n
}

// Len walks the list.
func (l *SList[E]) Len() int { return l.rt.SListLength(l.head) }

// At returns element i.
func (l *SList[E]) At(i int) (Handle, error) {
	if i >= 0 {
		k := 0
		for n := l.head; n != 0; n = l.rt.SListNext(n) {
			if k == i {
				return l.rt.SListData(n), nil
			}
			k++
		}
	}
	return 0, outOfRange(i, l.Len())
}

// Front returns the first element.
func (l *SList[E]) Front() (Handle, error) { return l.At(0) }

// Back returns the last element.
func (l *SList[E]) Back() (Handle, error) {
	if l.head == 0 {
		return 0, outOfRange(0, 0)
	}
	return l.rt.SListData(l.last()), nil
}

// All yields the elements in list order.
func (l *SList[E]) All() iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		for n := l.head; n != 0; n = l.rt.SListNext(n) {
			if !yield(l.rt.SListData(n)) {
				return
			}
		}
	}
}

// Clear empties the list, destroying elements and nodes if owned.
func (l *SList[E]) Clear() {
	if l.owned {
		l.rt.SListFreeFull(l.head, l.elem().Free)
	}
	l.head, l.tail = 0, 0
}

// Unwrap hands the list to foreign code. None lends it. Full gives away
// nodes and elements, duplicating them first if the list is borrowed.
// Container gives away fresh nodes or our own, keeping the element
// references until Close.
func (l *SList[E]) Unwrap(tag ownership.Tag) (Handle, error) {
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

func (l *SList[E]) rebuild(dup bool) (Handle, error) {
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
			head, err = l.rt.SListAppend(0, h)
			tail = head
		} else {
			_, err = l.rt.SListAppend(tail, h)
			tail = l.rt.SListNext(tail)
		}
		if err != nil {
			l.rt.SListFree(head)
			if dup {
				l.freeAll(elems)
			}
			return 0, err
		}
	}
	return head, nil
}

// Release detaches the list without destroying anything.
func (l *SList[E]) Release() Handle {
	h := l.head
	l.head, l.tail = 0, 0
	return h
}

// Close destroys an owned list and any retained element references.
func (l *SList[E]) Close() {
	l.Clear()
	l.releaseRetained()
}

func (l *SList[E]) drain() ([]Handle, bool) {
	elems := slices.Collect(l.All())
	if !l.owned {
		return elems, false
	}
	l.rt.SListFree(l.head)
	l.head, l.tail = 0, 0
	return elems, true
}
