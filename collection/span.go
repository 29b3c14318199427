package collection

import (
	"iter"

	ffiruntime "github.com/wippyai/ffi-runtime"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/foreign"
	"github.com/wippyai/ffi-runtime/ownership"
)

type spanKind uint8

const (
	kindDynamic spanKind = iota
	kindFixed
	kindZero
)

func (k spanKind) String() string {
	switch k {
	case kindFixed:
		return "fixed span"
	case kindZero:
		return "zero-terminated span"
	default:
		return "span"
	}
}

// spanCore is the contiguous buffer shared by the span representations.
// Elements live either in a heap buffer or, for a borrowed host slice, in
// that slice. A zero-terminated heap buffer always has a 0 after the last
// element.
type spanCore[E Element] struct {
	base[E]
	host     []Handle
	data     Handle
	scratch  Handle
	n        int
	capacity int
	kind     spanKind
}

func (s *spanCore[E]) extra() int {
	if s.kind == kindZero {
		return 1
	}
	return 0
}

func (s *spanCore[E]) alloc(capacity int) (Handle, error) {
	return s.rt.Malloc(uint32(capacity+s.extra()) * ffiruntime.HandleSize)
}

func (s *spanCore[E]) at(i int) Handle {
	if s.host != nil {
		return s.host[i]
	}
	return s.rt.ReadHandle(s.data, i)
}

// Handle returns the heap buffer, 0 for an unallocated or host-backed span.
func (s *spanCore[E]) Handle() Handle { return s.data }

// Len returns the element count, excluding any terminator.
func (s *spanCore[E]) Len() int { return s.n }

// Cap returns the number of element slots.
func (s *spanCore[E]) Cap() int { return s.capacity }

// At returns element i.
func (s *spanCore[E]) At(i int) (Handle, error) {
	if i < 0 || i >= s.n {
		return 0, outOfRange(i, s.n)
	}
	return s.at(i), nil
}

// Front returns the first element.
func (s *spanCore[E]) Front() (Handle, error) { return s.At(0) }

// Back returns the last element.
func (s *spanCore[E]) Back() (Handle, error) { return s.At(s.n - 1) }

// All yields the elements in index order.
func (s *spanCore[E]) All() iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		for i := 0; i < s.n; i++ {
			if !yield(s.at(i)) {
				return
			}
		}
	}
}

// Slice copies the elements out.
func (s *spanCore[E]) Slice() []Handle {
	out := make([]Handle, s.n)
	for i := range out {
		out[i] = s.at(i)
	}
	return out
}

// Push appends an element. Full adopts h, None duplicates it. Pushing
// past the size of a fixed span is a contract violation.
func (s *spanCore[E]) Push(h Handle, tag ownership.Tag) error {
	s.mustOwn("push")
	if s.kind == kindFixed && s.n == s.capacity {
		errors.Violation(errors.PhaseCollection, "fixed span of %d elements cannot grow", s.capacity)
	}
	h, err := s.take(h, tag)
	if err != nil {
		return err
	}
	if err := s.adopt(h); err != nil {
		s.elem().Free(h)
		return err
	}
	return nil
}

func (s *spanCore[E]) adopt(h Handle) error {
	s.mustOwn("push")
	if s.kind == kindFixed && s.n == s.capacity {
		errors.Violation(errors.PhaseCollection, "fixed span of %d elements cannot grow", s.capacity)
	}
	if err := s.reserve(s.n + 1); err != nil {
		return err
	}
	s.rt.WriteHandle(s.data, s.n, h)
	s.n++
	if s.kind == kindZero {
		s.rt.WriteHandle(s.data, s.n, 0)
	}
	return nil
}

// reserve makes sure the heap buffer exists and holds n elements.
func (s *spanCore[E]) reserve(n int) error {
	if s.data != 0 && n <= s.capacity {
		return nil
	}
	capacity := s.capacity
	if s.kind != kindFixed {
		capacity = max(capacity*2, n, 4)
	}
	buf, err := s.alloc(capacity)
	if err != nil {
		return err
	}
	for i := 0; i < s.n; i++ {
		s.rt.WriteHandle(buf, i, s.rt.ReadHandle(s.data, i))
	}
	if s.data != 0 {
		s.rt.Free(s.data)
	}
	s.data, s.capacity = buf, capacity
	return nil
}

// Clear removes every element, destroying them if owned. An owned buffer
// is kept for reuse.
func (s *spanCore[E]) Clear() {
	if !s.owned {
		s.host, s.data, s.n = nil, 0, 0
		return
	}
	s.freeAll(s.Slice())
	s.n = 0
	if s.data != 0 && s.kind == kindZero {
		s.rt.WriteHandle(s.data, 0, 0)
	}
}

// Unwrap hands the span to foreign code as a buffer address; the length
// travels separately (Len) unless the span is zero-terminated or fixed.
// A host-backed span is copied into a heap buffer that lives until Close.
func (s *spanCore[E]) Unwrap(tag ownership.Tag) (Handle, error) {
	if s.owned && s.kind != kindDynamic {
		// fixed and terminated buffers are never passed as 0
		if err := s.reserve(s.capacity); err != nil {
			return 0, err
		}
	}
	switch tag {
	case ownership.None:
		if s.host != nil {
			if s.scratch == 0 {
				buf, err := s.copyOut(s.host, s.slots())
				if err != nil {
					return 0, err
				}
				s.scratch = buf
			}
			return s.scratch, nil
		}
		return s.data, nil
	case ownership.Full:
		if !s.owned {
			dups, err := s.dupAll(s.Slice())
			if err != nil {
				return 0, err
			}
			buf, err := s.copyOut(dups, s.slots())
			if err != nil {
				s.freeAll(dups)
			}
			return buf, err
		}
		return s.Release(), nil
	case ownership.Container:
		if !s.owned {
			return s.copyOut(s.Slice(), s.slots())
		}
		s.retained = append(s.retained, s.Slice()...)
		return s.Release(), nil
	}
	errors.Violation(errors.PhaseUnwrap, "%s unwrap with tag %s", s.kind, tag)
	return 0, nil
}

func (s *spanCore[E]) slots() int {
	if s.kind == kindFixed {
		return s.capacity
	}
	return s.n
}

// copyOut writes hs into a new heap buffer of slots elements, terminated
// if the span is.
func (s *spanCore[E]) copyOut(hs []Handle, slots int) (Handle, error) {
	buf, err := s.alloc(max(slots, len(hs)))
	if err != nil {
		return 0, err
	}
	for i, h := range hs {
		s.rt.WriteHandle(buf, i, h)
	}
	return buf, nil
}

// Release detaches the heap buffer without destroying anything.
func (s *spanCore[E]) Release() Handle {
	h := s.data
	s.data, s.host, s.n = 0, nil, 0
	if s.kind != kindFixed {
		s.capacity = 0
	}
	return h
}

// Close destroys an owned span and frees any buffer made for Unwrap.
func (s *spanCore[E]) Close() {
	if s.owned {
		s.Clear()
		if s.data != 0 {
			s.rt.Free(s.data)
		}
	}
	if s.scratch != 0 {
		s.rt.Free(s.scratch)
		s.scratch = 0
	}
	s.Release()
	s.releaseRetained()
}

func (s *spanCore[E]) drain() ([]Handle, bool) {
	elems := s.Slice()
	if !s.owned {
		return elems, false
	}
	if s.data != 0 {
		s.rt.Free(s.data)
	}
	s.Release()
	return elems, true
}

// adoptBuffer takes over a foreign buffer of n elements per tag.
func (s *spanCore[E]) adoptBuffer(data Handle, n int, tag ownership.Tag) error {
	checkAdoptTag(tag)
	s.data, s.n, s.capacity = data, n, n
	s.owned = tag != ownership.None
	if s.owned && s.kind != kindFixed {
		if size, ok := s.rt.BlockSize(data); ok {
			s.capacity = max(n, int(size/ffiruntime.HandleSize)-s.extra())
		}
	}
	if tag != ownership.Container {
		return nil
	}
	dups, err := s.dupAll(s.Slice())
	if err != nil {
		s.rt.Free(data)
		s.Release()
		return err
	}
	for i, h := range dups {
		s.rt.WriteHandle(data, i, h)
	}
	return nil
}

// adoptHost interprets a host slice per tag. None borrows it in place.
// Full and Container copy it into a heap buffer, Container duplicating
// each element.
func (s *spanCore[E]) adoptHost(hs []Handle, tag ownership.Tag) error {
	checkAdoptTag(tag)
	if tag == ownership.None {
		s.host, s.n, s.owned = hs, len(hs), false
		return nil
	}
	s.owned = true
	elems := hs
	if tag == ownership.Container {
		var err error
		if elems, err = s.dupAll(hs); err != nil {
			return err
		}
	}
	capacity := len(elems)
	if s.kind == kindFixed {
		capacity = s.capacity
	}
	buf, err := s.copyOut(elems, capacity)
	if err != nil {
		if tag == ownership.Container {
			s.freeAll(elems)
		}
		return err
	}
	s.data, s.n, s.capacity = buf, len(elems), max(capacity, len(elems))
	return nil
}

// Span adapts a contiguous foreign buffer whose length is passed
// separately.
type Span[E Element] struct {
	spanCore[E]
}

// NewSpan returns an empty owning span. The buffer is allocated on first
// push and grows by doubling.
func NewSpan[E Element](rt *foreign.Runtime) *Span[E] {
	return &Span[E]{spanCore[E]{base: base[E]{rt: rt, owned: true}, kind: kindDynamic}}
}

// SpanFromSlice builds an owning span of duplicates of elems.
func SpanFromSlice[E Element](rt *foreign.Runtime, elems []Handle) (*Span[E], error) {
	s := &Span[E]{spanCore[E]{base: base[E]{rt: rt}, kind: kindDynamic}}
	if err := s.adoptHost(elems, ownership.Container); err != nil {
		return nil, err
	}
	return s, nil
}

// SpanFromHandles interprets a host slice of handles. With None the slice
// is used in place without copying, which together with wrap.Handles
// passes a []wrap.Object through without touching any element.
func SpanFromHandles[E Element](rt *foreign.Runtime, hs []Handle, tag ownership.Tag) (*Span[E], error) {
	s := &Span[E]{spanCore[E]{base: base[E]{rt: rt}, kind: kindDynamic}}
	if err := s.adoptHost(hs, tag); err != nil {
		return nil, err
	}
	return s, nil
}

// SpanFromHandle adopts or borrows a foreign buffer of n elements.
func SpanFromHandle[E Element](rt *foreign.Runtime, data Handle, n int, tag ownership.Tag) (*Span[E], error) {
	s := &Span[E]{spanCore[E]{base: base[E]{rt: rt}, kind: kindDynamic}}
	if err := s.adoptBuffer(data, n, tag); err != nil {
		return nil, err
	}
	return s, nil
}

// FixedSpan adapts a contiguous foreign buffer with a fixed element
// count. Growing it past that count is a contract violation.
type FixedSpan[E Element] struct {
	spanCore[E]
}

// NewFixedSpan returns an empty owning span of size slots.
func NewFixedSpan[E Element](rt *foreign.Runtime, size int) *FixedSpan[E] {
	return &FixedSpan[E]{spanCore[E]{base: base[E]{rt: rt, owned: true}, kind: kindFixed, capacity: size}}
}

// FixedSpanFromSlice builds an owning span of size slots holding
// duplicates of elems.
func FixedSpanFromSlice[E Element](rt *foreign.Runtime, size int, elems []Handle) (*FixedSpan[E], error) {
	return FixedSpanFromHandles[E](rt, size, elems, ownership.Container)
}

// FixedSpanFromHandles interprets a host slice as a span of size slots;
// see SpanFromHandles.
func FixedSpanFromHandles[E Element](rt *foreign.Runtime, size int, hs []Handle, tag ownership.Tag) (*FixedSpan[E], error) {
	if len(hs) > size {
		errors.Violation(errors.PhaseCollection, "%d elements do not fit a fixed span of %d", len(hs), size)
	}
	s := &FixedSpan[E]{spanCore[E]{base: base[E]{rt: rt}, kind: kindFixed, capacity: size}}
	if err := s.adoptHost(hs, tag); err != nil {
		return nil, err
	}
	return s, nil
}

// FixedSpanFromHandle adopts or borrows a foreign buffer of size elements.
func FixedSpanFromHandle[E Element](rt *foreign.Runtime, data Handle, size int, tag ownership.Tag) (*FixedSpan[E], error) {
	s := &FixedSpan[E]{spanCore[E]{base: base[E]{rt: rt}, kind: kindFixed}}
	if err := s.adoptBuffer(data, size, tag); err != nil {
		return nil, err
	}
	return s, nil
}

// ZSpan adapts a foreign buffer terminated by a zero handle.
type ZSpan[E Element] struct {
	spanCore[E]
}

// NewZSpan returns an empty owning zero-terminated span.
func NewZSpan[E Element](rt *foreign.Runtime) *ZSpan[E] {
	return &ZSpan[E]{spanCore[E]{base: base[E]{rt: rt, owned: true}, kind: kindZero}}
}

// ZSpanFromSlice builds an owning span of duplicates of elems.
func ZSpanFromSlice[E Element](rt *foreign.Runtime, elems []Handle) (*ZSpan[E], error) {
	return ZSpanFromHandles[E](rt, elems, ownership.Container)
}

// ZSpanFromHandles interprets a host slice without terminator; see
// SpanFromHandles. Copies made from it get a terminator.
func ZSpanFromHandles[E Element](rt *foreign.Runtime, hs []Handle, tag ownership.Tag) (*ZSpan[E], error) {
	s := &ZSpan[E]{spanCore[E]{base: base[E]{rt: rt}, kind: kindZero}}
	if err := s.adoptHost(hs, tag); err != nil {
		return nil, err
	}
	return s, nil
}

// ZSpanFromHandle adopts or borrows a terminated foreign buffer, finding
// its length by scanning for the terminator.
func ZSpanFromHandle[E Element](rt *foreign.Runtime, data Handle, tag ownership.Tag) (*ZSpan[E], error) {
	n := 0
	if data != 0 {
		for rt.ReadHandle(data, n) != 0 {
			n++
		}
	}
	s := &ZSpan[E]{spanCore[E]{base: base[E]{rt: rt}, kind: kindZero}}
	if err := s.adoptBuffer(data, n, tag); err != nil {
		return nil, err
	}
	return s, nil
}
