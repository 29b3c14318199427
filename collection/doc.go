// Package collection adapts the foreign container representations to one
// ownership-aware interface.
//
// Representations:
//
//	SList     singly linked list, one heap node per element
//	List      doubly linked list
//	PtrArray  ref-counted pointer vector
//	HashMap   hash table keyed by handle identity, unordered
//	FixedSpan contiguous buffer of a fixed element count
//	Span      contiguous buffer with a separate length
//	ZSpan     contiguous buffer terminated by a zero handle
//
// Every collection is parameterized by an Element trait that duplicates and
// frees its elements (see wrap.ObjectElem, wrap.BoxedElem, wrap.PlainElem).
//
// # Ownership
//
// A collection either owns its shell and all of its elements, or borrows
// both. Host-built collections own. Adopting a foreign handle depends on
// the tag:
//
//	Full       adopt shell and elements
//	Container  adopt the shell, duplicate each element in place so the
//	           elements held are ours too
//	None       borrow; Clear and Close never destroy anything
//
// Handing a collection to foreign code goes through Unwrap. None lends the
// shell. Full gives away shell and elements and leaves the collection
// empty. Container gives away the shell only; the element references stay
// with the collection and are released by Close.
//
// # Conversion
//
// Convert drains one representation into another. Elements of an owning
// source move without duplication and the source shell is freed; elements
// of a borrowed source are duplicated and the source is left alone.
// Converting into a HashMap uses set semantics: each element is both key
// and value and is freed once.
package collection
