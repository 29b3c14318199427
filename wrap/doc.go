// Package wrap provides owning and borrowing wrappers over foreign handles.
//
// Three handle categories are supported, each selected at compile time by
// a class type parameter:
//
//	Object[C RefClass]   ref-counted instances, ownership shared through
//	                     the foreign reference count
//	Boxed[C BoxedClass]  values duplicated and freed through copy/free
//	                     functions, single owner
//	Plain[T]             trivially copyable values, no ownership
//
// Class types are zero-size. Their methods forward to the foreign runtime,
// so a wrapper is exactly one handle wide and a []Object[C] can be handed
// to foreign code as a []Handle without copying (see Handles).
//
// # Taking ownership
//
// Wrap and WrapBoxed interpret a handle according to an ownership tag:
//
//	w := wrap.Wrap[Widget](h, ownership.None) // joins: adds a reference
//	w := wrap.Wrap[Widget](h, ownership.Full) // adopts the reference as is
//	defer w.Close()
//
// # Handing handles out
//
// Unwrap leaves the wrapper intact. Take consumes it:
//
//	h := w.Unwrap(ownership.None) // borrow out, nothing changes
//	h := w.Unwrap(ownership.Full) // callee gets its own reference
//	h := w.Take(ownership.Full)   // callee gets ours, w is now nil
//	h := w.Take(ownership.None)   // floating rescue, see Object.Take
//
// Misuse that indicates a broken call site, such as taking from a consumed
// wrapper or implicitly duplicating a boxed type that forbids it, panics
// with *errors.ContractViolation.
package wrap
