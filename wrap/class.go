package wrap

import (
	"sync"

	ffiruntime "github.com/wippyai/ffi-runtime"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/foreign"
)

// Handle is an opaque foreign address.
type Handle = ffiruntime.Handle

// RefClass supplies the reference operations of a ref-counted type.
// Implementations are zero-size types.
type RefClass interface {
	Ref(h Handle) Handle
	Unref(h Handle)
	RefSink(h Handle) Handle
	IsFloating(h Handle) bool
	// FloatIfSole converts the caller's reference into a floating one if
	// it is the only outstanding reference, atomically.
	FloatIfSole(h Handle) bool
}

// BoxedClass supplies the duplication policy of a boxed type.
// Implementations are zero-size types.
type BoxedClass interface {
	Copy(h Handle) (Handle, error)
	Free(h Handle)
}

// CheapCopier marks a boxed class whose Copy is a side-effect free
// reference bump. Only such classes may be duplicated implicitly by
// Boxed.Unwrap(ownership.Full).
type CheapCopier interface {
	CheapCopy()
}

func isCheap[C BoxedClass]() bool {
	var c C
	_, ok := any(c).(CheapCopier)
	return ok
}

// Binder names the foreign runtime a class forwards to.
type Binder interface {
	Runtime() *foreign.Runtime
}

// ObjectOf is a RefClass over the instances of B's runtime.
type ObjectOf[B Binder] struct{}

func rt[B Binder]() *foreign.Runtime {
	var b B
	return b.Runtime()
}

func (ObjectOf[B]) Ref(h Handle) Handle { return rt[B]().Ref(h) }
func (ObjectOf[B]) Unref(h Handle) { rt[B]().Unref(h) }
func (ObjectOf[B]) RefSink(h Handle) Handle { return rt[B]().RefSink(h) }
func (ObjectOf[B]) IsFloating(h Handle) bool { return rt[B]().IsFloating(h) }
func (ObjectOf[B]) FloatIfSole(h Handle) bool { return rt[B]().FloatIfSole(h) }

// Named is a Binder that also names a registered boxed type.
type Named interface {
	Binder
	BoxedName() string
}

// RegisteredType duplicates and frees through the runtime's boxed type
// table. The type id is looked up by name on first use and cached per
// runtime; a name the runtime does not know is a missing capability.
type RegisteredType[N Named] struct{}

// CheapRegisteredType is a RegisteredType whose copies are reference bumps.
type CheapRegisteredType[N Named] struct {
	RegisteredType[N]
}

func (CheapRegisteredType[N]) CheapCopy() {}

type resolutionKey struct {
	class any
	rt    *foreign.Runtime
}

var resolved sync.Map

// Resolve returns the type id of N. Successful lookups are cached per
// runtime; a failed lookup is retried on the next call.
func Resolve[N Named]() (foreign.TypeID, error) {
	var n N
	key := resolutionKey{class: n, rt: n.Runtime()}
	if v, ok := resolved.Load(key); ok {
		return v.(foreign.TypeID), nil
	}
	id, err := key.rt.BoxedType(n.BoxedName())
	if err != nil {
		return 0, err
	}
	resolved.Store(key, id)
	return id, nil
}

func (RegisteredType[N]) Copy(h Handle) (Handle, error) {
	id, err := Resolve[N]()
	if err != nil {
		return 0, err
	}
	return rt[N]().BoxedCopy(id, h)
}

func (RegisteredType[N]) Free(h Handle) {
	id, err := Resolve[N]()
	if err != nil {
		var n N
		errors.Violation(errors.PhaseWrap, "free of %#x with unresolved boxed type %s: %v", uintptr(h), n.BoxedName(), err)
	}
	rt[N]().BoxedFree(id, h)
}

// New allocates a zeroed instance of the registered type, owned by the
// returned wrapper.
func (RegisteredType[N]) New() (Boxed[RegisteredType[N]], error) {
	id, err := Resolve[N]()
	if err != nil {
		return Boxed[RegisteredType[N]]{}, err
	}
	h, err := rt[N]().BoxedNew(id)
	if err != nil {
		return Boxed[RegisteredType[N]]{}, err
	}
	return Boxed[RegisteredType[N]]{h: h}, nil
}

// Sized is a Binder that also gives a fixed byte size.
type Sized interface {
	Binder
	BoxedSize() uint32
}

// SizedType duplicates by allocating BoxedSize bytes and copying them, and
// frees with a plain deallocation.
type SizedType[S Sized] struct{}

func (SizedType[S]) Copy(h Handle) (Handle, error) {
	var s S
	return s.Runtime().Memdup(h, s.BoxedSize())
}

func (SizedType[S]) Free(h Handle) {
	rt[S]().Free(h)
}

// New allocates a zeroed value owned by the returned wrapper.
func (SizedType[S]) New() (Boxed[SizedType[S]], error) {
	var s S
	h, err := s.Runtime().Malloc(s.BoxedSize())
	if err != nil {
		return Boxed[SizedType[S]]{}, err
	}
	return Boxed[SizedType[S]]{h: h}, nil
}
