package wrap

import "unsafe"

// sizeProbe instantiates the wrappers for the layout assertions below.
type sizeProbe struct{}

func (sizeProbe) Ref(h Handle) Handle { return h }
func (sizeProbe) Unref(Handle) {}
func (sizeProbe) RefSink(h Handle) Handle { return h }
func (sizeProbe) IsFloating(Handle) bool { return false }
func (sizeProbe) FloatIfSole(Handle) bool { return false }
func (sizeProbe) Copy(h Handle) (Handle, error) { return h, nil }
func (sizeProbe) Free(Handle) {}

// Wrappers must be bit-identical to a native pointer so that slices of
// wrappers can be reinterpreted as slices of handles. Each line fails to
// compile if the sizes or alignments differ in either direction.
var (
	_ [unsafe.Sizeof(Object[sizeProbe]{}) - unsafe.Sizeof(uintptr(0))]struct{}
	_ [unsafe.Sizeof(uintptr(0)) - unsafe.Sizeof(Object[sizeProbe]{})]struct{}
	_ [unsafe.Alignof(Object[sizeProbe]{}) - unsafe.Alignof(uintptr(0))]struct{}
	_ [unsafe.Alignof(uintptr(0)) - unsafe.Alignof(Object[sizeProbe]{})]struct{}
	_ [unsafe.Sizeof(Boxed[sizeProbe]{}) - unsafe.Sizeof(uintptr(0))]struct{}
	_ [unsafe.Sizeof(uintptr(0)) - unsafe.Sizeof(Boxed[sizeProbe]{})]struct{}
	_ [unsafe.Sizeof(BoxedRef[sizeProbe]{}) - unsafe.Sizeof(Boxed[sizeProbe]{})]struct{}
	_ [unsafe.Sizeof(ObjectRef[sizeProbe]{}) - unsafe.Sizeof(Object[sizeProbe]{})]struct{}
	_ [unsafe.Sizeof(Handle(0)) - unsafe.Sizeof(uintptr(0))]struct{}
)

// Handles reinterprets objs as raw handles without copying. The result
// aliases objs; ownership stays with the wrappers.
func Handles[C RefClass](objs []Object[C]) []Handle {
	if len(objs) == 0 {
		return nil
	}
	return unsafe.Slice((*Handle)(unsafe.Pointer(unsafe.SliceData(objs))), len(objs))
}

// FromHandles reinterprets raw handles as wrappers without copying or
// touching reference counts. The caller decides who owns them: typically
// the slice came from a Full transfer and the wrappers are closed later.
func FromHandles[C RefClass](hs []Handle) []Object[C] {
	if len(hs) == 0 {
		return nil
	}
	return unsafe.Slice((*Object[C])(unsafe.Pointer(unsafe.SliceData(hs))), len(hs))
}

// BoxedHandles reinterprets boxed wrappers as raw handles without copying.
func BoxedHandles[C BoxedClass](vals []Boxed[C]) []Handle {
	if len(vals) == 0 {
		return nil
	}
	return unsafe.Slice((*Handle)(unsafe.Pointer(unsafe.SliceData(vals))), len(vals))
}

// FromBoxedHandles reinterprets raw handles as boxed wrappers.
func FromBoxedHandles[C BoxedClass](hs []Handle) []Boxed[C] {
	if len(hs) == 0 {
		return nil
	}
	return unsafe.Slice((*Boxed[C])(unsafe.Pointer(unsafe.SliceData(hs))), len(hs))
}
