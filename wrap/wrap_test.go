package wrap

import (
	"context"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/foreign"
	"github.com/wippyai/ffi-runtime/ownership"
)

var testRT *foreign.Runtime

type testBinder struct{}

func (testBinder) Runtime() *foreign.Runtime { return testRT }

type widget = ObjectOf[testBinder]

type rectName struct{ testBinder }

func (rectName) BoxedName() string { return "Rect" }

type bytesName struct{ testBinder }

func (bytesName) BoxedName() string { return "Bytes" }

type missingName struct{ testBinder }

func (missingName) BoxedName() string { return "Missing" }

type lateName struct{ testBinder }

func (lateName) BoxedName() string { return "Late" }

type pointSize struct{ testBinder }

func (pointSize) BoxedSize() uint32 { return 16 }

type (
	rect  = RegisteredType[rectName]
	bytes = CheapRegisteredType[bytesName]
	point = SizedType[pointSize]
)

func setup(t *testing.T) *foreign.Runtime {
	t.Helper()
	testRT = foreign.New(foreign.DefaultOptions())
	_, err := testRT.RegisterBoxed(foreign.BoxedSpec{Name: "Rect", Size: 16})
	require.NoError(t, err)
	_, err = testRT.RegisterRefBoxed("Bytes", 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testRT.Close(context.Background()) })
	return testRT
}

func newWidget(t *testing.T, floating bool) Handle {
	t.Helper()
	h, err := testRT.NewObject("Widget", floating)
	require.NoError(t, err)
	return h
}

func TestWrap_NoneJoinsOwnership(t *testing.T) {
	rt := setup(t)
	h := newWidget(t, false)

	w := Wrap[widget](h, ownership.None)
	assert.Equal(t, int32(2), rt.RefCount(h))

	w.Close()
	assert.Equal(t, int32(1), rt.RefCount(h))
	assert.True(t, w.IsNil())

	rt.Unref(h)
}

func TestWrap_FullAdopts(t *testing.T) {
	rt := setup(t)
	h := newWidget(t, false)

	w := Wrap[widget](h, ownership.Full)
	assert.Equal(t, int32(1), rt.RefCount(h))

	w.Close()
	assert.False(t, rt.IsObject(h), "last reference dropped")
	assert.Equal(t, 1, rt.Stats().Finalized)
}

func TestWrap_SinksFloating(t *testing.T) {
	rt := setup(t)

	for _, tag := range []ownership.Tag{ownership.None, ownership.Full} {
		h := newWidget(t, true)
		w := Wrap[widget](h, tag)
		assert.False(t, rt.IsFloating(h), tag.String())
		assert.Equal(t, int32(1), rt.RefCount(h), tag.String())
		w.Close()
		assert.False(t, rt.IsObject(h), tag.String())
	}
}

func TestWrap_NilHandle(t *testing.T) {
	setup(t)
	w := Wrap[widget](0, ownership.None)
	assert.True(t, w.IsNil())
	assert.Zero(t, w.Unwrap(ownership.Full))
	assert.NotPanics(t, w.Close)
}

func TestObject_UnwrapNoneIsNonMutating(t *testing.T) {
	rt := setup(t)
	w := Wrap[widget](newWidget(t, false), ownership.Full)
	defer w.Close()

	for i := 0; i < 5; i++ {
		assert.Equal(t, w.Handle(), w.Unwrap(ownership.None))
	}
	assert.Equal(t, int32(1), rt.RefCount(w.Handle()))
}

func TestObject_UnwrapFullPreservesSource(t *testing.T) {
	rt := setup(t)
	w := Wrap[widget](newWidget(t, false), ownership.Full)
	defer w.Close()

	h := w.Unwrap(ownership.Full)
	assert.Equal(t, w.Handle(), h)
	assert.Equal(t, int32(2), rt.RefCount(h))
	assert.False(t, w.IsNil())

	rt.Unref(h)
}

func TestObject_TakeFull(t *testing.T) {
	rt := setup(t)
	w := Wrap[widget](newWidget(t, false), ownership.Full)

	h := w.Take(ownership.Full)
	assert.True(t, w.IsNil())
	assert.Equal(t, int32(1), rt.RefCount(h))

	assert.Panics(t, func() { w.Take(ownership.Full) }, "double take")
	rt.Unref(h)
}

func TestObject_TakeNoneFloatingRescue(t *testing.T) {
	rt := setup(t)
	w := Wrap[widget](newWidget(t, false), ownership.Full)

	h := w.Take(ownership.None)
	assert.True(t, w.IsNil())
	require.True(t, rt.IsObject(h), "sole reference must not be freed")
	assert.True(t, rt.IsFloating(h))

	// the receiving side claims it
	rt.RefSink(h)
	assert.False(t, rt.IsFloating(h))
	assert.Equal(t, int32(1), rt.RefCount(h))
	rt.Unref(h)
}

func TestObject_TakeNoneSharedReleases(t *testing.T) {
	rt := setup(t)
	h := newWidget(t, false)
	w := Wrap[widget](h, ownership.None)
	require.Equal(t, int32(2), rt.RefCount(h))

	got := w.Take(ownership.None)
	assert.Equal(t, h, got)
	assert.Equal(t, int32(1), rt.RefCount(h))
	assert.False(t, rt.IsFloating(h))
	rt.Unref(h)
}

func TestObject_MoveLeavesSourceEmpty(t *testing.T) {
	rt := setup(t)
	src := Wrap[widget](newWidget(t, false), ownership.Full)
	h := src.Handle()

	dst := src.Move()
	assert.True(t, src.IsNil())
	assert.Equal(t, h, dst.Handle())

	src.Close()
	assert.Equal(t, int32(1), rt.RefCount(h), "moved-from close is a no-op")
	dst.Close()
	assert.False(t, rt.IsObject(h))
}

func TestObject_CopyAndView(t *testing.T) {
	rt := setup(t)
	w := Wrap[widget](newWidget(t, false), ownership.Full)
	defer w.Close()

	c := w.Copy()
	assert.Equal(t, int32(2), rt.RefCount(w.Handle()))
	c.Close()

	v := w.View()
	assert.Equal(t, w.Handle(), v.Handle())
	assert.Equal(t, int32(1), rt.RefCount(w.Handle()), "views hold no reference")

	p := v.Copy()
	assert.Equal(t, int32(2), rt.RefCount(w.Handle()))
	p.Close()
}

func TestObject_ContainerTagIsViolation(t *testing.T) {
	setup(t)
	h := newWidget(t, false)
	defer testRT.Unref(h)

	assert.Panics(t, func() { Wrap[widget](h, ownership.Container) })
}

func TestBoxed_Registered(t *testing.T) {
	rt := setup(t)

	b, err := rect{}.New()
	require.NoError(t, err)
	require.NoError(t, rt.Heap().WriteU64(uint32(b.Handle()), 0xfeed))

	c, err := b.Copy()
	require.NoError(t, err)
	assert.NotEqual(t, b.Handle(), c.Handle())
	v, err := rt.Heap().ReadU64(uint32(c.Handle()))
	require.NoError(t, err)
	assert.Equal(t, uint64(0xfeed), v)

	c.Close()
	b.Close()
	assert.Zero(t, rt.Stats().Boxes)
	assert.Zero(t, rt.Stats().Blocks)
}

func TestBoxed_RoundTrip(t *testing.T) {
	rt := setup(t)
	b, err := rect{}.New()
	require.NoError(t, err)
	require.NoError(t, rt.Heap().WriteU64(uint32(b.Handle()), 99))
	orig := b.Handle()

	back, err := WrapBoxed[rect](b.Take(ownership.Full), ownership.Full)
	require.NoError(t, err)
	defer back.Close()

	assert.Equal(t, orig, back.Handle())
	v, err := rt.Heap().ReadU64(uint32(back.Handle()))
	require.NoError(t, err)
	assert.Equal(t, uint64(99), v)
}

func TestBoxed_UnwrapNoneNeverFrees(t *testing.T) {
	rt := setup(t)
	b, err := rect{}.New()
	require.NoError(t, err)
	defer b.Close()

	for i := 0; i < 3; i++ {
		h, err := b.Unwrap(ownership.None)
		require.NoError(t, err)
		assert.Equal(t, b.Handle(), h)
	}
	assert.True(t, rt.IsBoxed(b.Handle()))
	assert.Equal(t, 1, rt.Stats().Boxes)
}

func TestBoxed_ImplicitDuplicationForbidden(t *testing.T) {
	setup(t)
	b, err := rect{}.New()
	require.NoError(t, err)
	defer b.Close()

	assert.Panics(t, func() { _, _ = b.Unwrap(ownership.Full) })
	assert.Panics(t, func() { b.Take(ownership.None) })
}

func TestBoxed_CheapCopy(t *testing.T) {
	rt := setup(t)
	id, err := rt.BoxedType("Bytes")
	require.NoError(t, err)
	h, err := rt.BoxedNew(id)
	require.NoError(t, err)

	b, err := WrapBoxed[bytes](h, ownership.Full)
	require.NoError(t, err)

	dup, err := b.Unwrap(ownership.Full)
	require.NoError(t, err)
	assert.Equal(t, h, dup, "cheap copies share the value")
	assert.Equal(t, int32(2), rt.BoxedRefCount(h))

	rt.BoxedFree(id, dup)
	b.Close()
	assert.False(t, rt.IsBoxed(h))
}

func TestBoxed_MissingCapability(t *testing.T) {
	rt := setup(t)
	h, err := rt.Malloc(8)
	require.NoError(t, err)
	defer rt.Free(h)

	_, err = Resolve[missingName]()
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseRegistry, Kind: errors.KindMissingCapability})

	_, err = WrapBoxed[RegisteredType[missingName]](h, ownership.None)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseRegistry, Kind: errors.KindMissingCapability})
}

func TestBoxed_ResolveAfterLateRegistration(t *testing.T) {
	rt := setup(t)

	_, err := Resolve[lateName]()
	require.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseRegistry, Kind: errors.KindMissingCapability})

	want, err := rt.RegisterBoxed(foreign.BoxedSpec{Name: "Late", Size: 8})
	require.NoError(t, err)

	id, err := Resolve[lateName]()
	require.NoError(t, err)
	assert.Equal(t, want, id)

	b, err := RegisteredType[lateName]{}.New()
	require.NoError(t, err)
	assert.True(t, rt.IsBoxed(b.Handle()))
	b.Close()
}

func TestBoxed_Sized(t *testing.T) {
	rt := setup(t)
	p, err := point{}.New()
	require.NoError(t, err)
	require.NoError(t, rt.Heap().WriteU64(uint32(p.Handle())+8, 7))

	view := p.View()
	q, err := view.Copy()
	require.NoError(t, err)
	assert.NotEqual(t, p.Handle(), q.Handle())
	v, err := rt.Heap().ReadU64(uint32(q.Handle()) + 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v)

	moved := q.Move()
	assert.True(t, q.IsNil())
	moved.Close()
	p.Close()
	assert.Zero(t, rt.Stats().Blocks)
}

func TestHandles_ZeroCopy(t *testing.T) {
	rt := setup(t)
	objs := []Object[widget]{
		Wrap[widget](newWidget(t, false), ownership.Full),
		Wrap[widget](newWidget(t, false), ownership.Full),
	}

	hs := Handles(objs)
	require.Len(t, hs, 2)
	assert.Equal(t, objs[0].Handle(), hs[0])
	assert.Equal(t, objs[1].Handle(), hs[1])
	assert.Equal(t, unsafe.Pointer(&objs[0]), unsafe.Pointer(&hs[0]), "no copy")

	back := FromHandles[widget](hs)
	assert.Equal(t, unsafe.Pointer(&objs[0]), unsafe.Pointer(&back[0]))
	for i := range back {
		assert.Equal(t, int32(1), rt.RefCount(back[i].Handle()))
		back[i].Close()
	}
	assert.True(t, objs[0].IsNil(), "closing through the alias clears the original")
	assert.Nil(t, Handles[widget](nil))
	assert.Equal(t, 2, rt.Stats().Finalized)
}

func TestBoxedHandles_ZeroCopy(t *testing.T) {
	setup(t)
	a, err := point{}.New()
	require.NoError(t, err)
	b, err := point{}.New()
	require.NoError(t, err)
	vals := []Boxed[point]{a, b}

	hs := BoxedHandles(vals)
	assert.Equal(t, []Handle{a.Handle(), b.Handle()}, hs)
	for i := range FromBoxedHandles[point](hs) {
		vals[i].Close()
	}
	assert.Zero(t, testRT.Stats().Blocks)
}

func TestPlain(t *testing.T) {
	p := WrapPlain(42, ownership.Full)
	assert.Equal(t, 42, p.Value())
	assert.Equal(t, 42, p.Unwrap(ownership.None))
	assert.Equal(t, p, p.Copy())
}

func TestElements(t *testing.T) {
	rt := setup(t)
	h := newWidget(t, false)

	var oe ObjectElem[widget]
	dup, err := oe.Dup(h)
	require.NoError(t, err)
	assert.Equal(t, h, dup)
	assert.Equal(t, int32(2), rt.RefCount(h))
	oe.Free(dup)
	oe.Free(h)
	assert.False(t, rt.IsObject(h))

	var pe PlainElem
	v, err := pe.Dup(5)
	require.NoError(t, err)
	assert.Equal(t, Handle(5), v)

	box, err := point{}.New()
	require.NoError(t, err)
	var be BoxedElem[point]
	c, err := be.Dup(box.Handle())
	require.NoError(t, err)
	be.Free(c)
	box.Close()
	assert.Zero(t, rt.Stats().Blocks)
}
