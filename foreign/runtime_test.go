package foreign

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/memory"
)

func newRuntime(t *testing.T) *Runtime {
	t.Helper()
	r := New(DefaultOptions())
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r
}

func TestObject_RefUnref(t *testing.T) {
	r := newRuntime(t)

	h, err := r.NewObject("Widget", false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), r.RefCount(h))
	assert.Equal(t, "Widget", r.TypeName(h))

	r.Ref(h)
	assert.Equal(t, int32(2), r.RefCount(h))

	r.Unref(h)
	r.Unref(h)
	assert.False(t, r.IsObject(h))
	assert.Equal(t, 1, r.Stats().Finalized)
	assert.Zero(t, r.Stats().Blocks)
}

func TestObject_UnrefAfterFinalizePanicsInStrictMode(t *testing.T) {
	r := newRuntime(t)
	h, err := r.NewObject("Widget", false)
	require.NoError(t, err)
	r.Unref(h)

	assert.Panics(t, func() { r.Unref(h) })
}

func TestObject_LenientModeIgnoresUnknownHandles(t *testing.T) {
	r := New(Options{Heap: memory.NewLinear(nil)})
	assert.NotPanics(t, func() { r.Unref(0x1234) })
}

func TestObject_Floating(t *testing.T) {
	r := newRuntime(t)

	h, err := r.NewObject("Label", true)
	require.NoError(t, err)
	assert.True(t, r.IsFloating(h))
	assert.Equal(t, "floating", FormatFlags(r.Flags(h)))

	// sinking claims the floating reference without adding one
	r.RefSink(h)
	assert.False(t, r.IsFloating(h))
	assert.Equal(t, int32(1), r.RefCount(h))

	// sinking a non-floating instance adds a reference
	r.RefSink(h)
	assert.Equal(t, int32(2), r.RefCount(h))
	r.Unref(h)

	r.ForceFloating(h)
	assert.True(t, r.IsFloating(h))
	r.Unref(h)
	assert.False(t, r.IsObject(h))
	assert.Equal(t, "finalized", FormatFlags(r.Flags(h)))
}

func TestObject_FloatIfSole(t *testing.T) {
	r := newRuntime(t)
	h, err := r.NewObject("Widget", false)
	require.NoError(t, err)

	r.Ref(h)
	assert.False(t, r.FloatIfSole(h), "two references are not sole")
	r.Unref(h)

	assert.True(t, r.FloatIfSole(h))
	assert.True(t, r.IsFloating(h))
	assert.False(t, r.FloatIfSole(h), "already floating")
	r.Unref(h)
}

func TestObject_Events(t *testing.T) {
	r := newRuntime(t)
	var events []EventType
	obs := ObserverFunc(func(e Event) { events = append(events, e.Type) })
	r.Subscribe(obs)

	h, err := r.NewObject("Widget", false)
	require.NoError(t, err)
	r.Ref(h)
	r.Unref(h)
	r.Unref(h)

	assert.Equal(t, []EventType{EventAlloc, EventRef, EventUnref, EventUnref, EventFinalize}, events)
	assert.Equal(t, "finalize", EventFinalize.String())
}

func TestBoxed_ByteCopy(t *testing.T) {
	r := newRuntime(t)
	id, err := r.RegisterBoxed(BoxedSpec{Name: "Rect", Size: 16})
	require.NoError(t, err)

	h, err := r.BoxedNew(id)
	require.NoError(t, err)
	require.NoError(t, r.Heap().WriteU64(uint32(h), 42))

	dup, err := r.BoxedCopy(id, h)
	require.NoError(t, err)
	assert.NotEqual(t, h, dup)
	v, err := r.Heap().ReadU64(uint32(dup))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)

	r.BoxedFree(id, h)
	r.BoxedFree(id, dup)
	assert.Zero(t, r.Stats().Boxes)
	assert.Zero(t, r.Stats().Blocks)
	assert.Panics(t, func() { r.BoxedFree(id, dup) })
}

func TestBoxed_RefCounted(t *testing.T) {
	r := newRuntime(t)
	id, err := r.RegisterRefBoxed("Bytes", 8)
	require.NoError(t, err)

	h, err := r.BoxedNew(id)
	require.NoError(t, err)
	dup, err := r.BoxedCopy(id, h)
	require.NoError(t, err)
	assert.Equal(t, h, dup)
	assert.Equal(t, int32(2), r.BoxedRefCount(h))

	r.BoxedFree(id, h)
	assert.True(t, r.IsBoxed(h))
	r.BoxedFree(id, h)
	assert.False(t, r.IsBoxed(h))
}

func TestBoxed_Registry(t *testing.T) {
	r := newRuntime(t)
	id, err := r.RegisterBoxed(BoxedSpec{Name: "Color", Size: 4})
	require.NoError(t, err)

	got, err := r.BoxedType("Color")
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, "Color", r.BoxedName(id))

	_, err = r.RegisterBoxed(BoxedSpec{Name: "Color", Size: 4})
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseRegistry, Kind: errors.KindRegistration})

	_, err = r.BoxedType("Missing")
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseRegistry, Kind: errors.KindMissingCapability})

	_, err = r.BoxedNew(99)
	assert.Error(t, err)
}

func TestSList(t *testing.T) {
	r := newRuntime(t)
	var list Handle
	var err error
	for _, v := range []Handle{1, 2, 3} {
		list, err = r.SListAppend(list, v)
		require.NoError(t, err)
	}
	list, err = r.SListPrepend(list, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, r.SListLength(list))

	var got []Handle
	for n := list; n != 0; n = r.SListNext(n) {
		got = append(got, r.SListData(n))
	}
	assert.Equal(t, []Handle{0, 1, 2, 3}, got)

	second := r.SListNext(list)
	list = r.SListDeleteLink(list, second)
	assert.Equal(t, 3, r.SListLength(list))
	list = r.SListDeleteLink(list, list)
	assert.Equal(t, Handle(2), r.SListData(list))

	var freed []Handle
	r.SListFreeFull(list, func(h Handle) { freed = append(freed, h) })
	assert.Equal(t, []Handle{2, 3}, freed)
	assert.Zero(t, r.Stats().Blocks)
}

func TestList(t *testing.T) {
	r := newRuntime(t)
	var list Handle
	var err error
	list, err = r.ListAppend(list, 2)
	require.NoError(t, err)
	list, err = r.ListAppend(list, 3)
	require.NoError(t, err)
	list, err = r.ListPrepend(list, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, r.ListLength(list))

	last := r.ListLast(list)
	assert.Equal(t, Handle(3), r.ListData(last))
	assert.Equal(t, Handle(2), r.ListData(r.ListPrev(last)))

	list = r.ListDeleteLink(list, r.ListNext(list))
	assert.Equal(t, Handle(3), r.ListData(r.ListNext(list)))
	assert.Equal(t, list, r.ListPrev(r.ListNext(list)))

	r.ListFree(list)
	assert.Zero(t, r.Stats().Blocks)
}

func TestPtrArray(t *testing.T) {
	r := newRuntime(t)
	var freed []Handle
	arr, err := r.PtrArrayNew(func(h Handle) { freed = append(freed, h) })
	require.NoError(t, err)

	for i := 1; i <= 6; i++ {
		require.NoError(t, r.PtrArrayAdd(arr, Handle(i*10)))
	}
	assert.Equal(t, 6, r.PtrArrayLen(arr))
	assert.Equal(t, Handle(50), r.PtrArrayIndex(arr, 4))

	stolen := r.PtrArrayStealIndex(arr, 0)
	assert.Equal(t, Handle(10), stolen)
	assert.Equal(t, Handle(20), r.PtrArrayIndex(arr, 0))

	r.PtrArrayRef(arr)
	assert.Equal(t, int32(2), r.PtrArrayRefCount(arr))
	r.PtrArrayUnref(arr)
	assert.Empty(t, freed)
	r.PtrArrayUnref(arr)
	assert.Equal(t, []Handle{20, 30, 40, 50, 60}, freed)
	assert.False(t, r.IsPtrArray(arr))
	assert.Zero(t, r.Stats().Blocks)
}

func TestPtrArray_FreeKeepsSegment(t *testing.T) {
	r := newRuntime(t)
	arr, err := r.PtrArrayNew(nil)
	require.NoError(t, err)
	require.NoError(t, r.PtrArrayAdd(arr, 7))

	seg := r.PtrArrayFree(arr, false)
	require.NotZero(t, seg)
	assert.Equal(t, Handle(7), r.ReadHandle(seg, 0))
	r.Free(seg)
	assert.Zero(t, r.Stats().Blocks)
}

func TestHashTable(t *testing.T) {
	r := newRuntime(t)
	var keys, values []Handle
	table, err := r.HashTableNew(
		func(h Handle) { keys = append(keys, h) },
		func(h Handle) { values = append(values, h) },
	)
	require.NoError(t, err)

	r.HashTableInsert(table, 1, 100)
	r.HashTableInsert(table, 2, 200)
	r.HashTableInsert(table, 1, 101)
	assert.Equal(t, []Handle{100}, values, "replaced value is freed")
	assert.Equal(t, []Handle{1}, keys, "passed key is freed, stored key kept")
	assert.Equal(t, 2, r.HashTableSize(table))

	v, ok := r.HashTableLookup(table, 1)
	require.True(t, ok)
	assert.Equal(t, Handle(101), v)

	assert.True(t, r.HashTableSteal(table, 2))
	assert.Equal(t, 1, r.HashTableSize(table))

	r.HashTableAdd(table, 5)
	seen := map[Handle]Handle{}
	r.HashTableForeach(table, func(k, v Handle) bool {
		seen[k] = v
		return true
	})
	assert.Equal(t, map[Handle]Handle{1: 101, 5: 5}, seen)

	r.HashTableUnref(table)
	assert.ElementsMatch(t, []Handle{1, 1, 5}, keys)
	assert.ElementsMatch(t, []Handle{100, 101}, values, "set entry is freed once, through the key")
	assert.Zero(t, r.Stats().Blocks)
}

func TestHashTable_SetFreeFuncsOnShared(t *testing.T) {
	r := newRuntime(t)
	table, err := r.HashTableNew(nil, nil)
	require.NoError(t, err)
	r.HashTableInsert(table, 1, 100)
	r.HashTableRef(table)

	var freed []Handle
	r.HashTableSetFreeFuncs(table, nil, func(h Handle) { freed = append(freed, h) })
	r.HashTableUnref(table)
	assert.Empty(t, freed, "entries outlive a dropped shared reference")
	assert.Equal(t, 1, r.HashTableSize(table))

	r.HashTableUnref(table)
	assert.Equal(t, []Handle{100}, freed)
	assert.Zero(t, r.Stats().Blocks)
}

func TestSignals(t *testing.T) {
	r := newRuntime(t)
	r.DefineSignal("Button", "clicked")

	obj, err := r.NewObject("Button", false)
	require.NoError(t, err)

	var calls []Handle
	var destroyed []Handle
	id, err := r.SignalConnect(obj, "clicked",
		func(ud Handle, args []Handle) Handle {
			calls = append(calls, args[0])
			return ud
		},
		77,
		func(ud Handle) { destroyed = append(destroyed, ud) },
	)
	require.NoError(t, err)
	assert.True(t, r.HandlerIsConnected(obj, id))

	res, err := r.SignalEmit(obj, "clicked", 9)
	require.NoError(t, err)
	assert.Equal(t, Handle(77), res)
	assert.Equal(t, []Handle{9}, calls)

	_, err = r.SignalEmit(obj, "toggled")
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseConnection, Kind: errors.KindMissingCapability})

	_, err = r.SignalConnect(obj, "toggled", nil, 0, nil)
	assert.Error(t, err)

	// finalizing disconnects and fires destroy notify once
	r.Unref(obj)
	assert.Equal(t, []Handle{77}, destroyed)
	assert.False(t, r.SignalDisconnect(obj, id))
}

func TestSignals_Disconnect(t *testing.T) {
	r := newRuntime(t)
	r.DefineSignal("Button", "clicked")
	obj, err := r.NewObject("Button", false)
	require.NoError(t, err)
	defer r.Unref(obj)

	notified := 0
	id, err := r.SignalConnect(obj, "clicked", func(Handle, []Handle) Handle { return 0 }, 1,
		func(Handle) { notified++ })
	require.NoError(t, err)
	assert.Equal(t, 1, r.HandlerCount(obj))

	assert.True(t, r.SignalDisconnect(obj, id))
	assert.False(t, r.SignalDisconnect(obj, id))
	assert.Equal(t, 1, notified)
	assert.Zero(t, r.HandlerCount(obj))
}

func TestLoop(t *testing.T) {
	r := newRuntime(t)
	loop := r.Loop()

	count := 0
	notified := false
	loop.IdleAdd(func(Handle) bool {
		count++
		return count < 3
	}, 0, func(Handle) { notified = true })

	var async []Handle
	loop.CallAsync(func(ud Handle, args []Handle) Handle {
		async = append(async, ud, args[0])
		return 0
	}, 5, 6)

	iterations := loop.RunUntilIdle(10)
	assert.Equal(t, 3, iterations)
	assert.Equal(t, 3, count)
	assert.True(t, notified)
	assert.Equal(t, []Handle{5, 6}, async)
	assert.False(t, loop.Pending())
	assert.False(t, loop.Iterate())
}

func TestLoop_Timeout(t *testing.T) {
	r := newRuntime(t)
	loop := r.Loop()
	fired := 0
	loop.TimeoutAdd(3, func(Handle) bool {
		fired++
		return fired < 2
	}, 0, nil)

	iterations := loop.RunUntilIdle(100)
	assert.Equal(t, 6, iterations)
	assert.Equal(t, 2, fired)
}

func TestLoop_SourceRemove(t *testing.T) {
	r := newRuntime(t)
	loop := r.Loop()
	notified := 0
	id := loop.IdleAdd(func(Handle) bool { return true }, 0, func(Handle) { notified++ })
	loop.Iterate()
	assert.True(t, loop.SourceRemove(id))
	assert.False(t, loop.SourceRemove(id))
	assert.Equal(t, 1, notified)
}

func TestMemdupAndBlocks(t *testing.T) {
	r := newRuntime(t)
	src, err := r.Malloc(8)
	require.NoError(t, err)
	r.WriteHandle(src, 0, 0xabc)

	dup, err := r.Memdup(src, 8)
	require.NoError(t, err)
	assert.Equal(t, Handle(0xabc), r.ReadHandle(dup, 0))
	size, ok := r.BlockSize(dup)
	assert.True(t, ok)
	assert.Equal(t, uint32(8), size)

	r.Free(src)
	r.Free(dup)
	assert.Panics(t, func() { r.Free(dup) })
}
