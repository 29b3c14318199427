package foreign

import (
	ffiruntime "github.com/wippyai/ffi-runtime"
	"github.com/wippyai/ffi-runtime/errors"
)

type ptrArray struct {
	free func(Handle)
	refs int32
}

// PtrArrayNew creates an empty ref-counted pointer array. free, if set, is
// applied to elements when they are removed or the array is destroyed.
func (r *Runtime) PtrArrayNew(free func(Handle)) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	arr, err := r.allocLocked(16)
	if err != nil {
		return 0, err
	}
	r.arrays[arr] = &ptrArray{free: free, refs: 1}
	return arr, nil
}

func (r *Runtime) ptrArray(arr Handle) *ptrArray {
	r.mu.Lock()
	pa := r.arrays[arr]
	r.mu.Unlock()
	if pa == nil {
		r.violation("%#x is not a live pointer array", uintptr(arr))
	}
	return pa
}

func (r *Runtime) arrayHeader(arr Handle) (pdata Handle, n, capacity uint32) {
	p, err := r.heap.ReadU64(uint32(arr))
	if err != nil {
		errors.Violation(errors.PhaseMemory, "pointer array header %#x: %v", uintptr(arr), err)
	}
	n, _ = r.heap.ReadU32(uint32(arr) + 8)
	capacity, _ = r.heap.ReadU32(uint32(arr) + 12)
	return Handle(p), n, capacity
}

func (r *Runtime) setArrayHeader(arr, pdata Handle, n, capacity uint32) {
	_ = r.heap.WriteU64(uint32(arr), uint64(pdata))
	_ = r.heap.WriteU32(uint32(arr)+8, n)
	_ = r.heap.WriteU32(uint32(arr)+12, capacity)
}

// PtrArrayAdd appends h, reallocating the segment when full.
func (r *Runtime) PtrArrayAdd(arr, h Handle) error {
	if r.ptrArray(arr) == nil {
		return errors.NotFound(errors.PhaseCollection, "pointer array", "")
	}
	pdata, n, capacity := r.arrayHeader(arr)
	if n == capacity {
		newCap := max(capacity*2, 4)
		seg, err := r.Malloc(newCap * ffiruntime.HandleSize)
		if err != nil {
			return err
		}
		for i := 0; i < int(n); i++ {
			r.WriteHandle(seg, i, r.ReadHandle(pdata, i))
		}
		r.Free(pdata)
		pdata, capacity = seg, newCap
	}
	r.WriteHandle(pdata, int(n), h)
	r.setArrayHeader(arr, pdata, n+1, capacity)
	return nil
}

// PtrArrayLen returns the element count.
func (r *Runtime) PtrArrayLen(arr Handle) int {
	_, n, _ := r.arrayHeader(arr)
	return int(n)
}

// PtrArrayIndex returns element i. i must be in range.
func (r *Runtime) PtrArrayIndex(arr Handle, i int) Handle {
	pdata, n, _ := r.arrayHeader(arr)
	if i < 0 || i >= int(n) {
		errors.Violation(errors.PhaseCollection, "pointer array index %d out of range (length %d)", i, n)
	}
	return r.ReadHandle(pdata, i)
}

// PtrArraySet replaces element i without freeing the old one.
func (r *Runtime) PtrArraySet(arr Handle, i int, h Handle) {
	pdata, n, _ := r.arrayHeader(arr)
	if i < 0 || i >= int(n) {
		errors.Violation(errors.PhaseCollection, "pointer array index %d out of range (length %d)", i, n)
	}
	r.WriteHandle(pdata, i, h)
}

// PtrArrayData returns the address of the element segment.
func (r *Runtime) PtrArrayData(arr Handle) Handle {
	pdata, _, _ := r.arrayHeader(arr)
	return pdata
}

// PtrArraySetFreeFunc replaces the element free function.
func (r *Runtime) PtrArraySetFreeFunc(arr Handle, free func(Handle)) {
	if pa := r.ptrArray(arr); pa != nil {
		r.mu.Lock()
		pa.free = free
		r.mu.Unlock()
	}
}

// PtrArrayRef adds a reference to the array.
func (r *Runtime) PtrArrayRef(arr Handle) Handle {
	if pa := r.ptrArray(arr); pa != nil {
		r.mu.Lock()
		pa.refs++
		r.mu.Unlock()
	}
	return arr
}

// PtrArrayRefCount returns the array's reference count, 0 if not live.
func (r *Runtime) PtrArrayRefCount(arr Handle) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pa, ok := r.arrays[arr]; ok {
		return pa.refs
	}
	return 0
}

// PtrArrayUnref drops a reference; the last one frees elements through the
// free function, the segment and the header.
func (r *Runtime) PtrArrayUnref(arr Handle) {
	pa := r.ptrArray(arr)
	if pa == nil {
		return
	}
	r.mu.Lock()
	pa.refs--
	last := pa.refs == 0
	r.mu.Unlock()
	if last {
		r.PtrArrayFree(arr, true)
	}
}

// PtrArrayStealIndex removes element i without freeing it.
func (r *Runtime) PtrArrayStealIndex(arr Handle, i int) Handle {
	pdata, n, capacity := r.arrayHeader(arr)
	if i < 0 || i >= int(n) {
		errors.Violation(errors.PhaseCollection, "pointer array index %d out of range (length %d)", i, n)
	}
	h := r.ReadHandle(pdata, i)
	for j := i; j < int(n)-1; j++ {
		r.WriteHandle(pdata, j, r.ReadHandle(pdata, j+1))
	}
	r.setArrayHeader(arr, pdata, n-1, capacity)
	return h
}

// PtrArrayFree destroys the array header. With freeSegment the elements
// are freed and the segment released; otherwise the segment is returned
// to the caller, who owns it and its elements.
func (r *Runtime) PtrArrayFree(arr Handle, freeSegment bool) Handle {
	pa := r.ptrArray(arr)
	if pa == nil {
		return 0
	}
	pdata, n, _ := r.arrayHeader(arr)

	r.mu.Lock()
	delete(r.arrays, arr)
	free := pa.free
	r.mu.Unlock()

	var seg Handle
	if freeSegment {
		if free != nil {
			for i := 0; i < int(n); i++ {
				free(r.ReadHandle(pdata, i))
			}
		}
		r.Free(pdata)
	} else {
		seg = pdata
	}
	r.Free(arr)
	return seg
}

// IsPtrArray reports whether arr is a live pointer array.
func (r *Runtime) IsPtrArray(arr Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.arrays[arr]
	return ok
}
