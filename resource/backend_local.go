package resource

import (
	"sync"

	"github.com/wippyai/ffi-runtime/errors"
)

// LocalBackend is an in-memory backend with borrow tracking and
// generation-checked handles.
type LocalBackend struct {
	entries  []entry
	freeList []uint32
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value       any
	typeID      uint32
	generation  uint32
	borrowCount uint32
	valid       bool
	dropPending bool
}

// NewLocalBackend creates an empty backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

func makeHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index+1))
}

func splitHandle(h Handle) (index, generation uint32, ok bool) {
	low := uint32(uint64(h))
	if low == 0 {
		return 0, 0, false
	}
	return low - 1, uint32(uint64(h) >> 32), true
}

// lookup returns the live entry named by h. Caller holds mu.
func (b *LocalBackend) lookup(h Handle) *entry {
	idx, gen, ok := splitHandle(h)
	if !ok || int(idx) >= len(b.entries) {
		return nil
	}
	e := &b.entries[idx]
	if !e.valid || e.generation != gen {
		return nil
	}
	return e
}

// Create stores a value and returns a handle.
func (b *LocalBackend) Create(typeID uint32, value any) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, errors.Closed(errors.PhaseRegistry, "resource table")
	}

	if n := len(b.freeList); n > 0 {
		idx := b.freeList[n-1]
		b.freeList = b.freeList[:n-1]
		e := &b.entries[idx]
		e.generation++
		e.typeID = typeID
		e.value = value
		e.valid = true
		return makeHandle(idx, e.generation), nil
	}

	b.entries = append(b.entries, entry{typeID: typeID, value: value, valid: true})
	return makeHandle(uint32(len(b.entries)-1), 0), nil
}

// Get retrieves a value by handle. Entries pending a deferred drop still
// resolve until the drop completes.
func (b *LocalBackend) Get(handle Handle) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if e := b.lookup(handle); e != nil {
		return e.value, true
	}
	return nil, false
}

// TypeID returns the type id for a handle.
func (b *LocalBackend) TypeID(handle Handle) (uint32, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if e := b.lookup(handle); e != nil {
		return e.typeID, true
	}
	return 0, false
}

// Drop removes an entry. A borrowed entry is marked and removed by the
// final ReturnBorrow instead.
func (b *LocalBackend) Drop(handle Handle) (any, DropState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil || e.dropPending {
		return nil, DropInvalid
	}
	if e.borrowCount > 0 {
		e.dropPending = true
		return nil, DropDeferred
	}
	idx, _, _ := splitHandle(handle)
	return b.release(idx), DropDone
}

// release clears entry idx and returns its value. Caller holds mu.
func (b *LocalBackend) release(idx uint32) any {
	e := &b.entries[idx]
	value := e.value
	e.valid = false
	e.value = nil
	e.borrowCount = 0
	e.dropPending = false
	b.freeList = append(b.freeList, idx)
	return value
}

// Borrow increments the borrow count and returns the value. Entries with a
// pending drop cannot be borrowed again.
func (b *LocalBackend) Borrow(handle Handle) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil || e.dropPending {
		return nil, false
	}
	e.borrowCount++
	return e.value, true
}

// ReturnBorrow decrements the borrow count, completing a deferred drop
// when it reaches zero.
func (b *LocalBackend) ReturnBorrow(handle Handle) (any, bool, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil || e.borrowCount == 0 {
		return nil, false, false
	}
	e.borrowCount--
	if e.borrowCount == 0 && e.dropPending {
		idx, _, _ := splitHandle(handle)
		return b.release(idx), true, true
	}
	return nil, false, true
}

// Borrows returns the outstanding borrow count of a handle.
func (b *LocalBackend) Borrows(handle Handle) uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if e := b.lookup(handle); e != nil {
		return e.borrowCount
	}
	return 0
}

// Len returns the number of live entries, including those pending a drop.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, e := range b.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over live entries.
func (b *LocalBackend) Each(fn func(Handle, uint32, any) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, e := range b.entries {
		if e.valid {
			if !fn(makeHandle(uint32(i), e.generation), e.typeID, e.value) {
				break
			}
		}
	}
}

// Close releases all entries, dropping values that implement Dropper.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var droppers []Dropper
	for i := range b.entries {
		if b.entries[i].valid {
			if d, ok := b.entries[i].value.(Dropper); ok {
				droppers = append(droppers, d)
			}
		}
	}
	b.entries = nil
	b.freeList = nil
	b.mu.Unlock()

	for _, d := range droppers {
		d.Drop()
	}
	return nil
}
