package memory

import (
	"context"
	"encoding/binary"
	"sync"

	ffiruntime "github.com/wippyai/ffi-runtime"
	"github.com/wippyai/ffi-runtime/errors"
)

// PageSize is the growth unit of every heap.
const PageSize = 65536

// reserved bytes at the bottom of the heap so address 0 is never allocated.
const reserved = 16

// Config holds configuration for heap creation
type Config struct {
	// InitialPages is the size at creation. 0 means 1 page.
	InitialPages uint32

	// MaxPages bounds growth. 0 means 4096 pages (256MB).
	MaxPages uint32
}

func (c *Config) withDefaults() Config {
	out := Config{InitialPages: 1, MaxPages: 4096}
	if c != nil {
		if c.InitialPages > 0 {
			out.InitialPages = c.InitialPages
		}
		if c.MaxPages > 0 {
			out.MaxPages = c.MaxPages
		}
	}
	if out.MaxPages < out.InitialPages {
		out.MaxPages = out.InitialPages
	}
	return out
}

// backing is the raw byte store under a Heap.
type backing interface {
	view(offset, length uint32) ([]byte, bool)
	size() uint32
	grow(pages uint32) bool
	close(ctx context.Context) error
}

type block struct {
	addr uint32
	size uint32
}

// Heap implements ffiruntime.Heap over a backing store.
// Safe for concurrent use.
type Heap struct {
	store    backing
	free     []block
	top      uint32
	maxPages uint32
	inUse    uint32
	mu       sync.Mutex
	closed   bool
}

var _ ffiruntime.Heap = (*Heap)(nil)

func newHeap(store backing, cfg Config) *Heap {
	return &Heap{
		store:    store,
		top:      reserved,
		maxPages: cfg.MaxPages,
	}
}

// Size returns the current heap size in bytes.
func (h *Heap) Size() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.size()
}

// InUse returns the number of bytes currently allocated.
func (h *Heap) InUse() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inUse
}

// Alloc returns the address of size fresh bytes aligned to align.
func (h *Heap) Alloc(size, align uint32) (uint32, error) {
	if size == 0 {
		size = 1
	}
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, errors.InvalidInput(errors.PhaseMemory, "alignment must be a power of two")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, errors.Closed(errors.PhaseMemory, "heap")
	}

	if addr, ok := h.allocFree(size, align); ok {
		h.inUse += size
		return addr, nil
	}

	addr := alignUp(h.top, align)
	end := uint64(addr) + uint64(size)
	if end > uint64(h.store.size()) {
		need := uint32((end - uint64(h.store.size()) + PageSize - 1) / PageSize)
		current := h.store.size() / PageSize
		if current+need > h.maxPages || !h.store.grow(need) {
			return 0, errors.AllocationFailed(errors.PhaseMemory, size, align)
		}
	}
	if addr > h.top {
		h.insertFree(block{addr: h.top, size: addr - h.top})
	}
	h.top = uint32(end)
	h.inUse += size
	return addr, nil
}

// allocFree carves an aligned block out of the first free block that fits.
func (h *Heap) allocFree(size, align uint32) (uint32, bool) {
	for i, b := range h.free {
		addr := alignUp(b.addr, align)
		pad := addr - b.addr
		if uint64(pad)+uint64(size) > uint64(b.size) {
			continue
		}
		rest := b.size - pad - size
		h.free = append(h.free[:i], h.free[i+1:]...)
		if pad > 0 {
			h.insertFree(block{addr: b.addr, size: pad})
		}
		if rest > 0 {
			h.insertFree(block{addr: addr + size, size: rest})
		}
		return addr, true
	}
	return 0, false
}

// Free returns a block to the heap. Freeing address 0 is a no-op.
func (h *Heap) Free(ptr, size, align uint32) {
	if ptr == 0 {
		return
	}
	if size == 0 {
		size = 1
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.inUse -= min(size, h.inUse)
	h.insertFree(block{addr: ptr, size: size})
}

// insertFree keeps the list sorted by address and merges adjacent blocks.
func (h *Heap) insertFree(nb block) {
	i := 0
	for i < len(h.free) && h.free[i].addr < nb.addr {
		i++
	}
	h.free = append(h.free, block{})
	copy(h.free[i+1:], h.free[i:])
	h.free[i] = nb

	if i+1 < len(h.free) && h.free[i].addr+h.free[i].size == h.free[i+1].addr {
		h.free[i].size += h.free[i+1].size
		h.free = append(h.free[:i+1], h.free[i+2:]...)
	}
	if i > 0 && h.free[i-1].addr+h.free[i-1].size == h.free[i].addr {
		h.free[i-1].size += h.free[i].size
		h.free = append(h.free[:i], h.free[i+1:]...)
		i--
	}
	if last := h.free[len(h.free)-1]; last.addr+last.size == h.top {
		h.top = last.addr
		h.free = h.free[:len(h.free)-1]
	}
}

// Read returns a copy of length bytes at offset.
func (h *Heap) Read(offset uint32, length uint32) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.store.view(offset, length)
	if !ok {
		return nil, h.bounds(offset, length)
	}
	out := make([]byte, length)
	copy(out, v)
	return out, nil
}

// Write copies data to offset.
func (h *Heap) Write(offset uint32, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.store.view(offset, uint32(len(data)))
	if !ok {
		return h.bounds(offset, uint32(len(data)))
	}
	copy(v, data)
	return nil
}

func (h *Heap) ReadU8(offset uint32) (uint8, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.store.view(offset, 1)
	if !ok {
		return 0, h.bounds(offset, 1)
	}
	return v[0], nil
}

func (h *Heap) ReadU32(offset uint32) (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.store.view(offset, 4)
	if !ok {
		return 0, h.bounds(offset, 4)
	}
	return binary.LittleEndian.Uint32(v), nil
}

func (h *Heap) ReadU64(offset uint32) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.store.view(offset, 8)
	if !ok {
		return 0, h.bounds(offset, 8)
	}
	return binary.LittleEndian.Uint64(v), nil
}

func (h *Heap) WriteU8(offset uint32, value uint8) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.store.view(offset, 1)
	if !ok {
		return h.bounds(offset, 1)
	}
	v[0] = value
	return nil
}

func (h *Heap) WriteU32(offset uint32, value uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.store.view(offset, 4)
	if !ok {
		return h.bounds(offset, 4)
	}
	binary.LittleEndian.PutUint32(v, value)
	return nil
}

func (h *Heap) WriteU64(offset uint32, value uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.store.view(offset, 8)
	if !ok {
		return h.bounds(offset, 8)
	}
	binary.LittleEndian.PutUint64(v, value)
	return nil
}

// Close releases the backing store. Further allocations fail.
func (h *Heap) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.free = nil
	return h.store.close(ctx)
}

func (h *Heap) bounds(offset, length uint32) error {
	return errors.New(errors.PhaseMemory, errors.KindOutOfBounds).
		Value(offset).
		Detail("access [%d, %d) outside heap of %d bytes", offset, uint64(offset)+uint64(length), h.store.size()).
		Build()
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}
