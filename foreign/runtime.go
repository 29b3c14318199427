package foreign

import (
	"context"
	"sync"

	"go.uber.org/zap"

	ffiruntime "github.com/wippyai/ffi-runtime"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/memory"
)

// Handle is a foreign heap address.
type Handle = ffiruntime.Handle

// EventType identifies a lifecycle event.
type EventType uint8

const (
	EventAlloc EventType = iota
	EventFree
	EventRef
	EventUnref
	EventFinalize
	EventSink
)

func (t EventType) String() string {
	switch t {
	case EventAlloc:
		return "alloc"
	case EventFree:
		return "free"
	case EventRef:
		return "ref"
	case EventUnref:
		return "unref"
	case EventFinalize:
		return "finalize"
	case EventSink:
		return "sink"
	default:
		return "unknown"
	}
}

// Event represents a lifecycle event of a foreign resource.
type Event struct {
	TypeName string
	Handle   Handle
	Refs     int32
	Type     EventType
}

// Observer receives notifications about lifecycle events.
type Observer interface {
	OnForeignEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnForeignEvent(e Event) { f(e) }

// Options configures a Runtime.
type Options struct {
	// Heap backs every allocation. nil means a fresh memory.NewLinear heap.
	Heap ffiruntime.Heap

	// Strict panics on operations against unknown handles.
	Strict bool
}

// DefaultOptions returns strict options over a linear heap.
func DefaultOptions() Options {
	return Options{Strict: true}
}

// Stats is a snapshot of live resource counts.
type Stats struct {
	Blocks    int
	Objects   int
	Boxes     int
	Finalized int
	Freed     int
}

// Runtime is the foreign object/value system.
// Safe for concurrent use.
type Runtime struct {
	heap        ffiruntime.Heap
	ownsHeap    bool
	blocks      map[Handle]uint32
	objects     map[Handle]*instance
	boxes       map[Handle]*box
	boxedTypes  []boxedType
	boxedByName map[string]TypeID
	arrays      map[Handle]*ptrArray
	tables      map[Handle]*hashTable
	signals     map[string]map[string]bool
	loop        *Loop
	observers   []Observer
	finalized   int
	freed       int
	nextHandler uint64
	strict      bool
	mu          sync.Mutex
	obsMu       sync.RWMutex
}

// New creates a runtime.
func New(opts Options) *Runtime {
	r := &Runtime{
		heap:        opts.Heap,
		blocks:      make(map[Handle]uint32),
		objects:     make(map[Handle]*instance),
		boxes:       make(map[Handle]*box),
		boxedByName: make(map[string]TypeID),
		arrays:      make(map[Handle]*ptrArray),
		tables:      make(map[Handle]*hashTable),
		signals:     make(map[string]map[string]bool),
		strict:      opts.Strict,
	}
	if r.heap == nil {
		r.heap = memory.NewLinear(nil)
		r.ownsHeap = true
	}
	r.loop = newLoop()
	return r
}

// Heap returns the heap every handle is allocated from.
func (r *Runtime) Heap() ffiruntime.Heap { return r.heap }

// Loop returns the runtime's main loop.
func (r *Runtime) Loop() *Loop { return r.loop }

// Subscribe adds an observer for lifecycle events.
func (r *Runtime) Subscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.observers = append(r.observers, o)
}

// Unsubscribe removes an observer.
func (r *Runtime) Unsubscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	for i, obs := range r.observers {
		if obs == o {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

func (r *Runtime) notify(e Event) {
	r.obsMu.RLock()
	defer r.obsMu.RUnlock()
	for _, o := range r.observers {
		o.OnForeignEvent(e)
	}
}

// Stats returns live resource counts.
func (r *Runtime) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Blocks:    len(r.blocks),
		Objects:   len(r.objects),
		Boxes:     len(r.boxes),
		Finalized: r.finalized,
		Freed:     r.freed,
	}
}

// Malloc allocates size zeroed bytes.
func (r *Runtime) Malloc(size uint32) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allocLocked(size)
}

func (r *Runtime) allocLocked(size uint32) (Handle, error) {
	if size == 0 {
		size = 1
	}
	addr, err := r.heap.Alloc(size, 8)
	if err != nil {
		return 0, err
	}
	if err := r.heap.Write(addr, make([]byte, size)); err != nil {
		r.heap.Free(addr, size, 8)
		return 0, err
	}
	h := Handle(addr)
	r.blocks[h] = size
	return h, nil
}

// Free releases a block obtained from Malloc or Memdup.
func (r *Runtime) Free(h Handle) {
	if h == 0 {
		return
	}
	r.mu.Lock()
	ok := r.freeLocked(h)
	r.mu.Unlock()
	if !ok {
		r.violation("free of unknown block %#x", uintptr(h))
		return
	}
	r.notify(Event{Type: EventFree, Handle: h})
}

func (r *Runtime) freeLocked(h Handle) bool {
	size, ok := r.blocks[h]
	if !ok {
		return false
	}
	delete(r.blocks, h)
	r.heap.Free(uint32(h), size, 8)
	r.freed++
	return true
}

// BlockSize returns the size of a live block.
func (r *Runtime) BlockSize(h Handle) (uint32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	size, ok := r.blocks[h]
	return size, ok
}

// Memdup allocates a copy of size bytes at src.
func (r *Runtime) Memdup(src Handle, size uint32) (Handle, error) {
	data, err := r.heap.Read(uint32(src), size)
	if err != nil {
		return 0, err
	}
	dst, err := r.Malloc(size)
	if err != nil {
		return 0, err
	}
	if err := r.heap.Write(uint32(dst), data); err != nil {
		r.Free(dst)
		return 0, err
	}
	return dst, nil
}

// ReadHandle loads the handle stored at addr + index*HandleSize.
func (r *Runtime) ReadHandle(addr Handle, index int) Handle {
	v, err := r.heap.ReadU64(uint32(addr) + uint32(index)*ffiruntime.HandleSize)
	if err != nil {
		errors.Violation(errors.PhaseMemory, "read handle slot %d at %#x: %v", index, uintptr(addr), err)
	}
	return Handle(v)
}

// WriteHandle stores h at addr + index*HandleSize.
func (r *Runtime) WriteHandle(addr Handle, index int, h Handle) {
	if err := r.heap.WriteU64(uint32(addr)+uint32(index)*ffiruntime.HandleSize, uint64(h)); err != nil {
		errors.Violation(errors.PhaseMemory, "write handle slot %d at %#x: %v", index, uintptr(addr), err)
	}
}

// Close reports leaked resources and releases the heap if the runtime
// created it.
func (r *Runtime) Close(ctx context.Context) error {
	st := r.Stats()
	if st.Blocks > 0 {
		Logger().Warn("foreign runtime closed with live allocations",
			zap.Int("blocks", st.Blocks),
			zap.Int("objects", st.Objects),
			zap.Int("boxes", st.Boxes))
	}
	if r.ownsHeap {
		if c, ok := r.heap.(*memory.Heap); ok {
			return c.Close(ctx)
		}
	}
	return nil
}

func (r *Runtime) violation(format string, args ...any) {
	if r.strict {
		errors.Violation(errors.PhaseMemory, format, args...)
	}
	Logger().Sugar().Warnf(format, args...)
}
