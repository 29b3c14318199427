package ffiruntime

// Handle is an opaque address naming a foreign-allocated resource.
// Handle 0 is the null handle. Generic code never dereferences a Handle;
// it only passes it to category-specific ref/unref/copy/free operations.
type Handle uintptr

// IsNil reports whether h is the null handle.
func (h Handle) IsNil() bool { return h == 0 }

// Memory represents the foreign heap's addressable bytes.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of the foreign heap in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates memory in the foreign heap
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}

// Heap is a foreign heap: addressable memory plus an allocator over it.
type Heap interface {
	Memory
	MemorySizer
	Allocator
}

// HandleSize is the size in bytes of a Handle as stored in foreign memory.
const HandleSize = 8
