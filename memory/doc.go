// Package memory provides foreign heaps for the runtime: addressable memory
// plus an allocator over it.
//
// Two backings are available:
//
//	heap := memory.NewLinear(nil)            // Go byte slice
//	heap, err := memory.NewWazero(ctx, nil)  // wazero linear memory
//
// Both grow in 64 KiB pages and never hand out address 0, so a zero address
// can always stand for the null handle. Freed blocks are kept on a free list
// sorted by address and coalesced with their neighbours.
package memory
