// Package foreign is an in-process implementation of the C object/value
// system contract the runtime binds against: ref-counted instances with
// floating references, a boxed type table, raw allocations, singly and
// doubly linked lists, ref-counted pointer arrays, hash tables, signals and
// a main loop that drives callbacks.
//
// Every resource is allocated from a ffiruntime.Heap, so every Handle is a
// heap address, and container nodes and array segments are laid out in heap
// memory the way the C runtime lays them out:
//
//	list node   [data u64][next u64]
//	dlist node  [data u64][next u64][prev u64]
//	ptr array   [pdata u64][len u32][cap u32]
//
// It is not a type system: there is no inheritance, no interfaces and no
// class structures. Types are plain names.
//
// # Strict Mode
//
// With Options.Strict set, operations on unknown or already-freed handles
// panic with a *errors.ContractViolation. Tests run strict so a double free
// surfaces as a failure instead of silent corruption.
package foreign
