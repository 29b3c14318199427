// Package ffiruntime provides an ownership-aware runtime for exchanging values,
// collections and callbacks with a reference-counted C object/value system.
//
// Binding code produced by a generator (or written by hand) uses this runtime to
// prepare foreign-call arguments and to take ownership of results. Every
// cross-boundary operation carries an ownership tag supplied by the generator;
// the runtime never infers ownership.
//
// # Architecture Overview
//
//	ffiruntime/          Root package with Handle, Memory, Allocator and Heap
//	├── ownership/       Ownership tags, directions, length sources, callback scopes
//	├── bitflag/         Generic bitflag set over enum types
//	├── errors/          Structured error types and contract violations
//	├── memory/          Foreign heaps: Go slice backed and wazero backed
//	├── foreign/         In-process implementation of the foreign object/value system
//	├── resource/        Handle table for Go values passed as foreign user data
//	├── wrap/            Owning and borrowing wrappers over foreign handles
//	├── collection/      Lists, pointer arrays, hash maps and spans
//	├── callback/        Host callables exposed to the foreign side with lifetime scopes
//	├── value/           Type-erased dynamic value box
//	├── connection/      Liveness tracking for signal subscriptions
//	├── bind/            Boundary contract consumed from the code generator
//	└── cmd/ffiscope/    Scenario runner and TUI over the in-process runtime
//
// # Quick Start
//
// Take ownership of a result returned with full transfer:
//
//	obj := wrap.Wrap[widgetClass](lib.NewWidget(), ownership.Full)
//	defer obj.Close()
//
//	// borrow out for a transfer-none argument
//	lib.Show(obj.Handle())
//
// Collections adopt or borrow foreign containers per tag:
//
//	list, err := collection.SListFromHandle[wrap.ObjectElem[widgetClass]](rt, lib.Children(), ownership.Full)
//	if err != nil {
//	    return err
//	}
//	defer list.Close()
//	for h := range list.All() {
//	    fmt.Println(h)
//	}
//
// Signal handlers are tracked by a Connection that reports liveness without
// keeping the handler alive:
//
//	reg := callback.NewRegistry(rt, callback.DefaultOptions())
//	conn, err := connection.Connect(reg, obj.Handle(), "changed", func(args *callback.Args) (ffiruntime.Handle, error) {
//	    return 0, nil
//	})
//	...
//	conn.Disconnect()
//
// # Thread Safety
//
// Wrappers and collections are single-owner values and are not safe to share
// without synchronization. Ref-counted handles may be owned by wrappers on
// several goroutines only when the foreign refcount operations are atomic.
// The callback registry and connection tracker are safe for concurrent use.
package ffiruntime
