package resource

import ffiruntime "github.com/wippyai/ffi-runtime"

// Handle names a table entry. It travels through foreign code as callback
// user data, so it has the width of a foreign handle. 0 is always invalid.
//
// The low 32 bits index the entry, the high 32 bits hold the slot
// generation, so a stale handle to a reused slot never resolves.
type Handle = ffiruntime.Handle

// EventType identifies a table lifecycle event.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventBorrowed
	EventBorrowReturned
	EventDropDeferred
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	case EventBorrowed:
		return "borrowed"
	case EventBorrowReturned:
		return "borrow-returned"
	case EventDropDeferred:
		return "drop-deferred"
	default:
		return "unknown"
	}
}

// Event represents a table lifecycle event.
type Event struct {
	Value   any
	Handle  Handle
	TypeID  uint32
	Borrows uint32
	Type    EventType
}

// Observer receives notifications about table lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// DropState reports what a drop request did.
type DropState uint8

const (
	// DropInvalid means the handle did not name a live entry.
	DropInvalid DropState = iota
	// DropDone means the entry was removed.
	DropDone
	// DropDeferred means the entry is borrowed; it is removed when the
	// last borrow is returned.
	DropDeferred
)

// Backend provides the storage behind a Table.
type Backend interface {
	// Create stores a value and returns a handle.
	Create(typeID uint32, value any) (Handle, error)

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// TypeID returns the type id stored with a handle.
	TypeID(handle Handle) (uint32, bool)

	// Drop removes an entry, or marks it for removal while borrowed.
	Drop(handle Handle) (any, DropState)

	// Borrow pins an entry so drops are deferred.
	Borrow(handle Handle) (any, bool)

	// ReturnBorrow unpins an entry. dropped reports that this return
	// completed a deferred drop; value is then the removed value.
	ReturnBorrow(handle Handle) (value any, dropped bool, ok bool)

	// Len returns the number of live entries.
	Len() int

	// Each iterates over live entries.
	Each(fn func(Handle, uint32, any) bool)

	// Close releases all entries.
	Close() error
}

// Dropper is optionally implemented by values that need cleanup when
// their entry is removed.
type Dropper interface {
	Drop()
}
