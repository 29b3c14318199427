// Package resource provides the handle table that stands behind callback
// user data.
//
// Foreign code never sees a Go pointer. A callback registered with the
// foreign runtime carries a word of user data; that word is a Handle into
// a Table, and the trampoline resolves it back to the Go closure.
//
// # Handles
//
// A Handle packs a slot index and the slot's generation. Slots are reused
// through a free list, and the generation makes a stale handle from a
// previous occupant fail to resolve instead of reaching the new value:
//
//	table := resource.NewTable()
//	h := table.Insert(typeID, closure)
//	v, ok := table.Get(h)
//	table.Remove(h)
//	_, ok = table.Get(h) // false, even after the slot is reused
//
// # Borrows
//
// Borrow pins an entry while it is in use. A Remove that arrives while an
// entry is pinned reports DropDeferred; the entry is dropped by the final
// ReturnBorrow. This is how a destroy notify delivered from inside a
// running callback is held back until the callback returns:
//
//	v, ok := table.Borrow(h)
//	// ... run v; the foreign side may call Remove(h) here ...
//	if table.ReturnBorrow(h) {
//	    // the deferred drop happened now
//	}
//
// # Observers
//
// Observers receive EventCreated, EventBorrowed, EventBorrowReturned,
// EventDropDeferred and EventDropped. Values implementing Dropper have Drop
// called when their entry is removed.
//
// # Typed views
//
// Typed[T] restricts a table to one type id and value type:
//
//	slots := resource.NewTyped[*slot](table, slotTypeID)
//	h := slots.Insert(s)
//	s, ok := slots.Borrow(h)
package resource
