package resource

import (
	"sync"
)

// Table maps handles to Go values with type ids, borrow tracking and
// lifecycle observers.
type Table struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
	closed    bool
	closeMu   sync.RWMutex
}

// NewTable creates a table over a LocalBackend.
func NewTable() *Table {
	return &Table{
		backend: NewLocalBackend(),
	}
}

// Insert adds a value and returns its handle, 0 once the table is closed.
func (t *Table) Insert(typeID uint32, value any) Handle {
	t.closeMu.RLock()
	if t.closed {
		t.closeMu.RUnlock()
		return 0
	}
	t.closeMu.RUnlock()

	handle, err := t.backend.Create(typeID, value)
	if err != nil {
		return 0
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		TypeID: typeID,
		Value:  value,
	})

	return handle
}

// Get retrieves a value by handle.
func (t *Table) Get(handle Handle) (any, bool) {
	return t.backend.Get(handle)
}

// GetTyped retrieves a value only if it was inserted with typeID.
func (t *Table) GetTyped(handle Handle, typeID uint32) (any, bool) {
	actual, ok := t.backend.TypeID(handle)
	if !ok || actual != typeID {
		return nil, false
	}
	return t.backend.Get(handle)
}

// Remove drops an entry. While the entry is borrowed the drop is deferred
// to the last ReturnBorrow and Remove reports DropDeferred.
func (t *Table) Remove(handle Handle) (any, DropState) {
	typeID, _ := t.backend.TypeID(handle)
	value, state := t.backend.Drop(handle)
	switch state {
	case DropDone:
		t.dropped(handle, typeID, value)
	case DropDeferred:
		t.notify(Event{
			Type:    EventDropDeferred,
			Handle:  handle,
			TypeID:  typeID,
			Borrows: t.backend.Borrows(handle),
		})
	}
	return value, state
}

// Borrow pins an entry for the duration of a use and returns its value.
// Every successful Borrow must be paired with ReturnBorrow.
func (t *Table) Borrow(handle Handle) (any, bool) {
	value, ok := t.backend.Borrow(handle)
	if !ok {
		return nil, false
	}
	typeID, _ := t.backend.TypeID(handle)
	t.notify(Event{
		Type:    EventBorrowed,
		Handle:  handle,
		TypeID:  typeID,
		Value:   value,
		Borrows: t.backend.Borrows(handle),
	})
	return value, true
}

// ReturnBorrow unpins an entry. It returns true if this completed a
// deferred drop.
func (t *Table) ReturnBorrow(handle Handle) bool {
	typeID, _ := t.backend.TypeID(handle)
	value, dropped, ok := t.backend.ReturnBorrow(handle)
	if !ok {
		return false
	}
	if dropped {
		t.dropped(handle, typeID, value)
		return true
	}
	t.notify(Event{
		Type:    EventBorrowReturned,
		Handle:  handle,
		TypeID:  typeID,
		Borrows: t.backend.Borrows(handle),
	})
	return false
}

func (t *Table) dropped(handle Handle, typeID uint32, value any) {
	if d, ok := value.(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{
		Type:   EventDropped,
		Handle: handle,
		TypeID: typeID,
		Value:  value,
	})
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	return t.backend.Len()
}

// Clear removes every entry. Borrowed entries are deferred as in Remove.
func (t *Table) Clear() {
	var handles []Handle
	t.backend.Each(func(h Handle, _ uint32, _ any) bool {
		handles = append(handles, h)
		return true
	})
	for _, h := range handles {
		t.Remove(h)
	}
}

// Close releases all entries and stops accepting inserts.
func (t *Table) Close() error {
	t.closeMu.Lock()
	t.closed = true
	t.closeMu.Unlock()

	return t.backend.Close()
}

// Backend returns the underlying storage.
func (t *Table) Backend() Backend {
	return t.backend
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}

// Typed is a view of a Table restricted to values of type T under one
// type id.
type Typed[T any] struct {
	table  *Table
	typeID uint32
}

// NewTyped returns a typed view over table.
func NewTyped[T any](table *Table, typeID uint32) Typed[T] {
	return Typed[T]{table: table, typeID: typeID}
}

// Insert adds a value and returns its handle.
func (t Typed[T]) Insert(value T) Handle {
	return t.table.Insert(t.typeID, value)
}

// Get retrieves a value by handle.
func (t Typed[T]) Get(handle Handle) (T, bool) {
	v, ok := t.table.GetTyped(handle, t.typeID)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Borrow pins and returns a value of type T.
func (t Typed[T]) Borrow(handle Handle) (T, bool) {
	var zero T
	if id, ok := t.table.backend.TypeID(handle); !ok || id != t.typeID {
		return zero, false
	}
	v, ok := t.table.Borrow(handle)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		t.table.ReturnBorrow(handle)
		return zero, false
	}
	return typed, true
}

// ReturnBorrow unpins a value borrowed through Borrow.
func (t Typed[T]) ReturnBorrow(handle Handle) bool {
	return t.table.ReturnBorrow(handle)
}

// Remove drops an entry of this type.
func (t Typed[T]) Remove(handle Handle) (T, DropState) {
	var zero T
	if id, ok := t.table.backend.TypeID(handle); !ok || id != t.typeID {
		return zero, DropInvalid
	}
	v, state := t.table.Remove(handle)
	typed, _ := v.(T)
	return typed, state
}

// Len returns the number of live entries of this type.
func (t Typed[T]) Len() int {
	n := 0
	t.Each(func(Handle, T) bool {
		n++
		return true
	})
	return n
}

// Each iterates over live entries of this type.
func (t Typed[T]) Each(fn func(Handle, T) bool) {
	t.table.backend.Each(func(h Handle, id uint32, v any) bool {
		if id != t.typeID {
			return true
		}
		typed, ok := v.(T)
		if !ok {
			return true
		}
		return fn(h, typed)
	})
}
