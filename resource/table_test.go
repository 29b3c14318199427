package resource

import (
	"testing"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e)
}

func (o *testObserver) types() []EventType {
	out := make([]EventType, len(o.events))
	for i, e := range o.events {
		out[i] = e.Type
	}
	return out
}

func TestTable_Basic(t *testing.T) {
	table := NewTable()

	h := table.Insert(1, "test")
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, ok := table.Get(h)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	if _, ok = table.GetTyped(h, 1); !ok {
		t.Fatal("GetTyped with correct type failed")
	}
	if _, ok = table.GetTyped(h, 2); ok {
		t.Fatal("GetTyped with wrong type should fail")
	}

	val, state := table.Remove(h)
	if state != DropDone {
		t.Fatal("Remove failed")
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}
}

func TestTable_Observer(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	h := table.Insert(1, "test")
	if len(obs.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(obs.events))
	}
	if obs.events[0].Type != EventCreated {
		t.Fatal("Expected EventCreated")
	}
	if obs.events[0].Handle != h {
		t.Fatal("Wrong handle in event")
	}

	table.Remove(h)
	if len(obs.events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(obs.events))
	}
	if obs.events[1].Type != EventDropped {
		t.Fatal("Expected EventDropped")
	}

	table.Unsubscribe(obs)
	table.Insert(1, "test2")
	if len(obs.events) != 2 {
		t.Fatal("Should not receive events after Unsubscribe")
	}
}

func TestTable_DeferredRemove(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)
	d := &dropCounter{}

	h := table.Insert(1, d)
	if _, ok := table.Borrow(h); !ok {
		t.Fatal("Borrow failed")
	}

	if _, state := table.Remove(h); state != DropDeferred {
		t.Fatalf("Expected DropDeferred, got %d", state)
	}
	if d.count != 0 {
		t.Fatal("Drop must wait for the borrow")
	}

	if !table.ReturnBorrow(h) {
		t.Fatal("ReturnBorrow should complete the deferred drop")
	}
	if d.count != 1 {
		t.Fatalf("Expected Drop() once, got %d", d.count)
	}

	want := []EventType{EventCreated, EventBorrowed, EventDropDeferred, EventDropped}
	got := obs.types()
	if len(got) != len(want) {
		t.Fatalf("Expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestTable_Clear(t *testing.T) {
	table := NewTable()

	table.Insert(1, "a")
	table.Insert(1, "b")
	table.Insert(1, "c")

	if table.Len() != 3 {
		t.Fatal("Expected Len() == 3")
	}

	table.Clear()

	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Clear")
	}
}

func TestTable_Close(t *testing.T) {
	table := NewTable()

	table.Insert(1, "a")
	table.Insert(1, "b")

	if err := table.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if h := table.Insert(1, "c"); h != 0 {
		t.Fatal("Expected Insert to fail after Close")
	}
}

func TestTable_DropperInterface(t *testing.T) {
	table := NewTable()
	d := &dropCounter{}

	h := table.Insert(1, d)
	table.Remove(h)

	if d.count != 1 {
		t.Fatalf("Expected Drop() to be called once, called %d times", d.count)
	}
}

func TestTyped(t *testing.T) {
	table := NewTable()
	ints := NewTyped[int](table, 1)
	strs := NewTyped[string](table, 2)

	hi := ints.Insert(42)
	hs := strs.Insert("x")

	if v, ok := ints.Get(hi); !ok || v != 42 {
		t.Fatalf("Expected 42, got %v", v)
	}
	if _, ok := ints.Get(hs); ok {
		t.Fatal("Typed Get across type ids should fail")
	}
	if _, ok := ints.Borrow(hs); ok {
		t.Fatal("Typed Borrow across type ids should fail")
	}
	if ints.Len() != 1 || strs.Len() != 1 {
		t.Fatal("Expected one entry per type")
	}

	if v, ok := ints.Borrow(hi); !ok || v != 42 {
		t.Fatal("Typed Borrow failed")
	}
	if _, state := ints.Remove(hi); state != DropDeferred {
		t.Fatal("Expected deferred remove")
	}
	if !ints.ReturnBorrow(hi) {
		t.Fatal("Expected drop on return")
	}
	if _, state := strs.Remove(hi); state != DropInvalid {
		t.Fatal("Remove of a dropped handle should be invalid")
	}
	if table.Len() != 1 {
		t.Fatalf("Expected 1 entry left, got %d", table.Len())
	}
}
