package foreign

import (
	"sync/atomic"

	"github.com/wippyai/ffi-runtime/bitflag"
)

// ObjectFlag describes an instance's reference state.
type ObjectFlag uint32

const (
	// FlagFloating marks a reference nobody has claimed yet.
	FlagFloating ObjectFlag = 1 << iota
	// FlagFinalized marks an instance whose last reference was dropped.
	FlagFinalized
)

var objectFlagNames = map[ObjectFlag]string{
	FlagFloating:  "floating",
	FlagFinalized: "finalized",
}

// floatBit is the floating marker inside an instance's state word; the low
// bits hold the reference count, so "sole reference" and "floating" are
// read and changed together.
const floatBit = uint32(1) << 31

type instance struct {
	typeName string
	handlers []*handler
	state    atomic.Uint32
}

func (in *instance) refs() int32 { return int32(in.state.Load() &^ floatBit) }

// NewObject creates an instance of typeName holding one reference. A
// floating instance's reference is unowned until someone sinks it.
func (r *Runtime) NewObject(typeName string, floating bool) (Handle, error) {
	r.mu.Lock()
	h, err := r.allocLocked(16)
	if err != nil {
		r.mu.Unlock()
		return 0, err
	}
	in := &instance{typeName: typeName}
	st := uint32(1)
	if floating {
		st |= floatBit
	}
	in.state.Store(st)
	r.objects[h] = in
	r.mu.Unlock()

	r.notify(Event{Type: EventAlloc, Handle: h, TypeName: typeName, Refs: 1})
	return h, nil
}

func (r *Runtime) instance(h Handle) *instance {
	r.mu.Lock()
	in := r.objects[h]
	r.mu.Unlock()
	if in == nil {
		r.violation("object %#x is not a live instance", uintptr(h))
	}
	return in
}

// Ref adds a reference and returns h.
func (r *Runtime) Ref(h Handle) Handle {
	in := r.instance(h)
	if in == nil {
		return h
	}
	n := in.state.Add(1)
	r.notify(Event{Type: EventRef, Handle: h, TypeName: in.typeName, Refs: int32(n &^ floatBit)})
	return h
}

// Unref drops a reference, finalizing the instance when none remain.
func (r *Runtime) Unref(h Handle) {
	in := r.instance(h)
	if in == nil {
		return
	}
	n := in.state.Add(^uint32(0)) &^ floatBit
	r.notify(Event{Type: EventUnref, Handle: h, TypeName: in.typeName, Refs: int32(n)})
	if n == 0 {
		r.finalize(h, in)
	}
}

// RefSink claims a floating reference, or adds a reference if the
// instance is not floating.
func (r *Runtime) RefSink(h Handle) Handle {
	in := r.instance(h)
	if in == nil {
		return h
	}
	for {
		old := in.state.Load()
		if old&floatBit != 0 {
			if in.state.CompareAndSwap(old, old&^floatBit) {
				r.notify(Event{Type: EventSink, Handle: h, TypeName: in.typeName, Refs: int32(old &^ floatBit)})
				return h
			}
			continue
		}
		if in.state.CompareAndSwap(old, old+1) {
			r.notify(Event{Type: EventRef, Handle: h, TypeName: in.typeName, Refs: int32(old + 1)})
			return h
		}
	}
}

// IsFloating reports whether h holds an unclaimed reference.
func (r *Runtime) IsFloating(h Handle) bool {
	in := r.instance(h)
	return in != nil && in.state.Load()&floatBit != 0
}

// ForceFloating marks the instance's reference as unclaimed.
func (r *Runtime) ForceFloating(h Handle) {
	if in := r.instance(h); in != nil {
		in.state.Or(floatBit)
	}
}

// FloatIfSole turns the caller's reference into a floating one if it is
// the only outstanding reference. The check and the change are one atomic
// step, so a concurrent Ref either happens before (and the call returns
// false) or after (and sees a floating instance).
func (r *Runtime) FloatIfSole(h Handle) bool {
	in := r.instance(h)
	if in == nil {
		return false
	}
	return in.state.CompareAndSwap(1, 1|floatBit)
}

// RefCount returns the reference count, 0 for unknown handles.
func (r *Runtime) RefCount(h Handle) int32 {
	r.mu.Lock()
	in := r.objects[h]
	r.mu.Unlock()
	if in == nil {
		return 0
	}
	return in.refs()
}

// Flags returns the reference state flags of h.
func (r *Runtime) Flags(h Handle) bitflag.Set[ObjectFlag] {
	r.mu.Lock()
	in := r.objects[h]
	r.mu.Unlock()
	if in == nil {
		return bitflag.Of(FlagFinalized)
	}
	var s bitflag.Set[ObjectFlag]
	if in.state.Load()&floatBit != 0 {
		s = s.With(FlagFloating)
	}
	return s
}

// FormatFlags renders flags by name.
func FormatFlags(s bitflag.Set[ObjectFlag]) string {
	return s.Format(objectFlagNames)
}

// IsObject reports whether h is a live instance.
func (r *Runtime) IsObject(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.objects[h]
	return ok
}

// TypeName returns the type of a live instance.
func (r *Runtime) TypeName(h Handle) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if in, ok := r.objects[h]; ok {
		return in.typeName
	}
	return ""
}

// finalize disconnects all handlers, firing their destroy notifies, then
// frees the instance.
func (r *Runtime) finalize(h Handle, in *instance) {
	r.mu.Lock()
	handlers := in.handlers
	in.handlers = nil
	r.mu.Unlock()

	for _, hd := range handlers {
		hd.destroy()
	}

	r.mu.Lock()
	delete(r.objects, h)
	r.freeLocked(h)
	r.finalized++
	r.mu.Unlock()

	r.notify(Event{Type: EventFinalize, Handle: h, TypeName: in.typeName})
}
