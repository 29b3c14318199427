package foreign

import (
	"strconv"

	"github.com/wippyai/ffi-runtime/errors"
)

// TypeID identifies a registered boxed type. 0 is invalid.
type TypeID uint32

// BoxedSpec describes a boxed type at registration.
type BoxedSpec struct {
	// Copy duplicates an instance into a block from Runtime.Malloc or
	// Runtime.Memdup. nil means a byte copy of Size bytes.
	Copy func(h Handle) (Handle, error)

	// Free releases an instance's block and anything it points to.
	// nil means a plain free.
	Free func(h Handle)

	Name string
	Size uint32

	// RefCounted types copy by adding a reference and free by dropping one.
	RefCounted bool
}

type boxedType struct {
	spec BoxedSpec
	id   TypeID
}

type box struct {
	typeID TypeID
	refs   int32
}

// RegisterBoxed appends a boxed type to the runtime's type table. The
// table is append-only: ids stay valid for the runtime's lifetime.
func (r *Runtime) RegisterBoxed(spec BoxedSpec) (TypeID, error) {
	if spec.Name == "" {
		return 0, errors.InvalidInput(errors.PhaseRegistry, "boxed type name cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.boxedByName[spec.Name]; exists {
		return 0, errors.Registration(errors.PhaseRegistry, spec.Name,
			errors.InvalidInput(errors.PhaseRegistry, "boxed type already registered"))
	}
	id := TypeID(len(r.boxedTypes) + 1)
	r.boxedTypes = append(r.boxedTypes, boxedType{id: id, spec: spec})
	r.boxedByName[spec.Name] = id
	return id, nil
}

// RegisterRefBoxed registers a ref-counted boxed type of size bytes.
func (r *Runtime) RegisterRefBoxed(name string, size uint32) (TypeID, error) {
	return r.RegisterBoxed(BoxedSpec{Name: name, Size: size, RefCounted: true})
}

// BoxedType resolves a boxed type by name.
func (r *Runtime) BoxedType(name string) (TypeID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.boxedByName[name]
	if !ok {
		return 0, errors.MissingCapability(errors.PhaseRegistry, "boxed type", name)
	}
	return id, nil
}

// BoxedName returns the registered name of id.
func (r *Runtime) BoxedName(id TypeID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.boxedTypeLocked(id); ok {
		return t.spec.Name
	}
	return ""
}

func (r *Runtime) boxedTypeLocked(id TypeID) (boxedType, bool) {
	if id == 0 || int(id) > len(r.boxedTypes) {
		return boxedType{}, false
	}
	return r.boxedTypes[id-1], true
}

// BoxedNew allocates a zeroed instance of id.
func (r *Runtime) BoxedNew(id TypeID) (Handle, error) {
	r.mu.Lock()
	t, ok := r.boxedTypeLocked(id)
	if !ok {
		r.mu.Unlock()
		return 0, errors.NotFound(errors.PhaseRegistry, "boxed type id", strconv.FormatUint(uint64(id), 10))
	}
	h, err := r.allocLocked(t.spec.Size)
	if err != nil {
		r.mu.Unlock()
		return 0, err
	}
	r.boxes[h] = &box{typeID: id, refs: 1}
	r.mu.Unlock()

	r.notify(Event{Type: EventAlloc, Handle: h, TypeName: t.spec.Name, Refs: 1})
	return h, nil
}

// BoxedCopy duplicates h through id's copy function.
func (r *Runtime) BoxedCopy(id TypeID, h Handle) (Handle, error) {
	r.mu.Lock()
	t, ok := r.boxedTypeLocked(id)
	b := r.boxes[h]
	if !ok || b == nil || b.typeID != id {
		r.mu.Unlock()
		r.violation("boxed copy of %#x as type %d", uintptr(h), id)
		return 0, errors.TypeMismatch(errors.PhaseRegistry, nil, "", r.BoxedName(id))
	}
	if t.spec.RefCounted {
		b.refs++
		refs := b.refs
		r.mu.Unlock()
		r.notify(Event{Type: EventRef, Handle: h, TypeName: t.spec.Name, Refs: refs})
		return h, nil
	}
	r.mu.Unlock()

	var dup Handle
	var err error
	if t.spec.Copy != nil {
		dup, err = t.spec.Copy(h)
	} else {
		dup, err = r.Memdup(h, t.spec.Size)
	}
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.boxes[dup] = &box{typeID: id, refs: 1}
	r.mu.Unlock()
	r.notify(Event{Type: EventAlloc, Handle: dup, TypeName: t.spec.Name, Refs: 1})
	return dup, nil
}

// BoxedFree releases h through id's free function.
func (r *Runtime) BoxedFree(id TypeID, h Handle) {
	if h == 0 {
		return
	}
	r.mu.Lock()
	t, ok := r.boxedTypeLocked(id)
	b := r.boxes[h]
	if !ok || b == nil || b.typeID != id {
		r.mu.Unlock()
		r.violation("boxed free of %#x as type %d", uintptr(h), id)
		return
	}
	b.refs--
	refs := b.refs
	if refs > 0 {
		r.mu.Unlock()
		r.notify(Event{Type: EventUnref, Handle: h, TypeName: t.spec.Name, Refs: refs})
		return
	}
	delete(r.boxes, h)
	r.mu.Unlock()

	if t.spec.Free != nil {
		t.spec.Free(h)
	} else {
		r.Free(h)
	}
	r.notify(Event{Type: EventFinalize, Handle: h, TypeName: t.spec.Name})
}

// BoxedRefCount returns the reference count of a boxed instance, 0 if it
// is not live. Non ref-counted instances always report 1.
func (r *Runtime) BoxedRefCount(h Handle) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.boxes[h]; ok {
		return b.refs
	}
	return 0
}

// IsBoxed reports whether h is a live boxed instance.
func (r *Runtime) IsBoxed(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.boxes[h]
	return ok
}
