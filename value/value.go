package value

import (
	"github.com/wippyai/ffi-runtime/errors"
)

// Value is a type-erased value. The zero Value is untyped. A typed Value
// owns whatever its slot refers to.
type Value struct {
	store Storage
	slot  Slot
	typ   Type
}

// Type returns the type tag, Invalid for an untyped value.
func (v *Value) Type() Type { return v.typ }

// Holds reports whether v is typed as t.
func (v *Value) Holds(t Type) bool { return v.typ.IsValid() && v.typ == t }

// Init types an untyped value without storing anything; Get then returns
// the type's zero value. Initializing a typed value is a contract
// violation.
func Init[T any](v *Value, tr Trait[T]) {
	if v.typ.IsValid() {
		errors.Violation(errors.PhaseValue, "init of a value already holding %s", v.typ)
	}
	v.typ, v.store, v.slot = tr.Type(), tr, Slot{}
}

// Set stores x, typing an untyped value first. The previous content is
// released. Setting a value typed differently is a type mismatch.
func Set[T any](v *Value, tr Trait[T], x T) error {
	t := tr.Type()
	if !v.typ.IsValid() {
		Init(v, tr)
	} else if v.typ != t {
		return errors.TypeMismatch(errors.PhaseValue, nil, t.String(), v.typ.String())
	}
	slot, err := tr.In(x)
	if err != nil {
		return err
	}
	v.store.Free(v.slot)
	v.slot = slot
	return nil
}

// Get reads the stored value. A value typed differently than tr is a type
// mismatch; use Transform for conversions.
func Get[T any](v *Value, tr Trait[T]) (T, error) {
	var zero T
	if !v.typ.IsValid() {
		return zero, errors.NotInitialized(errors.PhaseValue, "value")
	}
	if t := tr.Type(); v.typ != t {
		return zero, errors.TypeMismatch(errors.PhaseValue, nil, t.String(), v.typ.String())
	}
	return tr.Out(v.slot)
}

// Transform converts the stored value to tr's type through table, or the
// process-wide table if table is nil.
func Transform[T any](v *Value, tr Trait[T], table *TransformTable) (T, error) {
	var dst Value
	Init(&dst, tr)
	defer dst.Unset()
	if err := v.TransformTo(&dst, table); err != nil {
		var zero T
		return zero, err
	}
	return Get(&dst, tr)
}

// TransformTo converts v into the typed value dst, replacing its content.
func (v *Value) TransformTo(dst *Value, table *TransformTable) error {
	if !v.typ.IsValid() {
		return errors.NotInitialized(errors.PhaseValue, "source value")
	}
	if !dst.typ.IsValid() {
		return errors.NotInitialized(errors.PhaseValue, "destination value")
	}
	var slot Slot
	var err error
	if v.typ == dst.typ {
		slot, err = v.store.Copy(v.slot)
	} else {
		if table == nil {
			table = Transforms()
		}
		fn, ok := table.Lookup(v.typ, dst.typ)
		if !ok {
			return errors.New(errors.PhaseValue, errors.KindTypeMismatch).
				GoType(dst.typ.String()).
				ForeignType(v.typ.String()).
				Detail("no conversion from %s to %s", v.typ, dst.typ).
				Build()
		}
		slot, err = fn(v.slot)
	}
	if err != nil {
		return err
	}
	dst.store.Free(dst.slot)
	dst.slot = slot
	return nil
}

// Copy returns an independent value of the same type and content.
func (v *Value) Copy() (Value, error) {
	if !v.typ.IsValid() {
		return Value{}, nil
	}
	slot, err := v.store.Copy(v.slot)
	if err != nil {
		return Value{}, err
	}
	return Value{store: v.store, slot: slot, typ: v.typ}, nil
}

// Reset releases the content and leaves the type's zero value.
func (v *Value) Reset() {
	if v.store != nil {
		v.store.Free(v.slot)
	}
	v.slot = Slot{}
}

// Unset releases the content and makes v untyped.
func (v *Value) Unset() {
	v.Reset()
	v.store, v.typ = nil, Invalid
}
