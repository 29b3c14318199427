package value

import (
	"fmt"
	"math"

	ffiruntime "github.com/wippyai/ffi-runtime"
	"github.com/wippyai/ffi-runtime/bitflag"
	"github.com/wippyai/ffi-runtime/ownership"
	"github.com/wippyai/ffi-runtime/wrap"
)

// Handle is an opaque foreign address.
type Handle = ffiruntime.Handle

// Slot is the raw storage of a value: a machine word for numbers and
// handles, a string for strings.
type Slot struct {
	Str  string
	Bits uint64
}

// Storage copies and releases the slots of one type.
type Storage interface {
	// Copy duplicates an owned slot.
	Copy(s Slot) (Slot, error)
	// Free releases an owned slot.
	Free(s Slot)
}

// Trait maps the host type T to a value type. In produces an owned slot
// from a host value, leaving the host value untouched. Out produces a host
// value from a slot without consuming the slot; for handle types the
// result owns its own reference.
type Trait[T any] interface {
	Storage
	Type() Type
	In(v T) (Slot, error)
	Out(s Slot) (T, error)
}

// plain is the storage of types without ownership.
type plain struct{}

func (plain) Copy(s Slot) (Slot, error) { return s, nil }
func (plain) Free(Slot) {}

type boolTrait struct{ plain }

func (boolTrait) Type() Type { return Type{Kind: KindBool} }
func (boolTrait) In(v bool) (Slot, error) {
	if v {
		return Slot{Bits: 1}, nil
	}
	return Slot{}, nil
}
func (boolTrait) Out(s Slot) (bool, error) { return s.Bits != 0, nil }

type intTrait struct{ plain }

func (intTrait) Type() Type { return Type{Kind: KindInt} }
func (intTrait) In(v int32) (Slot, error) { return Slot{Bits: uint64(int64(v))}, nil }
func (intTrait) Out(s Slot) (int32, error) { return int32(int64(s.Bits)), nil }

type int64Trait struct{ plain }

func (int64Trait) Type() Type { return Type{Kind: KindInt64} }
func (int64Trait) In(v int64) (Slot, error) { return Slot{Bits: uint64(v)}, nil }
func (int64Trait) Out(s Slot) (int64, error) { return int64(s.Bits), nil }

type uintTrait struct{ plain }

func (uintTrait) Type() Type { return Type{Kind: KindUint} }
func (uintTrait) In(v uint32) (Slot, error) { return Slot{Bits: uint64(v)}, nil }
func (uintTrait) Out(s Slot) (uint32, error) { return uint32(s.Bits), nil }

type uint64Trait struct{ plain }

func (uint64Trait) Type() Type { return Type{Kind: KindUint64} }
func (uint64Trait) In(v uint64) (Slot, error) { return Slot{Bits: v}, nil }
func (uint64Trait) Out(s Slot) (uint64, error) { return s.Bits, nil }

type floatTrait struct{ plain }

func (floatTrait) Type() Type { return Type{Kind: KindFloat} }
func (floatTrait) In(v float32) (Slot, error) {
	return Slot{Bits: math.Float64bits(float64(v))}, nil
}
func (floatTrait) Out(s Slot) (float32, error) { return float32(math.Float64frombits(s.Bits)), nil }

type doubleTrait struct{ plain }

func (doubleTrait) Type() Type { return Type{Kind: KindDouble} }
func (doubleTrait) In(v float64) (Slot, error) { return Slot{Bits: math.Float64bits(v)}, nil }
func (doubleTrait) Out(s Slot) (float64, error) { return math.Float64frombits(s.Bits), nil }

type stringTrait struct{ plain }

func (stringTrait) Type() Type { return Type{Kind: KindString} }
func (stringTrait) In(v string) (Slot, error) { return Slot{Str: v}, nil }
func (stringTrait) Out(s Slot) (string, error) { return s.Str, nil }

type pointerTrait struct{ plain }

func (pointerTrait) Type() Type { return Type{Kind: KindPointer} }
func (pointerTrait) In(v Handle) (Slot, error) { return Slot{Bits: uint64(v)}, nil }
func (pointerTrait) Out(s Slot) (Handle, error) { return Handle(s.Bits), nil }

// Predefined traits for fundamental types.
var (
	Bool    Trait[bool]    = boolTrait{}
	Int     Trait[int32]   = intTrait{}
	Int64   Trait[int64]   = int64Trait{}
	Uint    Trait[uint32]  = uintTrait{}
	Uint64  Trait[uint64]  = uint64Trait{}
	Float   Trait[float32] = floatTrait{}
	Double  Trait[float64] = doubleTrait{}
	String  Trait[string]  = stringTrait{}
	Pointer Trait[Handle]  = pointerTrait{}
)

type objectTrait[C wrap.RefClass] struct{ name string }

// Object returns the trait of instances of the named class. A stored
// instance holds its own reference.
func Object[C wrap.RefClass](name string) Trait[wrap.Object[C]] {
	return objectTrait[C]{name: name}
}

func (t objectTrait[C]) Type() Type { return Type{Kind: KindObject, Name: t.name} }

func (objectTrait[C]) In(o wrap.Object[C]) (Slot, error) {
	return Slot{Bits: uint64(o.Unwrap(ownership.Full))}, nil
}

func (objectTrait[C]) Out(s Slot) (wrap.Object[C], error) {
	return wrap.Wrap[C](Handle(s.Bits), ownership.None), nil
}

func (objectTrait[C]) Copy(s Slot) (Slot, error) {
	if s.Bits != 0 {
		var c C
		c.Ref(Handle(s.Bits))
	}
	return s, nil
}

func (objectTrait[C]) Free(s Slot) {
	if s.Bits != 0 {
		var c C
		c.Unref(Handle(s.Bits))
	}
}

type boxedTrait[C wrap.BoxedClass] struct{ name string }

// BoxedOf returns the trait of the named boxed type. A stored value is a
// private copy.
func BoxedOf[C wrap.BoxedClass](name string) Trait[wrap.Boxed[C]] {
	return boxedTrait[C]{name: name}
}

func (t boxedTrait[C]) Type() Type { return Type{Kind: KindBoxed, Name: t.name} }

func (t boxedTrait[C]) In(b wrap.Boxed[C]) (Slot, error) {
	return t.Copy(Slot{Bits: uint64(b.Handle())})
}

func (boxedTrait[C]) Out(s Slot) (wrap.Boxed[C], error) {
	return wrap.WrapBoxed[C](Handle(s.Bits), ownership.None)
}

func (boxedTrait[C]) Copy(s Slot) (Slot, error) {
	if s.Bits == 0 {
		return s, nil
	}
	var c C
	h, err := c.Copy(Handle(s.Bits))
	if err != nil {
		return Slot{}, err
	}
	return Slot{Bits: uint64(h)}, nil
}

func (boxedTrait[C]) Free(s Slot) {
	if s.Bits != 0 {
		var c C
		c.Free(Handle(s.Bits))
	}
}

// Integer is the underlying type of an enumeration.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

type enumTrait[E Integer] struct {
	plain
	name string
}

// Enum returns the trait of an enumeration. The type name defaults to the
// Go type name of E.
func Enum[E Integer](name string) Trait[E] {
	if name == "" {
		var e E
		name = fmt.Sprintf("%T", e)
	}
	return enumTrait[E]{name: name}
}

func (t enumTrait[E]) Type() Type { return Type{Kind: KindEnum, Name: t.name} }
func (enumTrait[E]) In(v E) (Slot, error) { return Slot{Bits: uint64(int64(v))}, nil }
func (enumTrait[E]) Out(s Slot) (E, error) {
	return E(int64(s.Bits)), nil
}

type flagsTrait[E bitflag.Flag] struct {
	plain
	name string
}

// FlagsOf returns the trait of a flags type. The type name defaults to
// the Go type name of E.
func FlagsOf[E bitflag.Flag](name string) Trait[bitflag.Set[E]] {
	if name == "" {
		var e E
		name = fmt.Sprintf("%T", e)
	}
	return flagsTrait[E]{name: name}
}

func (t flagsTrait[E]) Type() Type { return Type{Kind: KindFlags, Name: t.name} }
func (flagsTrait[E]) In(v bitflag.Set[E]) (Slot, error) {
	return Slot{Bits: uint64(v.Bits())}, nil
}
func (flagsTrait[E]) Out(s Slot) (bitflag.Set[E], error) {
	return bitflag.FromBits(E(s.Bits)), nil
}
