package value

import "fmt"

// Kind is the fundamental category of a value type.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindInt64
	KindUint
	KindUint64
	KindFloat
	KindDouble
	KindString
	KindPointer
	KindObject
	KindBoxed
	KindEnum
	KindFlags
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindBool:    "bool",
	KindInt:     "int",
	KindInt64:   "int64",
	KindUint:    "uint",
	KindUint64:  "uint64",
	KindFloat:   "float",
	KindDouble:  "double",
	KindString:  "string",
	KindPointer: "pointer",
	KindObject:  "object",
	KindBoxed:   "boxed",
	KindEnum:    "enum",
	KindFlags:   "flags",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// numeric reports whether values of k are stored as a number.
func (k Kind) numeric() bool {
	switch k {
	case KindBool, KindInt, KindInt64, KindUint, KindUint64, KindFloat, KindDouble, KindEnum, KindFlags:
		return true
	}
	return false
}

// Type is the runtime type tag of a value. Fundamental types have no
// name; object, boxed, enum and flags types are told apart by name.
type Type struct {
	Name string
	Kind Kind
}

// Invalid is the type of an uninitialized Value.
var Invalid = Type{}

func (t Type) String() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Kind.String()
}

// IsValid reports whether t names a type.
func (t Type) IsValid() bool { return t.Kind != KindInvalid }
