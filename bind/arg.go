// Package bind describes the boundary contract of a foreign operation:
// for every argument its ownership tag, direction, length source and, for
// callbacks, lifetime scope and destroy notify position.
//
// Signatures are normally produced by a generator. Validate checks the
// cross-argument references a generator can get wrong; FromWIT derives a
// signature from WIT parameter types.
package bind

import (
	"fmt"

	"github.com/wippyai/ffi-runtime/ownership"
)

// Kind is the handle category of an argument.
type Kind uint8

const (
	// KindPlain is a trivially copyable value: numbers, enums, flags and
	// array lengths.
	KindPlain Kind = iota
	// KindObject is a ref-counted instance.
	KindObject
	// KindBoxed is a value duplicated through copy and free functions.
	KindBoxed
	// KindString is a zero-terminated string.
	KindString
	// KindArray is a collection of elements.
	KindArray
	// KindCallback is a callback trampoline with its user data.
	KindCallback
	// KindDestroy is the destroy notify paired with a notified callback.
	KindDestroy
)

var kindNames = [...]string{
	KindPlain:    "plain",
	KindObject:   "object",
	KindBoxed:    "boxed",
	KindString:   "string",
	KindArray:    "array",
	KindCallback: "callback",
	KindDestroy:  "destroy",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind parses a kind name as printed by Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return KindPlain, fmt.Errorf("unknown argument kind %q", s)
}

// NoIndex marks an unused argument reference.
const NoIndex = -1

// Arg is one argument, or the return value, of a foreign operation.
type Arg struct {
	Name      string
	Kind      Kind
	Tag       ownership.Tag
	Direction ownership.Direction
	// Length says where an array's element count comes from.
	Length ownership.LengthKind
	// LengthIndex is the argument carrying the count for LengthParam.
	LengthIndex int
	// FixedSize is the element count for LengthFixed.
	FixedSize int
	// Scope is the lifetime of a callback.
	Scope ownership.Scope
	// DestroyIndex is the destroy notify argument of a notified callback.
	DestroyIndex int
	// Nullable allows a zero handle.
	Nullable bool
}

// In returns an input argument.
func In(name string, kind Kind, tag ownership.Tag) Arg {
	return Arg{Name: name, Kind: kind, Tag: tag, Direction: ownership.In, LengthIndex: NoIndex, DestroyIndex: NoIndex}
}

// Out returns an output argument; tag describes what the caller receives.
func Out(name string, kind Kind, tag ownership.Tag) Arg {
	a := In(name, kind, tag)
	a.Direction = ownership.Out
	return a
}

// Return returns the return value description.
func Return(kind Kind, tag ownership.Tag) *Arg {
	a := In("return", kind, tag)
	a.Direction = ownership.Return
	return &a
}

// Array returns an input array whose length is passed in argument
// lengthIndex.
func Array(name string, tag ownership.Tag, lengthIndex int) Arg {
	a := In(name, KindArray, tag)
	a.Length, a.LengthIndex = ownership.LengthParam, lengthIndex
	return a
}

// Callback returns a callback argument. A notified callback names its
// destroy notify argument; pass NoIndex for other scopes.
func Callback(name string, scope ownership.Scope, destroyIndex int) Arg {
	a := In(name, KindCallback, ownership.None)
	a.Scope, a.DestroyIndex = scope, destroyIndex
	return a
}

// Destroy returns a destroy notify argument.
func Destroy(name string) Arg {
	return In(name, KindDestroy, ownership.None)
}

// Transfers reports whether the argument moves ownership of the handle
// itself.
func (a Arg) Transfers() bool { return a.Tag.TransfersShell() }

func (a Arg) String() string {
	s := fmt.Sprintf("%s %s %s %s", a.Direction, a.Kind, a.Name, a.Tag)
	switch a.Length {
	case ownership.LengthParam:
		s += fmt.Sprintf(" len=#%d", a.LengthIndex)
	case ownership.LengthFixed:
		s += fmt.Sprintf(" len=%d", a.FixedSize)
	case ownership.LengthZeroTerminated:
		s += " zero-terminated"
	}
	if a.Kind == KindCallback {
		s += " scope=" + a.Scope.String()
	}
	return s
}
