// Package ownership defines the vocabulary every cross-boundary operation is
// annotated with: who owns a handle after a call, which way an argument
// flows, where an array's length comes from, and how long a callback lives.
//
// Tags are supplied by the code generator per operation and are never
// inferred at runtime.
package ownership

import "fmt"

// Tag declares who owns a handle after crossing the boundary.
type Tag uint8

const (
	// None: the caller retains ownership. The callee must not free and may
	// take a temporary reference.
	None Tag = iota
	// Full: the callee takes exclusive ownership and must free exactly once.
	Full
	// Container: a collection's shell ownership transfers, its elements'
	// ownership does not.
	Container
)

func (t Tag) String() string {
	switch t {
	case None:
		return "none"
	case Full:
		return "full"
	case Container:
		return "container"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// ParseTag parses the generator spelling of a tag ("none", "full", "container").
func ParseTag(s string) (Tag, error) {
	switch s {
	case "none", "":
		return None, nil
	case "full", "everything":
		return Full, nil
	case "container":
		return Container, nil
	}
	return None, fmt.Errorf("unknown ownership tag %q", s)
}

// TransfersShell reports whether the tag moves ownership of the handle
// itself (or a collection's shell).
func (t Tag) TransfersShell() bool { return t == Full || t == Container }

// TransfersElements reports whether the tag moves ownership of a
// collection's elements.
func (t Tag) TransfersElements() bool { return t == Full }

// Direction is the flow of an argument across the boundary.
type Direction uint8

const (
	In Direction = iota
	Out
	InOut
	Return
)

func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	case InOut:
		return "inout"
	case Return:
		return "return"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// ParseDirection parses "in", "out", "inout" or "return".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "in", "":
		return In, nil
	case "out":
		return Out, nil
	case "inout":
		return InOut, nil
	case "return":
		return Return, nil
	}
	return In, fmt.Errorf("unknown direction %q", s)
}

// LengthKind says where an array argument's element count comes from.
type LengthKind uint8

const (
	// LengthNone: not an array.
	LengthNone LengthKind = iota
	// LengthParam: an explicit length parameter.
	LengthParam
	// LengthZeroTerminated: a null sentinel ends the array.
	LengthZeroTerminated
	// LengthFixed: a fixed size known to the generator.
	LengthFixed
)

func (l LengthKind) String() string {
	switch l {
	case LengthNone:
		return "none"
	case LengthParam:
		return "param"
	case LengthZeroTerminated:
		return "zero-terminated"
	case LengthFixed:
		return "fixed"
	default:
		return fmt.Sprintf("LengthKind(%d)", uint8(l))
	}
}

// Scope is the lifetime discipline of a callback handed to the foreign side.
type Scope uint8

const (
	// ScopeCall: valid only for the duration of the foreign call.
	ScopeCall Scope = iota
	// ScopeAsync: invoked at most once, then destroyed.
	ScopeAsync
	// ScopeNotified: invoked any number of times until a destroy notify fires.
	ScopeNotified
)

func (s Scope) String() string {
	switch s {
	case ScopeCall:
		return "call"
	case ScopeAsync:
		return "async"
	case ScopeNotified:
		return "notified"
	default:
		return fmt.Sprintf("Scope(%d)", uint8(s))
	}
}

// ParseScope parses "call", "async" or "notified".
func ParseScope(s string) (Scope, error) {
	switch s {
	case "call", "":
		return ScopeCall, nil
	case "async":
		return ScopeAsync, nil
	case "notified":
		return ScopeNotified, nil
	}
	return ScopeCall, fmt.Errorf("unknown callback scope %q", s)
}
