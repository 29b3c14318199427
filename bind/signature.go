package bind

import (
	"strings"

	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/ownership"
)

// Signature is the boundary contract of one foreign operation.
type Signature struct {
	Return *Arg
	Name   string
	Args   []Arg
	// Throws marks operations reporting failure through an error slot.
	Throws bool
	// Policy decides how failures of the operation reach the caller. It is
	// chosen when the signature is bound, not per call.
	Policy errors.Policy
}

// Surface applies the signature's error policy to err.
func (s *Signature) Surface(err error) error {
	return s.Policy.Apply(err)
}

func (s *Signature) invalid(arg string, format string, args ...any) error {
	path := []string{s.Name}
	if arg != "" {
		path = append(path, arg)
	}
	return errors.New(errors.PhaseBind, errors.KindInvalidInput).
		Path(path...).
		Detail(format, args...).
		Build()
}

// Validate checks each argument and the references between them. It
// returns the first problem found.
func (s *Signature) Validate() error {
	if s.Name == "" {
		return s.invalid("", "signature without a name")
	}
	seen := make(map[string]bool, len(s.Args))
	destroyRefs := make(map[int]int)
	for i, a := range s.Args {
		if a.Name == "" {
			return s.invalid("", "argument %d has no name", i)
		}
		if seen[a.Name] {
			return s.invalid(a.Name, "duplicate argument name")
		}
		seen[a.Name] = true
		if a.Direction == ownership.Return {
			return s.invalid(a.Name, "return direction on an argument")
		}
		if err := s.checkArg(i, a); err != nil {
			return err
		}
		if a.Kind == KindCallback && a.Scope == ownership.ScopeNotified {
			destroyRefs[a.DestroyIndex]++
		}
	}
	for i, a := range s.Args {
		if a.Kind == KindDestroy && destroyRefs[i] != 1 {
			return s.invalid(a.Name, "destroy notify paired with %d callbacks", destroyRefs[i])
		}
	}
	if s.Return != nil {
		if s.Return.Direction != ownership.Return {
			return s.invalid("return", "return value with direction %s", s.Return.Direction)
		}
		switch s.Return.Kind {
		case KindCallback, KindDestroy:
			return s.invalid("return", "%s return value", s.Return.Kind)
		}
		if err := s.checkArg(NoIndex, *s.Return); err != nil {
			return err
		}
	}
	return nil
}

func (s *Signature) checkArg(i int, a Arg) error {
	if a.Tag > ownership.Container {
		return s.invalid(a.Name, "unknown ownership tag %s", a.Tag)
	}
	if a.Tag == ownership.Container && a.Kind != KindArray {
		return s.invalid(a.Name, "container transfer of a %s", a.Kind)
	}

	switch a.Kind {
	case KindArray:
		switch a.Length {
		case ownership.LengthNone:
			return s.invalid(a.Name, "array without a length source")
		case ownership.LengthParam:
			if a.LengthIndex == i || !s.inRange(a.LengthIndex) {
				return s.invalid(a.Name, "length argument #%d out of range", a.LengthIndex)
			}
			if l := s.Args[a.LengthIndex]; l.Kind != KindPlain {
				return s.invalid(a.Name, "length argument %s is a %s", l.Name, l.Kind)
			}
		case ownership.LengthFixed:
			if a.FixedSize <= 0 {
				return s.invalid(a.Name, "fixed size %d", a.FixedSize)
			}
		}
	case KindString:
		if a.Length != ownership.LengthNone && a.Length != ownership.LengthZeroTerminated {
			return s.invalid(a.Name, "string with %s length", a.Length)
		}
	default:
		if a.Length != ownership.LengthNone {
			return s.invalid(a.Name, "%s length on a %s", a.Length, a.Kind)
		}
	}

	if a.Kind == KindCallback {
		if a.Direction != ownership.In {
			return s.invalid(a.Name, "callback with direction %s", a.Direction)
		}
		if a.Scope == ownership.ScopeNotified {
			if a.DestroyIndex == i || !s.inRange(a.DestroyIndex) {
				return s.invalid(a.Name, "destroy argument #%d out of range", a.DestroyIndex)
			}
			if d := s.Args[a.DestroyIndex]; d.Kind != KindDestroy {
				return s.invalid(a.Name, "destroy argument %s is a %s", d.Name, d.Kind)
			}
		} else if a.DestroyIndex != NoIndex {
			return s.invalid(a.Name, "%s callback with a destroy notify", a.Scope)
		}
	}
	return nil
}

func (s *Signature) inRange(i int) bool { return i >= 0 && i < len(s.Args) }

func (s *Signature) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteByte('(')
	for i, a := range s.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	if s.Return != nil {
		b.WriteString(" -> ")
		b.WriteString(s.Return.Kind.String())
		b.WriteByte(' ')
		b.WriteString(s.Return.Tag.String())
	}
	if s.Throws {
		b.WriteString(" throws")
	}
	return b.String()
}
