package bind

import (
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/ownership"
)

// FromWIT derives a signature from WIT parameter types and an optional
// result type.
//
// own<T> transfers (Full) and borrow<T> lends (None). Other parameters are
// lent; results are always received with Full ownership. A list becomes an
// array followed by a synthesized n_<name> length argument, a string a
// zero-terminated string, and option<T> a nullable T. A result<T, E>
// result makes the operation throwing with T as its return value.
func FromWIT(name string, params []wit.Param, result wit.Type) (*Signature, error) {
	s := &Signature{Name: name}
	for _, p := range params {
		a, err := s.fromWIT(p.Name, p.Type, ownership.In)
		if err != nil {
			return nil, err
		}
		s.Args = append(s.Args, a)
		if a.Length == ownership.LengthParam {
			s.Args[len(s.Args)-1].LengthIndex = len(s.Args)
			s.Args = append(s.Args, In("n_"+p.Name, KindPlain, ownership.None))
		}
	}
	if result != nil {
		if td, ok := result.(*wit.TypeDef); ok {
			if r, ok := td.Kind.(*wit.Result); ok {
				s.Throws = true
				result = r.OK
			}
		}
	}
	if result != nil {
		a, err := s.fromWIT("return", result, ownership.Return)
		if err != nil {
			return nil, err
		}
		if a.Length == ownership.LengthParam {
			a.LengthIndex = len(s.Args)
			s.Args = append(s.Args, Out("n_return", KindPlain, ownership.None))
		}
		s.Return = &a
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Signature) fromWIT(name string, t wit.Type, dir ownership.Direction) (Arg, error) {
	a := In(name, KindPlain, ownership.None)
	a.Direction = dir
	received := dir != ownership.In
	lent := func() ownership.Tag {
		if received {
			return ownership.Full
		}
		return ownership.None
	}

	switch t := t.(type) {
	case wit.Bool, wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32, wit.U64, wit.S64, wit.F32, wit.F64, wit.Char:
		return a, nil
	case wit.String:
		a.Kind, a.Tag, a.Length = KindString, lent(), ownership.LengthZeroTerminated
		return a, nil
	case *wit.TypeDef:
		switch kind := t.Kind.(type) {
		case *wit.Enum, *wit.Flags:
			return a, nil
		case *wit.Record, *wit.Tuple, *wit.Variant:
			a.Kind, a.Tag = KindBoxed, lent()
			return a, nil
		case *wit.List:
			a.Kind, a.Tag, a.Length = KindArray, lent(), ownership.LengthParam
			if !received && s.ownsElements(kind.Type) {
				a.Tag = ownership.Full
			}
			return a, nil
		case *wit.Option:
			inner, err := s.fromWIT(name, kind.Type, dir)
			if err != nil {
				return Arg{}, err
			}
			inner.Nullable = true
			return inner, nil
		case *wit.Own, *wit.Resource:
			a.Kind, a.Tag = KindObject, ownership.Full
			return a, nil
		case *wit.Borrow:
			if received {
				return Arg{}, s.invalid(name, "borrowed handle as a result")
			}
			a.Kind = KindObject
			return a, nil
		case wit.Type:
			return s.fromWIT(name, kind, dir)
		default:
			return Arg{}, errors.New(errors.PhaseBind, errors.KindInvalidInput).
				Path(s.Name, name).
				Detail("unsupported WIT type: %T", kind).
				Build()
		}
	}
	return Arg{}, errors.New(errors.PhaseBind, errors.KindInvalidInput).
		Path(s.Name, name).
		Detail("unsupported WIT type: %T", t).
		Build()
}

func (s *Signature) ownsElements(t wit.Type) bool {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return false
	}
	switch td.Kind.(type) {
	case *wit.Own, *wit.Resource:
		return true
	}
	return false
}
