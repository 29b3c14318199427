// Package bitflag provides a single generic bitflag set over enum types, so
// flag enums get the bitwise operator set without per-type boilerplate.
package bitflag

import (
	"math/bits"
	"strconv"
	"strings"
)

// Flag is any unsigned integer enum usable as a bit flag.
type Flag interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Set is a set of flags of enum type E.
type Set[E Flag] struct {
	bits E
}

// Of returns a set holding all given flags.
func Of[E Flag](flags ...E) Set[E] {
	var s Set[E]
	for _, f := range flags {
		s.bits |= f
	}
	return s
}

// FromBits returns a set with exactly the given raw bits.
func FromBits[E Flag](b E) Set[E] { return Set[E]{bits: b} }

// Bits returns the raw value.
func (s Set[E]) Bits() E { return s.bits }

// Has reports whether all bits of f are set.
func (s Set[E]) Has(f E) bool { return s.bits&f == f }

// Any reports whether any bit of f is set.
func (s Set[E]) Any(f E) bool { return s.bits&f != 0 }

// IsZero reports whether no bits are set.
func (s Set[E]) IsZero() bool { return s.bits == 0 }

// With returns s with f set.
func (s Set[E]) With(f E) Set[E] { return Set[E]{bits: s.bits | f} }

// Without returns s with f cleared.
func (s Set[E]) Without(f E) Set[E] { return Set[E]{bits: s.bits &^ f} }

// Toggle returns s with f flipped.
func (s Set[E]) Toggle(f E) Set[E] { return Set[E]{bits: s.bits ^ f} }

func (s Set[E]) Or(o Set[E]) Set[E]  { return Set[E]{bits: s.bits | o.bits} }
func (s Set[E]) And(o Set[E]) Set[E] { return Set[E]{bits: s.bits & o.bits} }
func (s Set[E]) Xor(o Set[E]) Set[E] { return Set[E]{bits: s.bits ^ o.bits} }

// Not returns the complement of s restricted to mask.
func (s Set[E]) Not(mask E) Set[E] { return Set[E]{bits: ^s.bits & mask} }

// Len returns the number of set bits.
func (s Set[E]) Len() int { return bits.OnesCount64(uint64(s.bits)) }

// Format renders the set as names joined by "|", using names for known
// single-bit flags and hex for the remainder.
func (s Set[E]) Format(names map[E]string) string {
	if s.bits == 0 {
		return "0"
	}
	var parts []string
	rest := s.bits
	for i := 0; i < 64 && rest != 0; i++ {
		f := E(1) << i
		if rest&f == 0 {
			continue
		}
		if n, ok := names[f]; ok {
			parts = append(parts, n)
			rest &^= f
		}
	}
	if rest != 0 {
		parts = append(parts, "0x"+strconv.FormatUint(uint64(rest), 16))
	}
	return strings.Join(parts, "|")
}
