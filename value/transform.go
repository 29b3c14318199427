package value

import (
	"math"
	"strconv"
	"sync"
)

// TransformFunc converts a slot of one type into an owned slot of
// another.
type TransformFunc func(src Slot) (Slot, error)

type kindPair struct{ src, dst Kind }

type typePair struct{ src, dst Type }

// TransformTable holds the conversions available to Transform. A
// conversion registered for a pair of named types takes precedence over
// one registered for their kinds.
type TransformTable struct {
	kinds map[kindPair]TransformFunc
	types map[typePair]TransformFunc
	mu    sync.RWMutex
}

// NewTransformTable returns an empty table.
func NewTransformTable() *TransformTable {
	return &TransformTable{
		kinds: make(map[kindPair]TransformFunc),
		types: make(map[typePair]TransformFunc),
	}
}

// DefaultTransformTable returns a table with the numeric, boolean and
// string conversions registered: every numeric kind converts to every
// other (C cast semantics, bool as 0 or 1) and to string.
func DefaultTransformTable() *TransformTable {
	t := NewTransformTable()
	numeric := []Kind{KindBool, KindInt, KindInt64, KindUint, KindUint64, KindFloat, KindDouble, KindEnum, KindFlags}
	for _, src := range numeric {
		for _, dst := range numeric {
			if src != dst {
				t.RegisterKinds(src, dst, numericTransform(src, dst))
			}
		}
		t.RegisterKinds(src, KindString, stringTransform(src))
	}
	return t
}

var defaultTransforms = sync.OnceValue(DefaultTransformTable)

// Transforms returns the process-wide table used when no table is given.
// It is populated on first use and only ever grows.
func Transforms() *TransformTable { return defaultTransforms() }

// RegisterKinds adds a conversion between two kinds.
func (t *TransformTable) RegisterKinds(src, dst Kind, fn TransformFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.kinds[kindPair{src, dst}] = fn
}

// Register adds a conversion between two types.
func (t *TransformTable) Register(src, dst Type, fn TransformFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.types[typePair{src, dst}] = fn
}

// Lookup finds the conversion from src to dst.
func (t *TransformTable) Lookup(src, dst Type) (TransformFunc, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if fn, ok := t.types[typePair{src, dst}]; ok {
		return fn, true
	}
	fn, ok := t.kinds[kindPair{src.Kind, dst.Kind}]
	return fn, ok
}

// CanTransform reports whether a value of type src converts to dst.
func (t *TransformTable) CanTransform(src, dst Type) bool {
	if src == dst {
		return true
	}
	_, ok := t.Lookup(src, dst)
	return ok
}

func isFloat(k Kind) bool { return k == KindFloat || k == KindDouble }

func isUnsigned(k Kind) bool {
	return k == KindBool || k == KindUint || k == KindUint64 || k == KindFlags
}

func asInt(k Kind, s Slot) int64 {
	if isFloat(k) {
		return int64(math.Float64frombits(s.Bits))
	}
	return int64(s.Bits)
}

func asFloat(k Kind, s Slot) float64 {
	switch {
	case isFloat(k):
		return math.Float64frombits(s.Bits)
	case isUnsigned(k):
		return float64(s.Bits)
	default:
		return float64(int64(s.Bits))
	}
}

func numericTransform(src, dst Kind) TransformFunc {
	return func(s Slot) (Slot, error) {
		switch dst {
		case KindBool:
			if isFloat(src) {
				return boolSlot(math.Float64frombits(s.Bits) != 0), nil
			}
			return boolSlot(s.Bits != 0), nil
		case KindInt:
			return Slot{Bits: uint64(int64(int32(asInt(src, s))))}, nil
		case KindUint:
			return Slot{Bits: uint64(uint32(asInt(src, s)))}, nil
		case KindFloat:
			return Slot{Bits: math.Float64bits(float64(float32(asFloat(src, s))))}, nil
		case KindDouble:
			return Slot{Bits: math.Float64bits(asFloat(src, s))}, nil
		default:
			return Slot{Bits: uint64(asInt(src, s))}, nil
		}
	}
}

func boolSlot(b bool) Slot {
	if b {
		return Slot{Bits: 1}
	}
	return Slot{}
}

func stringTransform(src Kind) TransformFunc {
	return func(s Slot) (Slot, error) {
		var str string
		switch {
		case src == KindBool:
			str = strconv.FormatBool(s.Bits != 0)
		case src == KindFloat:
			str = strconv.FormatFloat(math.Float64frombits(s.Bits), 'g', -1, 32)
		case src == KindDouble:
			str = strconv.FormatFloat(math.Float64frombits(s.Bits), 'g', -1, 64)
		case isUnsigned(src):
			str = strconv.FormatUint(s.Bits, 10)
		default:
			str = strconv.FormatInt(int64(s.Bits), 10)
		}
		return Slot{Str: str}, nil
	}
}
