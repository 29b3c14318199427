package bitflag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type testFlag uint32

const (
	flagA testFlag = 1 << iota
	flagB
	flagC
)

var testNames = map[testFlag]string{flagA: "A", flagB: "B", flagC: "C"}

func TestSetOperations(t *testing.T) {
	s := Of(flagA, flagC)
	assert.True(t, s.Has(flagA))
	assert.False(t, s.Has(flagB))
	assert.True(t, s.Has(flagA|flagC))
	assert.True(t, s.Any(flagB|flagC))
	assert.Equal(t, 2, s.Len())

	s = s.With(flagB).Without(flagA)
	assert.Equal(t, flagB|flagC, s.Bits())

	s = s.Toggle(flagA | flagB)
	assert.Equal(t, flagA|flagC, s.Bits())

	assert.Equal(t, flagA|flagB|flagC, Of(flagA).Or(Of(flagB, flagC)).Bits())
	assert.Equal(t, flagB, Of(flagA, flagB).And(Of(flagB, flagC)).Bits())
	assert.Equal(t, flagA|flagC, Of(flagA, flagB).Xor(Of(flagB, flagC)).Bits())
	assert.Equal(t, flagB, Of(flagA, flagC).Not(flagA|flagB|flagC).Bits())
	assert.True(t, Set[testFlag]{}.IsZero())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0", Set[testFlag]{}.Format(testNames))
	assert.Equal(t, "A|C", Of(flagA, flagC).Format(testNames))
	assert.Equal(t, "B|0x10", FromBits(flagB|0x10).Format(testNames))
}
