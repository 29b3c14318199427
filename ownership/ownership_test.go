package ownership

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		in   string
		want Tag
	}{
		{"none", None},
		{"", None},
		{"full", Full},
		{"everything", Full},
		{"container", Container},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTag(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseTag("shared")
	assert.Error(t, err)
}

func TestTagTransfers(t *testing.T) {
	assert.False(t, None.TransfersShell())
	assert.False(t, None.TransfersElements())
	assert.True(t, Full.TransfersShell())
	assert.True(t, Full.TransfersElements())
	assert.True(t, Container.TransfersShell())
	assert.False(t, Container.TransfersElements())
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "container", Container.String())
	assert.Equal(t, "inout", InOut.String())
	assert.Equal(t, "zero-terminated", LengthZeroTerminated.String())
	assert.Equal(t, "notified", ScopeNotified.String())
	assert.Equal(t, "Tag(9)", Tag(9).String())
}

func TestParseDirectionAndScope(t *testing.T) {
	d, err := ParseDirection("return")
	require.NoError(t, err)
	assert.Equal(t, Return, d)

	s, err := ParseScope("async")
	require.NoError(t, err)
	assert.Equal(t, ScopeAsync, s)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
	_, err = ParseScope("forever")
	assert.Error(t, err)
}
