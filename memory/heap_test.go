package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/ffi-runtime/errors"
)

func heaps(t *testing.T) map[string]*Heap {
	t.Helper()
	ctx := context.Background()

	wz, err := NewWazero(ctx, &Config{InitialPages: 1, MaxPages: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = wz.Close(ctx) })

	return map[string]*Heap{
		"linear": NewLinear(&Config{InitialPages: 1, MaxPages: 4}),
		"wazero": wz,
	}
}

func TestHeap_AllocNeverReturnsZero(t *testing.T) {
	for name, h := range heaps(t) {
		t.Run(name, func(t *testing.T) {
			addr, err := h.Alloc(8, 8)
			require.NoError(t, err)
			assert.NotZero(t, addr)
			assert.Zero(t, addr%8)
		})
	}
}

func TestHeap_ReadWrite(t *testing.T) {
	for name, h := range heaps(t) {
		t.Run(name, func(t *testing.T) {
			addr, err := h.Alloc(16, 8)
			require.NoError(t, err)

			require.NoError(t, h.WriteU64(addr, 0xdeadbeefcafe))
			v, err := h.ReadU64(addr)
			require.NoError(t, err)
			assert.Equal(t, uint64(0xdeadbeefcafe), v)

			require.NoError(t, h.WriteU32(addr+8, 7))
			v32, err := h.ReadU32(addr + 8)
			require.NoError(t, err)
			assert.Equal(t, uint32(7), v32)

			require.NoError(t, h.WriteU8(addr+12, 9))
			v8, err := h.ReadU8(addr + 12)
			require.NoError(t, err)
			assert.Equal(t, uint8(9), v8)

			require.NoError(t, h.Write(addr, []byte("abc")))
			b, err := h.Read(addr, 3)
			require.NoError(t, err)
			assert.Equal(t, []byte("abc"), b)
		})
	}
}

func TestHeap_OutOfBounds(t *testing.T) {
	for name, h := range heaps(t) {
		t.Run(name, func(t *testing.T) {
			_, err := h.ReadU64(h.Size() - 4)
			require.Error(t, err)
			assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseMemory, Kind: errors.KindOutOfBounds})
		})
	}
}

func TestHeap_FreeReuses(t *testing.T) {
	for name, h := range heaps(t) {
		t.Run(name, func(t *testing.T) {
			a, err := h.Alloc(32, 8)
			require.NoError(t, err)
			b, err := h.Alloc(32, 8)
			require.NoError(t, err)
			_, err = h.Alloc(32, 8)
			require.NoError(t, err)

			h.Free(a, 32, 8)
			h.Free(b, 32, 8)

			// coalesced: a 64-byte block fits where a and b were
			c, err := h.Alloc(64, 8)
			require.NoError(t, err)
			assert.Equal(t, a, c)
		})
	}
}

func TestHeap_Grows(t *testing.T) {
	for name, h := range heaps(t) {
		t.Run(name, func(t *testing.T) {
			before := h.Size()
			addr, err := h.Alloc(PageSize, 8)
			require.NoError(t, err)
			assert.Greater(t, h.Size(), before)
			require.NoError(t, h.WriteU64(addr+PageSize-8, 1))
		})
	}
}

func TestHeap_MaxPages(t *testing.T) {
	h := NewLinear(&Config{InitialPages: 1, MaxPages: 1})
	_, err := h.Alloc(2*PageSize, 8)
	require.Error(t, err)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseMemory, Kind: errors.KindAllocation})
}

func TestHeap_InUseAndClose(t *testing.T) {
	h := NewLinear(nil)
	a, err := h.Alloc(24, 8)
	require.NoError(t, err)
	assert.Equal(t, uint32(24), h.InUse())
	h.Free(a, 24, 8)
	assert.Zero(t, h.InUse())

	require.NoError(t, h.Close(context.Background()))
	_, err = h.Alloc(8, 8)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseMemory, Kind: errors.KindClosed})
}

func TestHeap_BadAlignment(t *testing.T) {
	h := NewLinear(nil)
	_, err := h.Alloc(8, 3)
	assert.Error(t, err)
}

func TestMemoryModule(t *testing.T) {
	mod := memoryModule(2)
	assert.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d}, mod[:4])
	assert.Equal(t, []byte{0x05, 0x03, 0x01, 0x00, 0x02}, mod[8:13])
}
