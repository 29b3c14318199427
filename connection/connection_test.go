package connection

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/ffi-runtime/callback"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/foreign"
)

type fixture struct {
	rt  *foreign.Runtime
	reg *callback.Registry
	obj Handle
}

func setup(t *testing.T) *fixture {
	t.Helper()
	rt := foreign.New(foreign.DefaultOptions())
	reg := callback.NewRegistry(rt, callback.DefaultOptions())
	rt.DefineSignal("Button", "clicked")
	obj, err := rt.NewObject("Button", false)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = reg.Close()
		_ = rt.Close(context.Background())
	})
	return &fixture{rt: rt, reg: reg, obj: obj}
}

func (f *fixture) emit(t *testing.T) {
	t.Helper()
	_, err := f.rt.SignalEmit(f.obj, "clicked")
	require.NoError(t, err)
}

func counting(n *int) callback.Func {
	return func(*callback.Args) (Handle, error) {
		*n++
		return 0, nil
	}
}

func TestDisconnect_Idempotent(t *testing.T) {
	f := setup(t)
	defer f.rt.Unref(f.obj)
	n := 0
	c, err := Connect(f.reg, f.obj, "clicked", counting(&n))
	require.NoError(t, err)
	assert.True(t, c.Connected())
	assert.NotEqual(t, c.ID().String(), "")

	f.emit(t)
	f.emit(t)
	assert.Equal(t, 2, n)

	c.Disconnect()
	assert.False(t, c.Connected())
	assert.Zero(t, f.rt.HandlerCount(f.obj))
	assert.Zero(t, f.reg.Live())

	c.Disconnect()
	assert.False(t, c.Connected())

	f.emit(t)
	assert.Equal(t, 2, n)
}

func TestDisconnect_CopiesShareState(t *testing.T) {
	f := setup(t)
	defer f.rt.Unref(f.obj)
	c, err := Connect(f.reg, f.obj, "clicked", counting(new(int)))
	require.NoError(t, err)
	alias := c

	alias.Disconnect()
	assert.False(t, c.Connected())
	assert.Equal(t, c.ID(), alias.ID())
}

func TestDisconnect_FromForeignSide(t *testing.T) {
	f := setup(t)
	defer f.rt.Unref(f.obj)
	c, err := Connect(f.reg, f.obj, "clicked", counting(new(int)))
	require.NoError(t, err)

	require.True(t, f.rt.SignalDisconnect(f.obj, c.Handler()))
	assert.False(t, c.Connected())
	c.Disconnect()
}

func TestDisconnect_OnFinalize(t *testing.T) {
	f := setup(t)
	c, err := Connect(f.reg, f.obj, "clicked", counting(new(int)))
	require.NoError(t, err)

	f.rt.Unref(f.obj)
	assert.False(t, c.Connected())
	assert.NotPanics(t, c.Disconnect)
}

func TestDisconnect_InsideHandler(t *testing.T) {
	f := setup(t)
	defer f.rt.Unref(f.obj)
	n := 0
	var c Connection
	var err error
	c, err = Connect(f.reg, f.obj, "clicked", func(*callback.Args) (Handle, error) {
		n++
		c.Disconnect()
		return 0, nil
	})
	require.NoError(t, err)

	f.emit(t)
	f.emit(t)
	assert.Equal(t, 1, n)
	assert.False(t, c.Connected())
	assert.Zero(t, f.reg.Live())
}

func TestConnected_ConcurrentObservers(t *testing.T) {
	f := setup(t)
	defer f.rt.Unref(f.obj)
	c, err := Connect(f.reg, f.obj, "clicked", counting(new(int)))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_ = c.Connected()
			}
		}()
	}
	c.Disconnect()
	wg.Wait()
	assert.False(t, c.Connected())
}

func TestConnect_UnknownSignal(t *testing.T) {
	f := setup(t)
	defer f.rt.Unref(f.obj)
	c, err := Connect(f.reg, f.obj, "toggled", counting(new(int)))
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseConnection, Kind: errors.KindMissingCapability})
	assert.False(t, c.Connected())
	assert.Zero(t, f.reg.Live(), "the callback made for the failed connection is destroyed")
}

func TestScoped(t *testing.T) {
	f := setup(t)
	defer f.rt.Unref(f.obj)
	n := 0

	func() {
		c, err := Connect(f.reg, f.obj, "clicked", counting(&n))
		require.NoError(t, err)
		s := NewScoped(c)
		defer s.Close()
		assert.True(t, s.Connected())
		f.emit(t)
	}()
	f.emit(t)
	assert.Equal(t, 1, n)
	assert.Zero(t, f.rt.HandlerCount(f.obj))

	c, err := Connect(f.reg, f.obj, "clicked", counting(&n))
	require.NoError(t, err)
	c.Disconnect()
	s := NewScoped(c)
	assert.False(t, s.Connected())
	assert.NotPanics(t, s.Close, "scoped tolerates a disconnected connection")

	var zero Scoped
	assert.NotPanics(t, zero.Close)
}

func TestScoped_Release(t *testing.T) {
	f := setup(t)
	defer f.rt.Unref(f.obj)
	c, err := Connect(f.reg, f.obj, "clicked", counting(new(int)))
	require.NoError(t, err)

	s := NewScoped(c)
	kept := s.Release()
	s.Close()
	assert.True(t, kept.Connected())
	kept.Disconnect()
}
