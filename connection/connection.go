// Package connection tracks signal subscriptions made with callbacks.
//
// A Connection refers weakly to the liveness flag of the callback it
// created. The callback owns that flag and clears it when destroyed, so a
// Connection observes disconnection from either side: its own Disconnect,
// the foreign side dropping the handler, or the instance being finalized.
package connection

import (
	"weak"

	"github.com/google/uuid"
	"go.uber.org/zap"

	ffiruntime "github.com/wippyai/ffi-runtime"
	"github.com/wippyai/ffi-runtime/callback"
	"github.com/wippyai/ffi-runtime/foreign"
)

// Handle is an opaque foreign address.
type Handle = ffiruntime.Handle

// Connection is a subscription of a callback to a signal. Copies share
// state: disconnecting one disconnects all. The zero Connection is
// disconnected.
type Connection struct {
	rt      *foreign.Runtime
	flag    weak.Pointer[callback.Flag]
	obj     Handle
	handler uint64
	id      uuid.UUID
}

// Connect subscribes fn to signal on obj. The callback lives until the
// connection is disconnected from either side.
func Connect(reg *callback.Registry, obj Handle, signal string, fn callback.Func, params ...callback.Param) (Connection, error) {
	w, err := callback.New(reg, fn, callback.ScopeNotified, params...)
	if err != nil {
		return Connection{}, err
	}
	rt := reg.Runtime()
	handler, err := rt.SignalConnect(obj, signal, reg.Trampoline(), w.UserData(), reg.DestroyNotify())
	if err != nil {
		reg.Destroy(w.UserData())
		return Connection{}, err
	}
	c := Connection{
		rt:      rt,
		flag:    weak.Make(w.Flag()),
		obj:     obj,
		handler: handler,
		id:      uuid.New(),
	}
	Logger().Debug("connected",
		zap.Stringer("connection", c.id),
		zap.String("signal", signal),
		zap.Uint64("handler", handler))
	return c, nil
}

// ID identifies the connection in diagnostics.
func (c Connection) ID() uuid.UUID { return c.id }

// Handler returns the foreign handler id.
func (c Connection) Handler() uint64 { return c.handler }

// Connected reports whether the callback is still subscribed.
func (c Connection) Connected() bool {
	f := c.flag.Value()
	return f != nil && f.Load()
}

// Disconnect unsubscribes the callback. It is a no-op on a connection
// that is already disconnected.
func (c Connection) Disconnect() {
	f := c.flag.Value()
	if f == nil || !f.Load() {
		return
	}
	f.Clear()
	if !c.rt.SignalDisconnect(c.obj, c.handler) {
		Logger().Debug("disconnect of unknown handler",
			zap.Stringer("connection", c.id),
			zap.Uint64("handler", c.handler))
	}
}

// Scoped disconnects its connection when closed.
//
//	s := connection.NewScoped(c)
//	defer s.Close()
type Scoped struct {
	c Connection
}

// NewScoped takes charge of c, which may already be disconnected.
func NewScoped(c Connection) *Scoped {
	return &Scoped{c: c}
}

// Connected reports whether the held connection is still subscribed.
func (s *Scoped) Connected() bool { return s.c.Connected() }

// Release gives up charge of the connection without disconnecting it.
func (s *Scoped) Release() Connection {
	c := s.c
	s.c = Connection{}
	return c
}

// Close disconnects the held connection.
func (s *Scoped) Close() {
	s.Release().Disconnect()
}
