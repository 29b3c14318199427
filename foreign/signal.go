package foreign

import (
	"sync"

	"github.com/wippyai/ffi-runtime/errors"
)

// Trampoline is the foreign-callable entry point of a callback: the user
// data registered with it and the call's arguments, one word each.
type Trampoline func(userData Handle, args []Handle) Handle

// DestroyNotify releases user data when the foreign side is done with it.
type DestroyNotify func(userData Handle)

type handler struct {
	fn     Trampoline
	notify DestroyNotify
	signal string
	id     uint64
	data   Handle
	once   sync.Once
}

func (h *handler) destroy() {
	h.once.Do(func() {
		if h.notify != nil {
			h.notify(h.data)
		}
	})
}

// DefineSignal declares a signal on a type so handlers can connect to it.
func (r *Runtime) DefineSignal(typeName, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.signals[typeName] == nil {
		r.signals[typeName] = make(map[string]bool)
	}
	r.signals[typeName][name] = true
}

// SignalConnect attaches a handler. notify runs exactly once, when the
// handler is disconnected or the instance is finalized.
func (r *Runtime) SignalConnect(obj Handle, name string, fn Trampoline, data Handle, notify DestroyNotify) (uint64, error) {
	r.mu.Lock()
	in := r.objects[obj]
	if in == nil {
		r.mu.Unlock()
		return 0, errors.NotFound(errors.PhaseConnection, "instance", "")
	}
	if !r.signals[in.typeName][name] {
		r.mu.Unlock()
		return 0, errors.MissingCapability(errors.PhaseConnection, "signal", in.typeName+"::"+name)
	}
	r.nextHandler++
	hd := &handler{id: r.nextHandler, signal: name, fn: fn, data: data, notify: notify}
	in.handlers = append(in.handlers, hd)
	r.mu.Unlock()
	return hd.id, nil
}

// SignalEmit invokes the handlers connected to name in connection order
// and returns the last handler's result. Handlers may disconnect during
// emission; a handler disconnected before its turn is skipped.
func (r *Runtime) SignalEmit(obj Handle, name string, args ...Handle) (Handle, error) {
	r.mu.Lock()
	in := r.objects[obj]
	if in == nil {
		r.mu.Unlock()
		return 0, errors.NotFound(errors.PhaseConnection, "instance", "")
	}
	if !r.signals[in.typeName][name] {
		r.mu.Unlock()
		return 0, errors.MissingCapability(errors.PhaseConnection, "signal", in.typeName+"::"+name)
	}
	var matching []*handler
	for _, hd := range in.handlers {
		if hd.signal == name {
			matching = append(matching, hd)
		}
	}
	r.mu.Unlock()

	r.Ref(obj)
	defer r.Unref(obj)

	var result Handle
	for _, hd := range matching {
		if !r.HandlerIsConnected(obj, hd.id) {
			continue
		}
		result = hd.fn(hd.data, args)
	}
	return result, nil
}

// SignalDisconnect removes a handler and runs its destroy notify.
func (r *Runtime) SignalDisconnect(obj Handle, id uint64) bool {
	r.mu.Lock()
	in := r.objects[obj]
	if in == nil {
		r.mu.Unlock()
		return false
	}
	var found *handler
	for i, hd := range in.handlers {
		if hd.id == id {
			found = hd
			in.handlers = append(in.handlers[:i], in.handlers[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	if found == nil {
		return false
	}
	found.destroy()
	return true
}

// HandlerIsConnected reports whether id is connected on obj.
func (r *Runtime) HandlerIsConnected(obj Handle, id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	in := r.objects[obj]
	if in == nil {
		return false
	}
	for _, hd := range in.handlers {
		if hd.id == id {
			return true
		}
	}
	return false
}

// HandlerCount returns the number of handlers connected on obj.
func (r *Runtime) HandlerCount(obj Handle) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if in := r.objects[obj]; in != nil {
		return len(in.handlers)
	}
	return 0
}

// CallSync invokes fn immediately, the way a foreign function calls a
// call-scoped callback before returning.
func (r *Runtime) CallSync(fn Trampoline, data Handle, args ...Handle) Handle {
	return fn(data, args)
}
