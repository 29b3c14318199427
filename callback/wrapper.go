package callback

import (
	"sync"
	"sync/atomic"

	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/ownership"
	"go.uber.org/zap"
)

// Scope is the lifetime discipline of a wrapper.
type Scope = ownership.Scope

const (
	ScopeCall     = ownership.ScopeCall
	ScopeAsync    = ownership.ScopeAsync
	ScopeNotified = ownership.ScopeNotified
)

// Func is a host callable in trampoline form. Arguments are valid only
// until it returns.
type Func func(args *Args) (Handle, error)

// Flag is a wrapper's liveness flag. It starts set and is cleared when the
// wrapper is destroyed or its holder disconnects.
type Flag struct {
	v atomic.Bool
}

// Load reports whether the flag is still set.
func (f *Flag) Load() bool { return f.v.Load() }

// Clear clears the flag.
func (f *Flag) Clear() { f.v.Store(false) }

// Wrapper binds one host callable to a user data handle.
type Wrapper struct {
	reg      *Registry
	fn       Func
	flag     *Flag
	params   []Param
	adopted  []*Wrapper
	ud       Handle
	def      Handle
	calls    atomic.Int64
	owners   atomic.Int32
	invoked  atomic.Bool
	notified atomic.Bool
	closed   atomic.Bool
	dropped  atomic.Bool
	mu       sync.Mutex
	scope    Scope
}

// New registers fn under scope. params describe the ownership of the
// arguments fn receives; arguments past the declared ones are borrowed.
func New(reg *Registry, fn Func, scope Scope, params ...Param) (*Wrapper, error) {
	if fn == nil {
		return nil, errors.InvalidInput(errors.PhaseCallback, "nil callback function")
	}
	w := &Wrapper{
		reg:    reg,
		fn:     fn,
		flag:   &Flag{},
		params: params,
		scope:  scope,
	}
	w.flag.v.Store(true)
	w.owners.Store(1)
	w.ud = reg.slots.Insert(w)
	if w.ud == 0 {
		return nil, errors.Closed(errors.PhaseCallback, "registry")
	}
	return w, nil
}

// WithDefault sets the result returned when the callback fails.
func (w *Wrapper) WithDefault(h Handle) *Wrapper {
	w.def = h
	return w
}

// UserData returns the handle to pass to foreign code with the trampoline.
func (w *Wrapper) UserData() Handle { return w.ud }

// Scope returns the wrapper's lifetime scope.
func (w *Wrapper) Scope() Scope { return w.scope }

// Calls returns how many times the wrapper was invoked.
func (w *Wrapper) Calls() int { return int(w.calls.Load()) }

// Flag returns the liveness flag. It is owned by the wrapper; holders that
// must not keep the wrapper alive reference it weakly.
func (w *Wrapper) Flag() *Flag { return w.flag }

// Live reports whether the wrapper has not been destroyed yet.
func (w *Wrapper) Live() bool { return !w.dropped.Load() }

// Close ends a ScopeCall wrapper once the foreign call returned, whether
// or not it was invoked. Other scopes own themselves and must not be
// closed by the call site.
func (w *Wrapper) Close() {
	if w.scope != ScopeCall {
		errors.Violation(errors.PhaseCallback, "close of a %s callback", w.scope)
	}
	if w.closed.CompareAndSwap(false, true) {
		w.release()
	}
}

// Adopt makes the async wrapper w a co-owner of other, so other lives at
// least until w is destroyed. It is meant for companion callbacks, such
// as a cancellation hook, that have no destroy notify of their own.
func (w *Wrapper) Adopt(other *Wrapper) {
	if w.scope != ScopeAsync {
		errors.Violation(errors.PhaseCallback, "adopt by a %s callback", w.scope)
	}
	if other == nil || other == w {
		errors.Violation(errors.PhaseCallback, "invalid adoptee")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dropped.Load() {
		errors.Violation(errors.PhaseCallback, "adopt by a destroyed callback")
	}
	other.owners.Add(1)
	w.adopted = append(w.adopted, other)
}

func (w *Wrapper) invoke(raw []Handle) (result Handle, err error) {
	args := &Args{raw: raw, params: w.params}
	w.calls.Add(1)
	defer func() {
		args.finish()
		if r := recover(); r != nil {
			if cv, ok := r.(*errors.ContractViolation); ok {
				panic(cv)
			}
			Logger().Debug("recovered callback panic",
				zap.Uint64("user_data", uint64(w.ud)),
				zap.Any("panic", r))
			result, err = w.def, errors.CallbackPanic(r)
		}
	}()
	result, err = w.fn(args)
	if err != nil {
		result = w.def
	}
	return result, err
}

// release drops one owner; the last one destroys the wrapper.
func (w *Wrapper) release() {
	if w.owners.Add(-1) == 0 {
		w.reg.slots.Remove(w.ud)
	}
}

// Drop runs when the registry forgets the wrapper.
func (w *Wrapper) Drop() {
	if !w.dropped.CompareAndSwap(false, true) {
		return
	}
	w.flag.Clear()
	w.mu.Lock()
	adopted := w.adopted
	w.adopted = nil
	w.mu.Unlock()
	for _, a := range adopted {
		a.release()
	}
	Logger().Debug("callback destroyed",
		zap.Uint64("user_data", uint64(w.ud)),
		zap.Stringer("scope", w.scope),
		zap.Int64("calls", w.calls.Load()))
}
