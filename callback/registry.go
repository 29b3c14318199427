package callback

import (
	ffiruntime "github.com/wippyai/ffi-runtime"
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/foreign"
	"github.com/wippyai/ffi-runtime/resource"
	"go.uber.org/zap"
)

// Handle is an opaque foreign address or user data handle.
type Handle = ffiruntime.Handle

const (
	typeWrapper uint32 = iota + 1
	typeError
)

// Options configures a Registry.
type Options struct {
	// Policy decides how DispatchResult surfaces callback errors.
	Policy errors.Policy
}

// DefaultOptions returns errors to the caller.
func DefaultOptions() Options {
	return Options{Policy: errors.PolicyReturn}
}

// Registry owns the user data table behind a set of callbacks.
type Registry struct {
	rt    *foreign.Runtime
	table *resource.Table
	slots resource.Typed[*Wrapper]
	errs  resource.Typed[error]
	opts  Options
}

// NewRegistry creates a registry for callbacks handed to rt.
func NewRegistry(rt *foreign.Runtime, opts Options) *Registry {
	table := resource.NewTable()
	return &Registry{
		rt:    rt,
		table: table,
		slots: resource.NewTyped[*Wrapper](table, typeWrapper),
		errs:  resource.NewTyped[error](table, typeError),
		opts:  opts,
	}
}

// Runtime returns the foreign runtime the callbacks are handed to.
func (r *Registry) Runtime() *foreign.Runtime { return r.rt }

// Table exposes the user data table, mainly for observers.
func (r *Registry) Table() *resource.Table { return r.table }

// Live returns the number of wrappers not yet destroyed, including one
// whose destroy is waiting for a running invocation.
func (r *Registry) Live() int { return r.slots.Len() }

// Trampoline returns the entry point to pass to foreign code together
// with a wrapper's UserData.
func (r *Registry) Trampoline() foreign.Trampoline { return r.Dispatch }

// ErrorTrampoline is Trampoline for call sites with an error slot: the
// last argument is the address receiving an error handle.
func (r *Registry) ErrorTrampoline() foreign.Trampoline {
	return func(ud Handle, args []Handle) Handle {
		if len(args) == 0 {
			errors.Violation(errors.PhaseCallback, "error trampoline called without an error slot")
		}
		n := len(args) - 1
		return r.DispatchError(ud, args[:n], args[n])
	}
}

// SourceFunc adapts the trampoline to a main loop source: the source stays
// attached while the callback returns a non-zero handle.
func (r *Registry) SourceFunc() foreign.SourceFunc {
	return func(ud Handle) bool { return r.Dispatch(ud, nil) != 0 }
}

// DestroyNotify returns the hook to pass along with a ScopeNotified
// wrapper's UserData.
func (r *Registry) DestroyNotify() foreign.DestroyNotify { return r.Destroy }

// Dispatch invokes the wrapper behind ud. Errors are logged and the
// wrapper's default result is returned instead.
func (r *Registry) Dispatch(ud Handle, args []Handle) Handle {
	result, err := r.dispatch(ud, args)
	if err != nil {
		r.logFailure(ud, err)
	}
	return result
}

// DispatchResult invokes the wrapper behind ud and surfaces its error
// according to the registry policy.
func (r *Registry) DispatchResult(ud Handle, args []Handle) (Handle, error) {
	result, err := r.dispatch(ud, args)
	return result, r.opts.Policy.Apply(err)
}

// DispatchError invokes the wrapper behind ud. A failure is stored in the
// registry and its handle written to the slot at errOut, to be collected
// with TakeError. With errOut 0 it behaves like Dispatch.
func (r *Registry) DispatchError(ud Handle, args []Handle, errOut Handle) Handle {
	result, err := r.dispatch(ud, args)
	if err == nil {
		return result
	}
	if errOut == 0 {
		r.logFailure(ud, err)
		return result
	}
	r.rt.WriteHandle(errOut, 0, r.errs.Insert(err))
	return result
}

// TakeError returns and forgets an error stored by DispatchError.
func (r *Registry) TakeError(h Handle) error {
	err, state := r.errs.Remove(h)
	if state != resource.DropDone {
		return errors.NotFound(errors.PhaseCallback, "error", "")
	}
	return err
}

func (r *Registry) dispatch(ud Handle, args []Handle) (Handle, error) {
	w, ok := r.slots.Borrow(ud)
	if !ok {
		Logger().Error("dispatch to destroyed callback", zap.Uint64("user_data", uint64(ud)))
		errors.Violation(errors.PhaseCallback, "dispatch to destroyed callback %#x", uint64(ud))
	}
	defer r.slots.ReturnBorrow(ud)

	if w.scope == ScopeAsync && !w.invoked.CompareAndSwap(false, true) {
		errors.Violation(errors.PhaseCallback, "async callback %#x invoked twice", uint64(ud))
	}
	result, err := w.invoke(args)
	if w.scope == ScopeAsync {
		w.release()
	}
	return result, err
}

// Destroy is the destroy notify: it drops the foreign side's claim on the
// wrapper behind ud.
func (r *Registry) Destroy(ud Handle) {
	w, ok := r.slots.Get(ud)
	if !ok {
		Logger().Warn("destroy notify for unknown callback", zap.Uint64("user_data", uint64(ud)))
		return
	}
	if !w.notified.CompareAndSwap(false, true) {
		return
	}
	w.release()
}

// Close destroys every remaining wrapper, including async callbacks that
// were never invoked, and forgets stored errors.
func (r *Registry) Close() error {
	return r.table.Close()
}

func (r *Registry) logFailure(ud Handle, err error) {
	fields := []zap.Field{zap.Uint64("user_data", uint64(ud)), zap.Error(err)}
	if w, ok := r.slots.Get(ud); ok {
		fields = append(fields, zap.Stringer("scope", w.scope))
	}
	Logger().Warn("callback failed without an error channel", fields...)
}
