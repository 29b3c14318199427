// Package callback turns host functions into foreign-invocable callbacks.
//
// A Wrapper is registered in a Registry, which hands out an opaque user
// data handle. The foreign side calls the Registry's trampoline with that
// handle; the trampoline looks the wrapper up, runs it and applies its
// lifetime scope:
//
//	ScopeCall      valid for one foreign call; the call site closes it
//	ScopeAsync     invoked at most once, destroyed right after
//	ScopeNotified  invoked until the foreign side fires the destroy notify
//
// Panics and errors from a callback body never cross the trampoline. They
// are logged and replaced by the wrapper's default result, or written to an
// error slot when the call site has one (see Registry.DispatchError).
//
// A destroy notify that arrives while the wrapper is running is deferred
// until the running invocation returns.
package callback
