package callback

import (
	"github.com/wippyai/ffi-runtime/errors"
	"github.com/wippyai/ffi-runtime/ownership"
)

// Param describes the ownership of one callback argument.
type Param struct {
	// Free releases an argument the callback was given but did not take.
	Free func(Handle)
	Tag  ownership.Tag
}

// Borrowed is a parameter the callback may only use during the call.
var Borrowed = Param{Tag: ownership.None}

// Owned is a parameter whose ownership passes to the callback. If the
// body does not Take it, free releases it after the call.
func Owned(free func(Handle)) Param {
	return Param{Tag: ownership.Full, Free: free}
}

// Args are the arguments of one invocation.
type Args struct {
	raw    []Handle
	params []Param
	taken  []bool
	done   bool
}

// Len returns the argument count.
func (a *Args) Len() int { return len(a.raw) }

func (a *Args) check(i int) {
	if a.done {
		errors.Violation(errors.PhaseCallback, "argument %d used after the callback returned", i)
	}
	if i < 0 || i >= len(a.raw) {
		errors.Violation(errors.PhaseCallback, "argument %d of %d", i, len(a.raw))
	}
}

// Tag returns the ownership tag of argument i.
func (a *Args) Tag(i int) ownership.Tag {
	if i < len(a.params) {
		return a.params[i].Tag
	}
	return ownership.None
}

// At borrows argument i for the duration of the call.
func (a *Args) At(i int) Handle {
	a.check(i)
	return a.raw[i]
}

// Take claims an argument passed with ownership. Borrowed arguments
// cannot be taken; keep them past the call by duplicating them.
func (a *Args) Take(i int) Handle {
	a.check(i)
	if a.Tag(i) == ownership.None {
		errors.Violation(errors.PhaseCallback, "take of borrowed argument %d", i)
	}
	if a.taken == nil {
		a.taken = make([]bool, len(a.raw))
	}
	if a.taken[i] {
		errors.Violation(errors.PhaseCallback, "argument %d taken twice", i)
	}
	a.taken[i] = true
	return a.raw[i]
}

// finish releases owned arguments the body left behind.
func (a *Args) finish() {
	a.done = true
	for i, p := range a.params {
		if i >= len(a.raw) || p.Tag == ownership.None || p.Free == nil || a.raw[i] == 0 {
			continue
		}
		if a.taken != nil && a.taken[i] {
			continue
		}
		p.Free(a.raw[i])
	}
}
