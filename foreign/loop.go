package foreign

import "sync"

// SourceFunc is a main loop source callback. Returning false removes the
// source.
type SourceFunc func(userData Handle) bool

type source struct {
	fn     SourceFunc
	notify DestroyNotify
	data   Handle
	id     uint32
	every  uint32
	ticks  uint32
}

// Loop is a single-threaded main loop. Sources are dispatched by Iterate
// in the order they were added.
type Loop struct {
	sources []*source
	nextID  uint32
	mu      sync.Mutex
}

func newLoop() *Loop {
	return &Loop{}
}

// IdleAdd adds a source dispatched on every iteration until fn returns
// false or the source is removed; notify runs once afterwards.
func (l *Loop) IdleAdd(fn SourceFunc, data Handle, notify DestroyNotify) uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.sources = append(l.sources, &source{id: l.nextID, fn: fn, data: data, notify: notify})
	return l.nextID
}

// TimeoutAdd adds a source dispatched on every interval-th iteration.
// Iterations stand in for wall-clock time so scenarios stay deterministic.
func (l *Loop) TimeoutAdd(interval uint32, fn SourceFunc, data Handle, notify DestroyNotify) uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.sources = append(l.sources, &source{id: l.nextID, fn: fn, data: data, notify: notify, every: max(interval, 1)})
	return l.nextID
}

// CallAsync schedules a single call of fn on the next iteration, the way
// an asynchronous operation reports completion. No destroy notify is
// involved: fn owns its user data.
func (l *Loop) CallAsync(fn Trampoline, data Handle, args ...Handle) uint32 {
	return l.IdleAdd(func(ud Handle) bool {
		fn(ud, args)
		return false
	}, data, nil)
}

// SourceRemove removes a source and runs its destroy notify.
func (l *Loop) SourceRemove(id uint32) bool {
	l.mu.Lock()
	var found *source
	for i, s := range l.sources {
		if s.id == id {
			found = s
			l.sources = append(l.sources[:i], l.sources[i+1:]...)
			break
		}
	}
	l.mu.Unlock()
	if found == nil {
		return false
	}
	if found.notify != nil {
		found.notify(found.data)
	}
	return true
}

// Pending reports whether any source is attached.
func (l *Loop) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sources) > 0
}

// Iterate dispatches every source attached at the start of the iteration
// once. It returns false if nothing was dispatched.
func (l *Loop) Iterate() bool {
	l.mu.Lock()
	batch := append([]*source(nil), l.sources...)
	l.mu.Unlock()

	for _, s := range batch {
		if !l.attached(s.id) {
			continue
		}
		if s.every > 1 {
			s.ticks++
			if s.ticks%s.every != 0 {
				continue
			}
		}
		if !s.fn(s.data) {
			l.SourceRemove(s.id)
		}
	}
	return len(batch) > 0
}

// RunUntilIdle iterates until no sources remain or limit iterations ran.
// It returns the number of iterations.
func (l *Loop) RunUntilIdle(limit int) int {
	n := 0
	for n < limit && l.Pending() {
		l.Iterate()
		n++
	}
	return n
}

func (l *Loop) attached(id uint32) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.sources {
		if s.id == id {
			return true
		}
	}
	return false
}
