// Package mm provides the per-process memory context and the global lock of
// the paging subsystem.
package mm

import "sync"

// A GlobalLock guards the state shared by every context: the frame pools and
// the replacement queue. It must be acquired before any context lock.
type GlobalLock struct {
	mu sync.Mutex
}

// A Guard proves that its holder owns the global lock. Operations that take a
// Guard may call each other freely; the lock is taken once per call chain.
type Guard struct {
	lock *GlobalLock
	held bool
}

// Acquire blocks until the global lock is free and returns the guard of the
// new holder.
func (l *GlobalLock) Acquire() *Guard {
	l.mu.Lock()
	return &Guard{lock: l, held: true}
}

// Release gives up the global lock. Releasing twice panics.
func (g *Guard) Release() {
	if !g.held {
		panic("global lock released twice")
	}

	g.held = false
	g.lock.mu.Unlock()
}

// MustHold panics unless the guard currently owns the global lock.
func (g *Guard) MustHold() {
	if g == nil || !g.held {
		panic("global lock not held")
	}
}

// Holds reports whether the guard owns lock l.
func (g *Guard) Holds(l *GlobalLock) bool {
	return g != nil && g.held && g.lock == l
}
