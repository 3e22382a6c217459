package es

import "sync/atomic"

// HandlerSnapshot is an immutable view of the three reactive registries.
// A persist call takes one snapshot at its start and dispatches against
// it throughout, so a concurrent swap never tears an in-flight call.
type HandlerSnapshot[E any] struct {
	Transactional []TransactionalEventHandler[E]
	PostCommit    []EventHandler[E]
	Buses         []EventBus[E]
}

// HandlerSet holds the reactive registries of a store. Registries are
// replaced wholesale, never mutated in place: each setter installs a new
// immutable snapshot, which readers pick up on their next Snapshot call.
// All methods are safe for concurrent use.
type HandlerSet[E any] struct {
	snapshot atomic.Pointer[HandlerSnapshot[E]]
}

// NewHandlerSet returns a HandlerSet with all three registries empty.
func NewHandlerSet[E any]() *HandlerSet[E] {
	hs := &HandlerSet[E]{}
	hs.snapshot.Store(&HandlerSnapshot[E]{})
	return hs
}

// Snapshot returns the current registries. The returned value must not
// be modified.
func (hs *HandlerSet[E]) Snapshot() HandlerSnapshot[E] {
	return *hs.snapshot.Load()
}

// SetTransactionalEventHandlers replaces the transactional handler list.
func (hs *HandlerSet[E]) SetTransactionalEventHandlers(handlers []TransactionalEventHandler[E]) {
	hs.swap(func(s *HandlerSnapshot[E]) { s.Transactional = handlers })
}

// SetEventHandlers replaces the post-commit handler list.
func (hs *HandlerSet[E]) SetEventHandlers(handlers []EventHandler[E]) {
	hs.swap(func(s *HandlerSnapshot[E]) { s.PostCommit = handlers })
}

// SetEventBuses replaces the event bus list.
func (hs *HandlerSet[E]) SetEventBuses(buses []EventBus[E]) {
	hs.swap(func(s *HandlerSnapshot[E]) { s.Buses = buses })
}

func (hs *HandlerSet[E]) swap(mutate func(*HandlerSnapshot[E])) {
	for {
		old := hs.snapshot.Load()
		next := *old
		mutate(&next)
		if hs.snapshot.CompareAndSwap(old, &next) {
			return
		}
	}
}
