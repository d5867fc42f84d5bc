package locks

import (
	"context"
	"fmt"
	"sync"
)

// ElementLocks provides a separate Mutex-like lock per element id.
// Lock state is only kept while an element is locked.
type ElementLocks[T comparable] struct {
	lock  sync.Mutex
	locks map[T]*waiters
}

func NewElementLocks[T comparable]() *ElementLocks[T] {
	return &ElementLocks[T]{locks: map[T]*waiters{}}
}

func (e *ElementLocks[T]) IsLocked(eid T) bool {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.locks[eid] != nil
}

func (e *ElementLocks[T]) HasWaiting(eid T) bool {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.locks[eid] != nil && len(*e.locks[eid]) > 0
}

func (e *ElementLocks[T]) TryLock(eid T) bool {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.locks[eid] != nil {
		return false
	}
	e.locks[eid] = &waiters{}
	return true
}

func (e *ElementLocks[T]) Unlock(eid T) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.release(eid)
}

func (e *ElementLocks[T]) release(eid T) {
	w := e.locks[eid]
	if w == nil {
		panic(fmt.Sprintf("unlocking unlocked element %v", eid))
	}
	if !w.handOver() {
		delete(e.locks, eid)
	}
}

func (e *ElementLocks[T]) Lock(ctx context.Context, eid T) error {
	e.lock.Lock()
	w := e.locks[eid]
	if w == nil {
		e.locks[eid] = &waiters{}
		e.lock.Unlock()
		return nil
	}
	b := make(block, 1)
	*w = append(*w, b)
	e.lock.Unlock()

	select {
	case <-b:
		return nil
	case <-ctx.Done():
		e.lock.Lock()
		defer e.lock.Unlock()
		if !w.remove(b) {
			e.release(eid)
		}
		return ctx.Err()
	}
}
