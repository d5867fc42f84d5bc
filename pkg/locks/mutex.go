package locks

import (
	"context"
	"sync"
)

type block chan struct{}

// waiters is a FIFO of blocked lock requests.
type waiters []block

// handOver passes the lock to the first waiter, if any.
func (w *waiters) handOver() bool {
	if len(*w) == 0 {
		return false
	}
	b := (*w)[0]
	*w = (*w)[1:]
	b <- struct{}{}
	return true
}

// remove withdraws a cancelled request. It returns false
// if the lock has already been handed over to it.
func (w *waiters) remove(b block) bool {
	for i, e := range *w {
		if e == b {
			*w = append((*w)[:i], (*w)[i+1:]...)
			return true
		}
	}
	return false
}

// Mutex is a lock whose Lock operation can be cancelled by a context.
// Waiters are served in arrival order.
type Mutex struct {
	lock    sync.Mutex
	locked  bool
	waiting waiters
}

func (m *Mutex) IsLocked() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.locked
}

func (m *Mutex) HasWaiting() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.waiting) > 0
}

func (m *Mutex) TryLock() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.locked {
		return false
	}
	m.locked = true
	return true
}

func (m *Mutex) Unlock() {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.locked {
		panic("unlocking unlocked mutex")
	}
	if !m.waiting.handOver() {
		m.locked = false
	}
}

func (m *Mutex) Lock(ctx context.Context) error {
	m.lock.Lock()
	if !m.locked {
		m.locked = true
		m.lock.Unlock()
		return nil
	}
	b := make(block, 1)
	m.waiting = append(m.waiting, b)
	m.lock.Unlock()

	select {
	case <-b:
		return nil
	case <-ctx.Done():
		m.lock.Lock()
		defer m.lock.Unlock()
		if !m.waiting.remove(b) {
			// lock already granted, pass it on
			if !m.waiting.handOver() {
				m.locked = false
			}
		}
		return ctx.Err()
	}
}
