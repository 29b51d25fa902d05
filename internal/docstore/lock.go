package docstore

import "context"

// Locker serializes document cycles. It is injected at construction so
// tests can substitute an instrumented lock and assert serialization.
type Locker interface {
	// Lock blocks until the lock is held or ctx is done.
	Lock(ctx context.Context) error
	Unlock()
}

// Mutex is the default Locker: a channel-backed mutex whose acquisition
// honors context cancellation, unlike sync.Mutex.
type Mutex struct {
	ch chan struct{}
}

func NewMutex() *Mutex {
	return &Mutex{ch: make(chan struct{}, 1)}
}

func (m *Mutex) Lock(ctx context.Context) error {
	// Fast path: uncontended.
	select {
	case m.ch <- struct{}{}:
		return nil
	default:
	}
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mutex) Unlock() {
	select {
	case <-m.ch:
	default:
		panic("docstore: unlock of unlocked Mutex")
	}
}
