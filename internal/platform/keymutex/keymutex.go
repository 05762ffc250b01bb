// Package keymutex guarantees at most one in-flight recomputation per
// encounter identifier within a single process. If the engine is ever scaled
// horizontally this package must be swapped for a distributed lock keyed the
// same way; the Acquire/Release contract stays.
package keymutex

import "sync"

// KeyMutex is a map of lazily-created binary semaphores keyed by string.
// Entries are never removed; the runtime queues blocked acquirers in FIFO
// order per key, which avoids starvation under rapid repeated events for the
// same encounter.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func New() *KeyMutex {
	return &KeyMutex{locks: make(map[string]chan struct{})}
}

func (k *KeyMutex) sem(key string) chan struct{} {
	k.mu.Lock()
	defer k.mu.Unlock()
	c, ok := k.locks[key]
	if !ok {
		c = make(chan struct{}, 1)
		k.locks[key] = c
	}
	return c
}

// Acquire blocks until no other goroutine holds the lock for key, then takes
// it. Acquisition never fails; each dispatch acquires exactly one key, so no
// deadlock is possible.
func (k *KeyMutex) Acquire(key string) {
	k.sem(key) <- struct{}{}
}

// Release releases the lock for key.
func (k *KeyMutex) Release(key string) {
	select {
	case <-k.sem(key):
	default:
		panic("keymutex: release of unheld key " + key)
	}
}
