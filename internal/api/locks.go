package api

import "sync"

// addressLocks serializes mutations per wallet address. Entries are dropped
// once no goroutine holds or waits on them.
type addressLocks struct {
	mu    sync.Mutex
	locks map[string]*addressLock
}

type addressLock struct {
	mu      sync.Mutex
	waiters int
}

func newAddressLocks() *addressLocks {
	return &addressLocks{locks: make(map[string]*addressLock)}
}

// Lock blocks until address is free and returns the matching unlock func.
func (l *addressLocks) Lock(address string) func() {
	l.mu.Lock()
	lock, ok := l.locks[address]
	if !ok {
		lock = &addressLock{}
		l.locks[address] = lock
	}
	lock.waiters++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		l.mu.Lock()
		lock.waiters--
		if lock.waiters == 0 {
			delete(l.locks, address)
		}
		l.mu.Unlock()
	}
}

func (l *addressLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
