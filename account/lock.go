package account

import (
	"context"
	"sync"
)

// Locker hands out exclusive per-account locks. Locks on different
// accounts never contend, and waiting for a lock honors context
// cancellation.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewLocker creates an empty lock table.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*keyLock)}
}

// Acquire blocks until the lock for accountID is held or ctx is done.
// The returned release func must be called exactly once; extra calls are
// no-ops.
func (l *Locker) Acquire(ctx context.Context, accountID string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[accountID]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[accountID] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(accountID, kl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.sem
			l.unref(accountID, kl)
		})
	}, nil
}

func (l *Locker) unref(accountID string, kl *keyLock) {
	l.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, accountID)
	}
	l.mu.Unlock()
}

// Len reports how many accounts currently have holders or waiters.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
