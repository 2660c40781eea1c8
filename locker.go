package gosortable

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Locker serialises operations on a partition. Lock blocks until the lock
// identified by key is held or ctx is done, and returns the release func.
type Locker interface {
	Lock(ctx context.Context, key string) (release func() error, err error)
}

type localLock struct {
	sem  *semaphore.Weighted
	refs int
}

// LocalLocker is an in-process Locker. It only protects engines sharing the
// same LocalLocker instance.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		locks: make(map[string]*localLock),
	}
}

// Lock - implements Locker.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func() error, error) {
	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &localLock{sem: semaphore.NewWeighted(1)}
		l.locks[key] = lock
	}
	lock.refs++
	l.mu.Unlock()

	if err := lock.sem.Acquire(ctx, 1); err != nil {
		l.unref(key, lock)
		return nil, fmt.Errorf("%w: %s: %w", ErrLockTimeout, key, err)
	}

	var once sync.Once
	return func() error {
		once.Do(func() {
			lock.sem.Release(1)
			l.unref(key, lock)
		})
		return nil
	}, nil
}

func (l *LocalLocker) unref(key string, lock *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, key)
	}
}

var _ Locker = (*LocalLocker)(nil)
