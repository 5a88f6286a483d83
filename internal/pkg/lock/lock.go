// Package lock provides per-key exclusive sections for balance operations.
// Two callers holding the same key run one after the other; callers with
// different keys never block each other.
package lock

import (
	"context"
	"sync"
	"time"
)

// entry is a one-slot semaphore shared by every waiter on a key.
// refs counts holders plus waiters so idle keys can be dropped.
type entry struct {
	sem  chan struct{}
	refs int
}

// Keyed serializes work per key.
type Keyed[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
}

// New creates an empty Keyed lock.
func New[K comparable]() *Keyed[K] {
	return &Keyed[K]{entries: make(map[K]*entry)}
}

// acquire registers interest in key and returns its entry.
func (k *Keyed[K]) acquire(key K) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	return e
}

// release drops interest in key and forgets the entry once nobody uses it.
func (k *Keyed[K]) release(key K, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// Lock blocks until the key is held.
func (k *Keyed[K]) Lock(key K) {
	e := k.acquire(key)
	e.sem <- struct{}{}
}

// Unlock releases a key acquired by Lock, TryLock or LockContext.
func (k *Keyed[K]) Unlock(key K) {
	k.mu.Lock()
	e, ok := k.entries[key]
	k.mu.Unlock()
	if !ok {
		return
	}
	<-e.sem
	k.release(key, e)
}

// TryLock acquires the key only if it is free right now.
func (k *Keyed[K]) TryLock(key K) bool {
	e := k.acquire(key)
	select {
	case e.sem <- struct{}{}:
		return true
	default:
		k.release(key, e)
		return false
	}
}

// LockContext waits for the key until ctx is done or timeout elapses.
// A zero timeout waits on ctx alone.
func (k *Keyed[K]) LockContext(ctx context.Context, key K, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	e := k.acquire(key)
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		k.release(key, e)
		if ctx.Err() == context.DeadlineExceeded {
			return ErrLockTimeout
		}
		return ctx.Err()
	}
}

// WithLockContext executes fn while holding key, giving up with
// ErrLockTimeout if the key cannot be acquired within timeout.
func (k *Keyed[K]) WithLockContext(ctx context.Context, key K, timeout time.Duration, fn func() error) error {
	if err := k.LockContext(ctx, key, timeout); err != nil {
		return err
	}
	defer k.Unlock(key)
	return fn()
}

// IsLocked reports whether key is currently held. Point-in-time only.
func (k *Keyed[K]) IsLocked(key K) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	return ok && len(e.sem) == 1
}

// Len returns the number of keys currently held or waited on.
func (k *Keyed[K]) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
