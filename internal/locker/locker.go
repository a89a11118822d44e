package locker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrLockTimeout is returned by Acquire when the lock could not be taken before
// the wait budget ran out.
var ErrLockTimeout = errors.New("locker: timed out waiting for lock")

// Locker grants short-lived exclusive ownership of a key. The returned token
// proves ownership and must be handed back to Unlock.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, string, error)
	Unlock(ctx context.Context, key, token string) error
}

// Refresher is implemented by lockers whose TTL can be extended by the holder.
type Refresher interface {
	Refresh(ctx context.Context, key, token string, ttl time.Duration) error
}

const pollInterval = 5 * time.Millisecond

// Acquire polls TryLock until the lock is granted, ctx ends, or wait elapses.
// The returned release func is safe to call once.
func Acquire(ctx context.Context, l Locker, key string, ttl, wait time.Duration) (func(), error) {
	if l == nil {
		return func() {}, nil
	}
	deadline := time.Now().Add(wait)
	for {
		ok, token, err := l.TryLock(ctx, key, ttl)
		if err != nil {
			return nil, fmt.Errorf("locker: try lock %s: %w", key, err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					// release even when the caller's ctx is already cancelled
					_ = l.Unlock(context.WithoutCancel(ctx), key, token)
				})
			}, nil
		}
		if wait > 0 && time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

type localLock struct {
	token     string
	expiresAt time.Time
}

// LocalLocker is an in-process Locker for single-instance deployments and tests.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]localLock
	now   func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]localLock), now: time.Now}
}

func (l *LocalLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.locks[key]; ok && (held.expiresAt.IsZero() || now.Before(held.expiresAt)) {
		return false, "", nil
	}
	lock := localLock{token: uuid.NewString()}
	if ttl > 0 {
		lock.expiresAt = now.Add(ttl)
	}
	l.locks[key] = lock
	return true, lock.token, nil
}

func (l *LocalLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	held, ok := l.locks[key]
	if !ok {
		return nil
	}
	if held.token != token {
		return fmt.Errorf("locker: lock %s not owned by caller", key)
	}
	delete(l.locks, key)
	return nil
}

func (l *LocalLocker) Refresh(ctx context.Context, key, token string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	held, ok := l.locks[key]
	if !ok || held.token != token {
		return fmt.Errorf("locker: lock %s not owned by caller", key)
	}
	if ttl > 0 {
		held.expiresAt = l.now().Add(ttl)
	} else {
		held.expiresAt = time.Time{}
	}
	l.locks[key] = held
	return nil
}
