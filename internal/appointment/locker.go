package appointment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/hackgods/clinic-queue/internal/redis"
)

// DayLocker guards the allocation critical section of one clinic on one
// date. Different clinics or dates never contend.
type DayLocker interface {
	WithDayLock(ctx context.Context, clinicID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error
}

// LocalLocker is a keyed in-process mutex. It only serializes callers in
// the same process; multi-instance deployments use redisclient.DayLocker.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
	wait  time.Duration
}

type localLock struct {
	sem  chan struct{}
	refs int
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{
		locks: make(map[string]*localLock),
		wait:  wait,
	}
}

func (l *LocalLocker) WithDayLock(ctx context.Context, clinicID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	key := redisclient.DayLockKey(clinicID, date)
	lk := l.acquireRef(key)
	defer l.releaseRef(key, lk)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case lk.sem <- struct{}{}:
	case <-timer.C:
		return redisclient.ErrLockNotAcquired
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-lk.sem }()

	return fn(ctx)
}

func (l *LocalLocker) acquireRef(key string) *localLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	lk, ok := l.locks[key]
	if !ok {
		lk = &localLock{sem: make(chan struct{}, 1)}
		l.locks[key] = lk
	}
	lk.refs++
	return lk
}

func (l *LocalLocker) releaseRef(key string, lk *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, key)
	}
}
