package appointment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/hackgods/clinic-queue/internal/redis"
)

func TestLocalLockerSerializesSameDay(t *testing.T) {
	locker := NewLocalLocker(5 * time.Second)
	clinicID := uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithDayLock(context.Background(), clinicID, monday, func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, locker.locks, "released keys are dropped")
}

func TestLocalLockerTimesOut(t *testing.T) {
	locker := NewLocalLocker(20 * time.Millisecond)
	clinicID := uuid.New()

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- locker.WithDayLock(context.Background(), clinicID, monday, func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	called := false
	err := locker.WithDayLock(context.Background(), clinicID, monday, func(ctx context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, redisclient.ErrLockNotAcquired)
	assert.False(t, called)

	close(release)
	require.NoError(t, <-done)
}

func TestLocalLockerIndependentKeys(t *testing.T) {
	locker := NewLocalLocker(20 * time.Millisecond)
	clinicID := uuid.New()

	err := locker.WithDayLock(context.Background(), clinicID, monday, func(ctx context.Context) error {
		if err := locker.WithDayLock(ctx, clinicID, tuesday, func(context.Context) error { return nil }); err != nil {
			return err
		}
		return locker.WithDayLock(ctx, uuid.New(), monday, func(context.Context) error { return nil })
	})
	require.NoError(t, err)
}

func TestLocalLockerPropagatesErrorsAndCancel(t *testing.T) {
	locker := NewLocalLocker(time.Second)
	clinicID := uuid.New()
	boom := errors.New("boom")

	err := locker.WithDayLock(context.Background(), clinicID, monday, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	err = locker.WithDayLock(context.Background(), clinicID, monday, func(context.Context) error {
		cancel()
		return locker.WithDayLock(ctx, clinicID, monday, func(context.Context) error { return nil })
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, locker.locks)
}
