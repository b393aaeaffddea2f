package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrLockNotAcquired = errors.New("day lock not acquired")
)

const defaultPollInterval = 20 * time.Millisecond

// DayLocker serializes bookings for one clinic on one calendar date across
// every API instance sharing the Redis server.
type DayLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
	log    *zap.Logger
}

// NewDayLocker builds a locker whose keys expire after ttl. A caller that
// finds the key held keeps retrying for up to wait before giving up.
func NewDayLocker(client *redis.Client, ttl, wait time.Duration, logger *zap.Logger) *DayLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DayLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
		poll:   defaultPollInterval,
		log:    logger,
	}
}

func DayLockKey(clinicID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("lock:day:%s:%s", clinicID.String(), date.Format("2006-01-02"))
}

func (l *DayLocker) WithDayLock(ctx context.Context, clinicID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	key := DayLockKey(clinicID, date)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// release even when the caller's context is already done
		if err := l.release(context.WithoutCancel(ctx), key, token); err != nil {
			l.log.Warn("day lock release failed, key held until ttl",
				zap.String("key", key),
				zap.Duration("ttl", l.ttl),
				zap.Error(err),
			)
		}
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *DayLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire day lock: %w", err)
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrLockNotAcquired
		}

		timer := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *DayLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release day lock: %w", err)
	}
	return nil
}
