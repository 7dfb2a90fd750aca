package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("staff schedule lock not acquired")
)

// Locker is used by the appointment service to guard check-then-write sections per staff member and date.
type Locker interface {
	WithStaffDayLock(ctx context.Context, staffID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error
}

type redisStaffLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

const (
	minRetryDelay = 10 * time.Millisecond
	maxRetryDelay = 200 * time.Millisecond
)

// NewRedisStaffLocker creates a locker that uses a per staff/day Redis key.
// A held key is retried with backoff for up to wait before giving up.
func NewRedisStaffLocker(client *redis.Client, ttl, wait time.Duration) Locker {
	return &redisStaffLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

func LockKey(staffID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("lock:staff:%s:%s", staffID.String(), date.Format("2006-01-02"))
}

func (l *redisStaffLocker) WithStaffDayLock(ctx context.Context, staffID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	key := LockKey(staffID, date)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisStaffLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	delay := minRetryDelay
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire staff lock: %w", err)
		}
		if ok {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrLockNotAcquired
		}
		if delay > remaining {
			delay = remaining
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w: %w", ErrLockNotAcquired, ctx.Err())
		case <-t.C:
		}

		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
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

func (l *redisStaffLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release staff lock: %w", err)
	}
	return nil
}

// NoopLocker runs fn without coordination; the storage uniqueness constraint still applies.
type NoopLocker struct{}

func (NoopLocker) WithStaffDayLock(ctx context.Context, _ uuid.UUID, _ time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
