package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/vetclinic-scheduling/internal/config"
)

func TestLockKey(t *testing.T) {
	id := uuid.MustParse("6f1c1f6e-2a5c-4c1e-9f1a-0c8e3b1d2a44")
	date := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "lock:staff:6f1c1f6e-2a5c-4c1e-9f1a-0c8e3b1d2a44:2025-06-10", LockKey(id, date))
}

func TestNoopLocker_RunsFn(t *testing.T) {
	boom := errors.New("boom")
	called := false

	err := NoopLocker{}.WithStaffDayLock(context.Background(), uuid.New(), time.Now(), func(context.Context) error {
		called = true
		return boom
	})

	assert.True(t, called)
	assert.ErrorIs(t, err, boom)
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(context.Background(), config.Config{})
	assert.ErrorIs(t, err, ErrDisabled)
}

var june10 = time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

func newTestLocker(t *testing.T, wait time.Duration) (*miniredis.Miniredis, Locker) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisStaffLocker(rdb, 5*time.Second, wait)
}

func TestRedisStaffLocker_HoldsKeyWhileRunning(t *testing.T) {
	mr, l := newTestLocker(t, time.Second)
	staffID := uuid.New()
	key := LockKey(staffID, june10)

	err := l.WithStaffDayLock(context.Background(), staffID, june10, func(context.Context) error {
		assert.True(t, mr.Exists(key))
		assert.Equal(t, 5*time.Second, mr.TTL(key))
		return nil
	})

	require.NoError(t, err)
	assert.False(t, mr.Exists(key), "released after fn")
}

func TestRedisStaffLocker_WaitsForHeldKey(t *testing.T) {
	mr, l := newTestLocker(t, 2*time.Second)
	staffID := uuid.New()
	key := LockKey(staffID, june10)
	require.NoError(t, mr.Set(key, "someone-else"))

	time.AfterFunc(100*time.Millisecond, func() { mr.Del(key) })

	called := false
	err := l.WithStaffDayLock(context.Background(), staffID, june10, func(context.Context) error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
}

func TestRedisStaffLocker_GivesUpAfterWait(t *testing.T) {
	mr, l := newTestLocker(t, 100*time.Millisecond)
	staffID := uuid.New()
	key := LockKey(staffID, june10)
	require.NoError(t, mr.Set(key, "someone-else"))

	called := false
	err := l.WithStaffDayLock(context.Background(), staffID, june10, func(context.Context) error {
		called = true
		return nil
	})

	require.ErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, called)
	got, _ := mr.Get(key)
	assert.Equal(t, "someone-else", got, "foreign lock untouched")
}

func TestRedisStaffLocker_StopsWaitingWhenContextEnds(t *testing.T) {
	mr, l := newTestLocker(t, 10*time.Second)
	staffID := uuid.New()
	require.NoError(t, mr.Set(LockKey(staffID, june10), "someone-else"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := l.WithStaffDayLock(ctx, staffID, june10, func(context.Context) error { return nil })

	require.ErrorIs(t, err, ErrLockNotAcquired)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRedisStaffLocker_OtherDaysAreIndependent(t *testing.T) {
	mr, l := newTestLocker(t, 50*time.Millisecond)
	staffID := uuid.New()
	require.NoError(t, mr.Set(LockKey(staffID, june10), "someone-else"))

	err := l.WithStaffDayLock(context.Background(), staffID, june10.AddDate(0, 0, 1), func(context.Context) error { return nil })
	assert.NoError(t, err)

	err = l.WithStaffDayLock(context.Background(), uuid.New(), june10, func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestRedisStaffLocker_ReleaseKeepsTakenOverKey(t *testing.T) {
	mr, l := newTestLocker(t, time.Second)
	staffID := uuid.New()
	key := LockKey(staffID, june10)

	err := l.WithStaffDayLock(context.Background(), staffID, june10, func(context.Context) error {
		// our lease expired and another request took the key
		return mr.Set(key, "new-owner")
	})

	require.NoError(t, err)
	got, _ := mr.Get(key)
	assert.Equal(t, "new-owner", got)
}
