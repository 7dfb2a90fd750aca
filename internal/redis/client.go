package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/vetclinic-scheduling/internal/config"
)

// ErrDisabled is returned when no Redis address is configured.
var ErrDisabled = errors.New("redis disabled")

// Connect opens the client used by the staff schedule lock and checks it answers.
func Connect(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, ErrDisabled
	}

	// commands must finish well inside the lock lifetime
	timeout := 2 * time.Second
	if cfg.LockTTL > 0 && cfg.LockTTL/2 < timeout {
		timeout = cfg.LockTTL / 2
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		PoolSize:     10,
		MinIdleConns: 1,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}

	return rdb, nil
}
