// Package redislock provides an optional distributed companion lock
// for process election, used only when REDIS_ADDR is configured. It
// never replaces the primary loopback-bind election in internal/elector;
// this is hygiene for multi-host deployments that happen to share a
// Redis instance, not a coordination mechanism the election logic
// depends on.
package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockTimeout = 30 * time.Second

// Lock is a SetNX-plus-TTL distributed lock, renewed on a background
// ticker while held.
type Lock struct {
	redis    *redis.Client
	key      string
	acquired bool
	renew    *time.Ticker
	done     chan struct{}
	logger   *zap.Logger
}

// Manager builds Locks against a single Redis client.
type Manager struct {
	redis  *redis.Client
	logger *zap.Logger
}

// NewManager dials addr. Callers typically hold onto the returned
// Manager only when REDIS_ADDR was configured; a nil Manager means
// "no companion lock", and every function here tolerates that.
func NewManager(addr string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		redis:  redis.NewClient(&redis.Options{Addr: addr}),
		logger: logger,
	}
}

// Close closes the underlying Redis client.
func (m *Manager) Close() error {
	if m == nil || m.redis == nil {
		return nil
	}
	return m.redis.Close()
}

// AcquireElectionLock attempts to take the companion lock for
// the election role named by key (e.g. "election:host:41484").
func (m *Manager) AcquireElectionLock(ctx context.Context, key string) (*Lock, error) {
	if m == nil {
		return nil, nil
	}
	lock := &Lock{
		redis:  m.redis,
		key:    fmt.Sprintf("lock:%s", key),
		done:   make(chan struct{}),
		logger: m.logger,
	}

	acquired, err := lock.redis.SetNX(ctx, lock.key, "1", lockTimeout).Result()
	if err != nil {
		return nil, fmt.Errorf("lock acquisition failed: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("election lock %s already held", key)
	}
	lock.acquired = true

	lock.renew = time.NewTicker(lockTimeout / 3)
	go func() {
		for {
			select {
			case <-lock.renew.C:
				lock.redis.Expire(ctx, lock.key, lockTimeout)
			case <-lock.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return lock, nil
}

// Release drops the lock and stops its renewal ticker.
func (l *Lock) Release() {
	if l == nil || !l.acquired {
		return
	}
	close(l.done)
	if l.renew != nil {
		l.renew.Stop()
	}
	l.redis.Del(context.Background(), l.key)
	l.acquired = false
}
