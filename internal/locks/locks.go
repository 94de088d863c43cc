package locks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"micronet/pkg/errors"
)

// Locker grants exclusive logical ownership of a network for the
// duration of an agglomeration pass. Agglomerations on disjoint
// networks may run in parallel; two passes on the same network may not.
type Locker interface {
	// Acquire blocks until the named lock is held or ctx is done.
	// The returned release function must be called exactly once.
	Acquire(ctx context.Context, name string) (release func(), err error)
}

// ============================================================================
// In-process locker
// ============================================================================

// LocalLocker is a keyed mutex for single-process deployments
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLocalLocker creates an in-process keyed locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]chan struct{})}
}

// Acquire blocks until the named lock is free or ctx is done
func (l *LocalLocker) Acquire(ctx context.Context, name string) (func(), error) {
	for {
		l.mu.Lock()
		ch, held := l.locks[name]
		if !held {
			done := make(chan struct{})
			l.locks[name] = done
			l.mu.Unlock()
			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.locks, name)
					l.mu.Unlock()
					close(done)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-ch:
			// holder released; retry
		case <-ctx.Done():
			return nil, errors.NewLockUnavailable(name, ctx.Err())
		}
	}
}

// ============================================================================
// Redis locker
// ============================================================================

// RedisLocker implements the advisory lock as a Redis lease so that
// multiple processes sharing one store coordinate their passes.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a Redis-backed locker with the given lease TTL
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisLocker{client: client, ttl: ttl}
}

// releaseScript deletes the lock only if this holder still owns it
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Acquire polls SET NX until the lease is obtained or ctx is done
func (l *RedisLocker) Acquire(ctx context.Context, name string) (func(), error) {
	key := "micronet:lock:" + name
	token := uuid.NewString()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, errors.NewLockUnavailable(name, err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					// release outlives the pass context
					releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
				})
			}, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, errors.NewLockUnavailable(name, ctx.Err())
		}
	}
}
