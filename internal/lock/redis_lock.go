// Package lock implements per-key mutual exclusion on Redis for queue
// workers processing bookings of the same event. The lock is a
// contention-reduction optimization layered on top of the store's
// atomic conditional updates, never the sole correctness mechanism: a
// holder that outlives its TTL can overlap with a fresh acquirer, and
// the inventory and seat statements remain the backstop.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when the lock could not be acquired
// within the configured number of attempts. In the queue path this is
// treated as a transient failure and retried per the job's backoff
// policy rather than surfaced to the user.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// ErrNotHeld is returned by Release when the key no longer carries the
// caller's token, either because the TTL elapsed or another process
// took over. Best-effort callers log it and move on.
var ErrNotHeld = errors.New("lock not held")

// releaseScript deletes the key only when its value still matches the
// caller's token, so a worker that lost its lock to TTL expiry cannot
// release a lock now owned by someone else.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Redis is a TTL-bounded lock service. Acquisition polls SET NX with a
// fixed delay between attempts; no renewal is provided, so the TTL
// must exceed the worst-case critical section.
type Redis struct {
	client     *redis.Client
	attempts   int
	retryDelay time.Duration
}

// NewRedis builds a lock service over an existing client. With
// attempts <= 0 or delay <= 0 the defaults of 5 attempts spaced 200ms
// apart are used.
func NewRedis(client *redis.Client, attempts int, retryDelay time.Duration) *Redis {
	if attempts <= 0 {
		attempts = 5
	}
	if retryDelay <= 0 {
		retryDelay = 200 * time.Millisecond
	}
	return &Redis{client: client, attempts: attempts, retryDelay: retryDelay}
}

// Acquire takes the lock for key, returning an opaque token the caller
// must present to Release. It fails with ErrLockTimeout after the
// configured attempts, or earlier when ctx is cancelled.
func (l *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token, err := randomToken(16)
	if err != nil {
		return "", err
	}
	for attempt := 0; attempt < l.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(l.retryDelay):
			}
		}
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
	}
	return "", ErrLockTimeout
}

// Release gives the lock back. Failure to release is not fatal; the
// TTL bounds how long a stale lock can linger.
func (l *Redis) Release(ctx context.Context, key, token string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// randomToken returns n cryptographically random bytes hex encoded.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
