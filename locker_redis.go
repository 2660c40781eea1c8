package gosortable

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultRedisLockTTL    = 30 * time.Second
	DefaultRedisLockRetry  = 50 * time.Millisecond
	DefaultRedisLockPrefix = "sortable:lock:"
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared between processes. A lock is a key set
// with NX and a TTL; the TTL bounds how long a crashed holder blocks the
// partition.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{
		client: client,
		prefix: DefaultRedisLockPrefix,
		ttl:    DefaultRedisLockTTL,
		retry:  DefaultRedisLockRetry,
	}
}

// WithTTL sets the lock expiry.
func (l *RedisLocker) WithTTL(ttl time.Duration) *RedisLocker {
	l.ttl = ttl
	return l
}

// WithRetryInterval sets how often a busy lock is polled.
func (l *RedisLocker) WithRetryInterval(retry time.Duration) *RedisLocker {
	l.retry = retry
	return l
}

// WithPrefix sets the redis key prefix.
func (l *RedisLocker) WithPrefix(prefix string) *RedisLocker {
	l.prefix = prefix
	return l
}

// Lock - implements Locker.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func() error, error) {
	token, err := newLockToken()
	if err != nil {
		return nil, err
	}

	redisKey := l.prefix + key
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("cannot acquire lock %s: %w", redisKey, err)
		}
		if ok {
			return func() error {
				// The caller's ctx may already be done once the operation ends.
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()

				if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
					return fmt.Errorf("cannot release lock %s: %w", redisKey, err)
				}
				return nil
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrLockTimeout, redisKey, ctx.Err())
		case <-ticker.C:
		}
	}
}

func newLockToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cannot generate lock token: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

var _ Locker = (*RedisLocker)(nil)
