package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still carries our token, so an
// expired lock re-acquired by someone else is never released by us.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RequestLock implements ports.RequestLock with SET NX PX. It serializes
// concurrent duplicates of one client request across API instances.
type RequestLock struct {
	client goredis.UniversalClient
	prefix string

	mu     sync.Mutex
	tokens map[string]string
}

// NewRequestLock creates a new Redis-backed request lock.
func NewRequestLock(client goredis.UniversalClient) *RequestLock {
	return &RequestLock{
		client: client,
		prefix: "ledger:",
		tokens: make(map[string]string),
	}
}

// Acquire returns true if the lock was free and is now held until ttl or Release.
func (l *RequestLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock acquire: %w", err)
	}
	if ok {
		l.mu.Lock()
		l.tokens[key] = token
		l.mu.Unlock()
	}
	return ok, nil
}

// Release drops a lock this instance holds. Releasing a lock it does not hold is a no-op.
func (l *RequestLock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + key}, token).Err(); err != nil {
		return fmt.Errorf("redis lock release: %w", err)
	}
	return nil
}
