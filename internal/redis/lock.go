package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still carries the holder's token,
// so an expired lock that was re-acquired elsewhere is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore hands out named, TTL-bounded locks shared by every instance.
type LockStore struct {
	client *redis.Client

	mu     sync.Mutex
	tokens map[string]string
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{
		client: client,
		tokens: make(map[string]string),
	}
}

func lockKey(name string) string {
	return "lock:" + name
}

// AcquireLock attempts to take the named lock for ttl.
// Returns false without error if another holder has it.
func (s *LockStore) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()

	ok, err := s.client.SetNX(ctx, lockKey(name), token, ttl).Result()
	if err != nil || !ok {
		return false, err
	}

	s.mu.Lock()
	s.tokens[name] = token
	s.mu.Unlock()

	return true, nil
}

// ReleaseLock gives up the named lock if this store still holds it.
func (s *LockStore) ReleaseLock(ctx context.Context, name string) error {
	s.mu.Lock()
	token, ok := s.tokens[name]
	delete(s.tokens, name)
	s.mu.Unlock()

	if !ok {
		return nil
	}

	return releaseScript.Run(ctx, s.client, []string{lockKey(name)}, token).Err()
}
