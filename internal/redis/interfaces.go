package redis

import (
	"context"
	"time"
)

// KV is a TTL-expiring key-value capability.
type KV interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
}

// Locker defines the interface for distributed locking.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name string) error
}

// Ensure concrete types implement interfaces.
var (
	_ KV     = (*KVStore)(nil)
	_ Locker = (*LockStore)(nil)
)
