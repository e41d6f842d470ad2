package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache TTL constants
const (
	FareQuoteTTL   = 5 * time.Minute // Route pricing rarely changes
	IdempotencyTTL = 24 * time.Hour  // Replayed responses for Idempotency-Key
)

// Key prefixes
const (
	FareQuotePrefix   = "cache:fare:"
	IdempotencyPrefix = "idempotency:"
)

// KVStore is a TTL-expiring key-value store backed by Redis.
type KVStore struct {
	client *redis.Client
}

// NewKVStore creates a new KVStore.
func NewKVStore(client *redis.Client) *KVStore {
	return &KVStore{client: client}
}

// Put stores value under key for ttl.
func (s *KVStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Get returns the value stored under key. found is false on a miss.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // Cache miss
		}
		return nil, false, err
	}
	return data, true, nil
}

// Delete removes key.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// GetJSON decodes the value under key into dst. found is false on a miss.
func GetJSON(ctx context.Context, kv KV, key string, dst any) (bool, error) {
	data, found, err := kv.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// PutJSON encodes value and stores it under key for ttl.
func PutJSON(ctx context.Context, kv KV, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return kv.Put(ctx, key, data, ttl)
}
