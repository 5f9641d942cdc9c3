package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps snapshots in Redis under a common key prefix. Durability
// depends on the server's persistence settings (AOF or RDB).
type RedisStore struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects to the Redis server at addr and verifies it answers.
func OpenRedis(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %q: %w", addr, err)
	}
	return &RedisStore{client: client, prefix: "roomsync:"}, nil
}

// Close releases the client connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Save writes value under key with no expiry, together with the save time.
func (s *RedisStore) Save(ctx context.Context, key string, value []byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.prefix+key, value, 0)
		pipe.Set(ctx, s.stampKey(key), time.Now().UTC().Format(time.RFC3339Nano), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving %q: %w", key, err)
	}
	return nil
}

// UpdatedAt returns when key was last saved, or the zero time if it never was.
func (s *RedisStore) UpdatedAt(ctx context.Context, key string) (time.Time, error) {
	raw, err := s.client.Get(ctx, s.stampKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading save time of %q: %w", key, err)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing save time of %q: %w", key, err)
	}
	return t, nil
}

func (s *RedisStore) stampKey(key string) string {
	return s.prefix + key + ":updated_at"
}

// Load returns the value stored under key, or (nil, nil) if absent.
func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading %q: %w", key, err)
	}
	return value, nil
}
