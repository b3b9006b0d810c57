package sidecar

import (
	"context"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// RedisStore keeps the reasons in the hash Key, one field per request id.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to addr and checks the server answers.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "failed to reach redis at %s", addr)
	}
	return &RedisStore{client: client}, nil
}

// All returns every stored reason.
func (s *RedisStore) All(ctx context.Context) (map[uint64]string, error) {
	raw, err := s.client.HGetAll(ctx, Key).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read rejection reasons")
	}
	return parseReasons(raw), nil
}

// Put stores reason under id.
func (s *RedisStore) Put(ctx context.Context, id uint64, reason string) error {
	return errors.Wrap(s.client.HSet(ctx, Key, strconv.FormatUint(id, 10), reason).Err(), "failed to store rejection reason")
}

// Close closes the redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
