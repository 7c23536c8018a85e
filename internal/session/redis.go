package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the session under a single Redis key, so several desk
// instances share one login.
type RedisStore struct {
	rdb redis.Cmdable
	key string
	ttl time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store. A zero ttl keeps the key until cleared.
func NewRedisStore(rdb redis.Cmdable, key string, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, key: key, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context) (State, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, ErrNoSession
	}
	if err != nil {
		return State{}, errors.Wrap(err, "get")
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, errors.Wrap(err, "decode")
	}
	return st, nil
}

func (s *RedisStore) Save(ctx context.Context, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "encode")
	}
	if err := s.rdb.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "set")
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return errors.Wrap(err, "del")
	}
	return nil
}
