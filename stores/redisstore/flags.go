// Package redisstore keeps authflow session flags in Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nutrijel/authflow"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when Redis cannot be reached
var ErrRedisUnavailable = errors.New("redis unavailable")

// FlagStore implements authflow.SessionStore for one client, identified by
// a key prefix such as "authflow:<device-id>"
type FlagStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// New creates a FlagStore. A zero ttl keeps the flags until cleared.
func New(rdb redis.UniversalClient, prefix string, ttl time.Duration) *FlagStore {
	if prefix == "" {
		prefix = "authflow"
	}
	return &FlagStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *FlagStore) key(name string) string {
	return s.prefix + ":" + name
}

// MarkAuthenticated sets and clears the two keys inside one MULTI/EXEC
func (s *FlagStore) MarkAuthenticated(ctx context.Context) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(authflow.KeyAuthenticated), "true", s.ttl)
		pipe.Del(ctx, s.key(authflow.KeyExploring))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *FlagStore) Flags(ctx context.Context) (authflow.PersistedFlags, error) {
	vals, err := s.rdb.MGet(ctx, s.key(authflow.KeyAuthenticated), s.key(authflow.KeyExploring)).Result()
	if err != nil {
		return authflow.PersistedFlags{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return authflow.PersistedFlags{
		IsAuthenticated: isTrue(vals[0]),
		IsExploring:     isTrue(vals[1]),
	}, nil
}

// SetExploring marks the visitor as browsing without an account
func (s *FlagStore) SetExploring(ctx context.Context, exploring bool) error {
	var err error
	if exploring {
		err = s.rdb.Set(ctx, s.key(authflow.KeyExploring), "true", s.ttl).Err()
	} else {
		err = s.rdb.Del(ctx, s.key(authflow.KeyExploring)).Err()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// MGET yields nil for missing keys and strings otherwise
func isTrue(v any) bool {
	s, ok := v.(string)
	return ok && s == "true"
}
