package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Store maps keys to JSON encoded values in Redis. Writers call Invalidate
// after mutating the records a key was derived from.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewStore builds a Store. A nil client disables caching and every fetch
// goes straight to the loader.
func NewStore(client *redis.Client, prefix string, ttl time.Duration) *Store {
	return &Store{client: client, prefix: strings.TrimSuffix(prefix, ":"), ttl: ttl, logger: slog.Default()}
}

// WithLogger sets the logger used to report Redis failures.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	if s != nil && logger != nil {
		s.logger = logger
	}
	return s
}

// Key joins parts into a cache key.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// FetchJSON loads a cached value into dest or populates it using loader.
// Concurrent misses for the same key share one loader call. Redis failures
// are logged and the loader result is served uncached.
func (s *Store) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if s == nil || s.client == nil {
		return load(ctx, dest, loader)
	}
	full := s.fullKey(key)
	payload, err := s.client.Get(ctx, full).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		s.logger.Warn("cache read failed, using source", slog.String("key", full), slog.Any("error", err))
		return load(ctx, dest, loader)
	}
	raw, err, _ := s.group.Do(full, func() (any, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := s.client.Set(ctx, full, encoded, s.ttl).Err(); err != nil {
			s.logger.Warn("cache write failed", slog.String("key", full), slog.Any("error", err))
		}
		return encoded, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), dest)
}

// Invalidate drops the given keys.
func (s *Store) Invalidate(ctx context.Context, keys ...string) error {
	if s == nil || s.client == nil || len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, key := range keys {
		full = append(full, s.fullKey(key))
	}
	return s.client.Del(ctx, full...).Err()
}

func (s *Store) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func load(ctx context.Context, dest any, loader func(context.Context) (any, error)) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
