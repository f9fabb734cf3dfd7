// Package redis implements the ValueStore interface using Redis/Valkey.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dwsmith1983/watchtower/internal/store"
)

// Compile-time interface satisfaction check.
var _ store.ValueStore = (*ValueStore)(nil)

// Config holds Redis connection settings.
type Config struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty"`
}

// ValueStore stores dedupe tokens and counters as decimal strings in Redis.
type ValueStore struct {
	client *goredis.Client
	prefix string
	logger *slog.Logger
}

// New creates a new Redis-backed ValueStore.
func New(cfg *Config) *ValueStore {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "watchtower:"
	}

	return &ValueStore{
		client: client,
		prefix: prefix,
		logger: slog.Default(),
	}
}

// NewFromClient creates a ValueStore from an existing client (useful for testing).
func NewFromClient(client *goredis.Client, prefix string) *ValueStore {
	if prefix == "" {
		prefix = "watchtower:"
	}
	return &ValueStore{
		client: client,
		prefix: prefix,
		logger: slog.Default(),
	}
}

// Start initializes the store connection.
func (s *ValueStore) Start(ctx context.Context) error {
	return s.Ping(ctx)
}

// Stop closes the store connection.
func (s *ValueStore) Stop(_ context.Context) error {
	return s.client.Close()
}

// Ping checks connectivity to the Redis server.
func (s *ValueStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// GetInts fetches the given keys in one pipelined round trip. Absent keys
// yield nil entries; keys holding non-integer garbage are treated as absent
// rather than failing the whole read.
func (s *ValueStore) GetInts(ctx context.Context, keys []string) ([]*int64, error) {
	pipe := s.client.Pipeline()
	cmds := make([]*goredis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(ctx, s.prefix+key)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != goredis.Nil {
		return nil, fmt.Errorf("reading value keys: %w", err)
	}

	values := make([]*int64, len(keys))
	for i, cmd := range cmds {
		raw, err := cmd.Result()
		if err == goredis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading value key %q: %w", keys[i], err)
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.logger.Warn("skipping non-integer value key", "key", keys[i], "error", err)
			continue
		}
		values[i] = &n
	}
	return values, nil
}

// WriteInts applies all writes in a single pipelined round trip.
// Nil values delete their keys; everything else is set with ValueTTL.
func (s *ValueStore) WriteInts(ctx context.Context, writes []store.ValueWrite) error {
	if len(writes) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, w := range writes {
		if w.Value == nil {
			pipe.Del(ctx, s.prefix+w.Key)
			continue
		}
		pipe.Set(ctx, s.prefix+w.Key, strconv.FormatInt(*w.Value, 10), store.ValueTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing value keys: %w", err)
	}
	return nil
}

// Client returns the underlying Redis client (for advanced usage/testing).
func (s *ValueStore) Client() *goredis.Client {
	return s.client
}
