//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/watchtower/internal/store"
)

func setupTestStore(t *testing.T) *ValueStore {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	prefix := fmt.Sprintf("watchtower-test-%d:", time.Now().UnixNano())
	s := NewFromClient(client, prefix)

	t.Cleanup(func() {
		var cursor uint64
		for {
			keys, next, err := client.Scan(ctx, cursor, prefix+"*", 100).Result()
			if err != nil {
				break
			}
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
		client.Close()
	})

	return s
}

func TestWriteAndGetInts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	v1, v2 := int64(7), int64(-3)
	require.NoError(t, s.WriteInts(ctx, []store.ValueWrite{
		{Key: "1:grp-1:dedupe_value", Value: &v1},
		{Key: "1:grp-2:dedupe_value", Value: &v2},
	}))

	got, err := s.GetInts(ctx, []string{"1:grp-1:dedupe_value", "1:grp-2:dedupe_value", "1:missing:dedupe_value"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.NotNil(t, got[0])
	assert.Equal(t, int64(7), *got[0])
	require.NotNil(t, got[1])
	assert.Equal(t, int64(-3), *got[1])
	assert.Nil(t, got[2], "absent key must read as nil")
}

func TestWriteInts_NilDeletes(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	v := int64(5)
	require.NoError(t, s.WriteInts(ctx, []store.ValueWrite{{Key: "1:grp-1:times_seen", Value: &v}}))
	require.NoError(t, s.WriteInts(ctx, []store.ValueWrite{{Key: "1:grp-1:times_seen", Value: nil}}))

	got, err := s.GetInts(ctx, []string{"1:grp-1:times_seen"})
	require.NoError(t, err)
	assert.Nil(t, got[0])
}

func TestWriteInts_SetsTTL(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	v := int64(1)
	require.NoError(t, s.WriteInts(ctx, []store.ValueWrite{{Key: "1:grp-1:dedupe_value", Value: &v}}))

	ttl, err := s.Client().TTL(ctx, s.prefix+"1:grp-1:dedupe_value").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, store.ValueTTL-time.Minute)
	assert.LessOrEqual(t, ttl, store.ValueTTL)
}

func TestGetInts_SkipsGarbageValues(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Client().Set(ctx, s.prefix+"1:grp-1:dedupe_value", "not-a-number", 0).Err())

	got, err := s.GetInts(ctx, []string{"1:grp-1:dedupe_value"})
	require.NoError(t, err)
	assert.Nil(t, got[0], "non-integer value reads as absent")
}
