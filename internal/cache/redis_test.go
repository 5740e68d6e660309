package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

type cachedRow struct {
	ID   string
	Name string
}

func TestRedisCacheRoundTrip(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	c := NewRedisCache[[]cachedRow](client, "luxstock:test:", time.Minute, nil)
	c.Delete(ctx, "2025-03")

	if _, ok := c.Get(ctx, "2025-03"); ok {
		t.Fatal("expected miss before set")
	}

	c.Set(ctx, "2025-03", []cachedRow{{ID: "1", Name: "Watch"}})
	got, ok := c.Get(ctx, "2025-03")
	if !ok || len(got) != 1 || got[0].Name != "Watch" {
		t.Fatalf("unexpected cached value: %v %v", got, ok)
	}
	if c.Size(ctx) < 1 {
		t.Fatal("expected at least one key under prefix")
	}

	c.Delete(ctx, "2025-03")
	if _, ok := c.Get(ctx, "2025-03"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestRedisCacheMalformedEntryIsMiss(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	c := NewRedisCache[[]cachedRow](client, "luxstock:test:", time.Minute, nil)
	client.Set(ctx, "luxstock:test:bad", "not json", time.Minute)

	if _, ok := c.Get(ctx, "bad"); ok {
		t.Fatal("malformed entry should be a miss")
	}
	if n, _ := client.Exists(ctx, "luxstock:test:bad").Result(); n != 0 {
		t.Fatal("malformed entry should be dropped")
	}
}
