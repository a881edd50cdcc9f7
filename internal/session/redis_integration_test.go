//go:build integration
// +build integration

package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/15"
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb, time.Minute)
}

func TestRedisStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t)
	s := newSession()

	if err := store.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := store.Get(ctx, s.Key())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CurrentDifficulty != 225 {
		t.Errorf("CurrentDifficulty = %d, want 225", got.CurrentDifficulty)
	}

	unlock, err := store.Lock(ctx, s.Key())
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	busyCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if _, err := store.Lock(busyCtx, s.Key()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second Lock err = %v, want DeadlineExceeded", err)
	}
	unlock()

	_ = store.Close(ctx, s.Key())
	if err := store.Save(ctx, got); !errors.Is(err, ErrNotFound) {
		t.Errorf("Save after Close err = %v, want ErrNotFound", err)
	}
}
