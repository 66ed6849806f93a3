package database

import (
	"context"
	"testing"
	"time"
)

func TestCache_SetTake(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	cache := NewCache(openTestDatabase(t), "test_cache").WithClock(func() time.Time { return now })
	if err := cache.InitializeCache(ctx); err != nil {
		t.Fatalf("InitializeCache() error = %v", err)
	}

	if err := cache.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, ok, err := cache.Take(ctx, "k")
	if err != nil || !ok || value != "v" {
		t.Fatalf("Take() = %q, %v, %v; want %q, true, nil", value, ok, err, "v")
	}

	if _, ok, _ := cache.Take(ctx, "k"); ok {
		t.Error("Take() should not return a value twice")
	}
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	cache := NewCache(openTestDatabase(t), "expiring").WithClock(func() time.Time { return now })
	if err := cache.InitializeCache(ctx); err != nil {
		t.Fatalf("InitializeCache() error = %v", err)
	}

	if err := cache.Set(ctx, "short", "v", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	now = now.Add(2 * time.Minute)

	if _, ok, err := cache.Take(ctx, "short"); err != nil || ok {
		t.Errorf("Take() after expiry ok = %v, err = %v; want false, nil", ok, err)
	}

	if err := cache.CleanupExpired(ctx); err != nil {
		t.Fatalf("CleanupExpired() error = %v", err)
	}

	var count int
	if err := cache.db.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM expiring`).Scan(&count); err != nil {
		t.Fatalf("count error = %v", err)
	}
	if count != 0 {
		t.Errorf("rows after cleanup = %d, expected 0", count)
	}
}

func TestCache_SetOverwrites(t *testing.T) {
	ctx := context.Background()

	cache := NewCache(openTestDatabase(t), "overwrite")
	if err := cache.InitializeCache(ctx); err != nil {
		t.Fatalf("InitializeCache() error = %v", err)
	}

	if err := cache.Set(ctx, "k", "first", time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cache.Set(ctx, "k", "second", time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if value, _, _ := cache.Take(ctx, "k"); value != "second" {
		t.Errorf("Take() = %q, expected %q", value, "second")
	}
}
