package cache

import (
	"context"
	"testing"
	"time"
)

func TestGoCache(t *testing.T) {
	config := LocalConfig{
		DefaultExpiration: 5 * time.Minute,
		CleanupInterval:   10 * time.Minute,
	}

	cache := NewGoCache(config)
	defer cache.Close()

	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		key := "test_key"
		value := "test_value"

		err := cache.Set(ctx, key, value, time.Minute)
		if err != nil {
			t.Errorf("Failed to set cache: %v", err)
		}

		if retrieved, exists := cache.Get(ctx, key); !exists {
			t.Error("Cache value not found")
		} else if retrieved != value {
			t.Errorf("Expected %v, got %v", value, retrieved)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		key := "delete_key"
		if err := cache.Set(ctx, key, "v", time.Minute); err != nil {
			t.Fatalf("Failed to set cache: %v", err)
		}
		if err := cache.Delete(ctx, key); err != nil {
			t.Errorf("Failed to delete cache: %v", err)
		}
		if _, exists := cache.Get(ctx, key); exists {
			t.Error("Cache value should have been deleted")
		}
	})

	t.Run("Expiration", func(t *testing.T) {
		key := "expire_key"
		if err := cache.Set(ctx, key, "v", 20*time.Millisecond); err != nil {
			t.Fatalf("Failed to set cache: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
		if _, exists := cache.Get(ctx, key); exists {
			t.Error("Cache value should have expired")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		if err := cache.Set(ctx, "a", 1, time.Minute); err != nil {
			t.Fatalf("Failed to set cache: %v", err)
		}
		if err := cache.Set(ctx, "b", 2, time.Minute); err != nil {
			t.Fatalf("Failed to set cache: %v", err)
		}
		if err := cache.Clear(ctx); err != nil {
			t.Errorf("Failed to clear cache: %v", err)
		}
		if _, exists := cache.Get(ctx, "a"); exists {
			t.Error("Cache should be empty after clear")
		}
	})
}

func TestFactoryDefaultsToLocal(t *testing.T) {
	cache, err := New(Config{Type: "local"})
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	if err := cache.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Errorf("Failed to set cache: %v", err)
	}
	if v, ok := cache.Get(ctx, "k"); !ok || v != "v" {
		t.Errorf("Expected v, got %v (exists=%v)", v, ok)
	}
}
