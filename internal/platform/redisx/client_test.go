package redisx

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

func TestNewFromEnvDisabledWithoutAddr(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	c, err := NewFromEnv(logger.Nop())
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil client")
	}
}

func TestCacheRoundTrip(t *testing.T) {
	if os.Getenv("REDIS_ADDR") == "" {
		t.Skip("set REDIS_ADDR to run redis tests")
	}
	c, err := NewFromEnv(logger.Nop())
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	cache := NewCache(c, "ncertlens:test:")
	if _, ok, err := cache.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get missing: ok=%v err=%v", ok, err)
	}
	if err := cache.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	defer cache.Delete(ctx, "k")
	got, ok, err := cache.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("Get: got=%q ok=%v err=%v", got, ok, err)
	}
}
