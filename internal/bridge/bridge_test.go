package bridge

import (
	"context"
	"errors"
	"os"
	"testing"

	redis "github.com/redis/go-redis/v9"
)

func exerciseRegistry(t *testing.T, reg Registry) {
	t.Helper()
	ctx := context.Background()
	want := Binding{UserID: 42, ItemKind: "account", ItemLabel: "3_month"}

	token, err := reg.Bind(ctx, want)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if len(token) != 32 {
		t.Fatalf("token %q has length %d", token, len(token))
	}
	other, _ := reg.Bind(ctx, Binding{UserID: 43, ItemKind: "account", ItemLabel: "special"})
	if other == token {
		t.Fatal("tokens must be unique")
	}

	for i := 0; i < 2; i++ {
		got, err := reg.Resolve(ctx, token)
		if err != nil || got != want {
			t.Fatalf("resolve #%d = %+v, %v", i, got, err)
		}
	}
	if err := reg.Release(ctx, token); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := reg.Resolve(ctx, token); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("resolve after release err = %v", err)
	}
	if _, err := reg.Resolve(ctx, "nope"); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("resolve unknown err = %v", err)
	}
	_ = reg.Release(ctx, other)
}

func TestMemoryRegistry(t *testing.T) {
	exerciseRegistry(t, NewMemoryRegistry())
}

// Integration-style test: runs only if REDIS_ADDR env is set.
func TestRedisRegistryIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
	defer client.Close()
	exerciseRegistry(t, NewRedisRegistry(client, "test:bridge:"))
}
