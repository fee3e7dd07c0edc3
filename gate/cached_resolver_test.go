package gate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diewo77/microloan/gate"
)

func TestCachedResolver_CachesRole(t *testing.T) {
	inner := gate.NewStaticResolver[string](roleUser)
	inner.Set("m@x.io", roleManager)
	cached := gate.NewCachedResolver[string](inner, gate.NewMemoryCache[string](5*time.Minute))
	ctx := context.Background()

	r1, err := cached.Resolve(ctx, "m@x.io")
	if err != nil || r1 != roleManager {
		t.Fatalf("got %q, %v", r1, err)
	}

	// Role changes upstream; the cached value is served until invalidated.
	inner.Set("m@x.io", roleUser)
	if r2, _ := cached.Resolve(ctx, "m@x.io"); r2 != roleManager {
		t.Errorf("expected cached manager, got %q", r2)
	}

	cached.Invalidate(ctx, "m@x.io")
	if r3, _ := cached.Resolve(ctx, "m@x.io"); r3 != roleUser {
		t.Errorf("expected user after invalidation, got %q", r3)
	}
}

func TestCachedResolver_InvalidateAll(t *testing.T) {
	inner := gate.NewStaticResolver[string](roleUser)
	cached := gate.NewCachedResolver[string](inner, gate.NewMemoryCache[string](time.Minute))
	ctx := context.Background()
	_, _ = cached.Resolve(ctx, "a")
	_, _ = cached.Resolve(ctx, "b")

	cached.InvalidateAll(ctx)
	if _, ok := cached.Cached(ctx, "a"); ok {
		t.Error("a should be gone")
	}
	if _, ok := cached.Cached(ctx, "b"); ok {
		t.Error("b should be gone")
	}
}

func TestCachedResolver_ErrorsAreNotCached(t *testing.T) {
	calls := 0
	fail := true
	inner := gate.ResolverFunc[string](func(context.Context, string) (gate.Role, error) {
		calls++
		if fail {
			return "", errors.New("backend down")
		}
		return roleManager, nil
	})
	cached := gate.NewCachedResolver[string](inner, gate.NewMemoryCache[string](time.Minute))
	ctx := context.Background()

	if _, err := cached.Resolve(ctx, "m@x.io"); err == nil {
		t.Fatal("expected error")
	}
	fail = false
	role, err := cached.Resolve(ctx, "m@x.io")
	if err != nil || role != roleManager {
		t.Fatalf("got %q, %v", role, err)
	}
	if calls != 2 {
		t.Errorf("inner called %d times, want 2", calls)
	}
}

func TestMemoryCache_Expires(t *testing.T) {
	c := gate.NewMemoryCache[string](10 * time.Millisecond)
	ctx := context.Background()
	c.Set(ctx, "a", roleUser)
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Fatal("expected hit")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("expected entry to expire")
	}
	if n := c.Len(); n != 0 {
		t.Errorf("expired entry kept, len = %d", n)
	}
}

func TestMemoryCache_Sweep(t *testing.T) {
	c := gate.NewMemoryCache[string](10 * time.Millisecond)
	ctx := context.Background()
	c.Set(ctx, "a", roleUser)
	c.Set(ctx, "b", roleManager)
	time.Sleep(20 * time.Millisecond)
	c.Set(ctx, "c", roleUser)

	if n := c.Sweep(); n != 2 {
		t.Errorf("swept %d, want 2", n)
	}
	if n := c.Len(); n != 1 {
		t.Errorf("len = %d, want 1", n)
	}
	if _, ok := c.Get(ctx, "c"); !ok {
		t.Error("live entry swept")
	}
}
