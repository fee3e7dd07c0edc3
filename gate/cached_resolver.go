package gate

import (
	"context"
	"sync"
	"time"
)

// RoleCache stores resolved roles. Implementations must be safe for
// concurrent use; a miss is reported with ok=false, never an error.
type RoleCache[U comparable] interface {
	Get(ctx context.Context, user U) (Role, bool)
	Set(ctx context.Context, user U, role Role)
	Delete(ctx context.Context, user U)
	Clear(ctx context.Context)
}

// MemoryCache is a process-local RoleCache with a fixed TTL.
type MemoryCache[U comparable] struct {
	mu    sync.RWMutex
	items map[U]cacheEntry
	ttl   time.Duration
	now   func() time.Time
}

type cacheEntry struct {
	role      Role
	expiresAt time.Time
}

// NewMemoryCache creates an empty cache. ttl is how long roles are kept
// before the next lookup goes back to the inner resolver.
func NewMemoryCache[U comparable](ttl time.Duration) *MemoryCache[U] {
	return &MemoryCache[U]{items: make(map[U]cacheEntry), ttl: ttl, now: time.Now}
}

// Get returns a live entry. An expired one is dropped.
func (c *MemoryCache[U]) Get(_ context.Context, user U) (Role, bool) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.items[user]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if now.Before(e.expiresAt) {
		return e.role, true
	}
	c.mu.Lock()
	if cur, ok := c.items[user]; ok && !now.Before(cur.expiresAt) {
		delete(c.items, user)
	}
	c.mu.Unlock()
	return "", false
}

// Sweep drops every expired entry and returns how many went.
func (c *MemoryCache[U]) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for user, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, user)
			n++
		}
	}
	return n
}

// Len returns the number of held entries, expired ones included.
func (c *MemoryCache[U]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *MemoryCache[U]) Set(_ context.Context, user U, role Role) {
	c.mu.Lock()
	c.items[user] = cacheEntry{role: role, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *MemoryCache[U]) Delete(_ context.Context, user U) {
	c.mu.Lock()
	delete(c.items, user)
	c.mu.Unlock()
}

func (c *MemoryCache[U]) Clear(_ context.Context) {
	c.mu.Lock()
	c.items = make(map[U]cacheEntry)
	c.mu.Unlock()
}

// CachedResolver wraps a RoleResolver with a RoleCache.
// This avoids a backend round trip on every guarded request.
type CachedResolver[U comparable] struct {
	inner RoleResolver[U]
	cache RoleCache[U]
}

// NewCachedResolver wraps a resolver with caching. Errors are never cached.
func NewCachedResolver[U comparable](inner RoleResolver[U], cache RoleCache[U]) *CachedResolver[U] {
	return &CachedResolver[U]{inner: inner, cache: cache}
}

// Resolve returns the role for the given subject, using the cache if available.
func (r *CachedResolver[U]) Resolve(ctx context.Context, user U) (Role, error) {
	if role, ok := r.cache.Get(ctx, user); ok {
		return role, nil
	}
	role, err := r.inner.Resolve(ctx, user)
	if err != nil {
		return "", err
	}
	r.cache.Set(ctx, user, role)
	return role, nil
}

// Cached returns the cached role without consulting the inner resolver.
func (r *CachedResolver[U]) Cached(ctx context.Context, user U) (Role, bool) {
	return r.cache.Get(ctx, user)
}

// Invalidate removes a subject from the cache.
// Call this on sign-out or when a role assignment changes.
func (r *CachedResolver[U]) Invalidate(ctx context.Context, user U) {
	r.cache.Delete(ctx, user)
}

// InvalidateAll clears the entire cache.
func (r *CachedResolver[U]) InvalidateAll(ctx context.Context) {
	r.cache.Clear(ctx)
}
