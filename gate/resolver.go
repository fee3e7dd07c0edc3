package gate

import (
	"context"
	"sync"
)

// RoleResolver resolves a subject to its role.
// U is the subject type (e.g., string for an email).
type RoleResolver[U any] interface {
	Resolve(ctx context.Context, user U) (Role, error)
}

// ResolverFunc adapts a plain function to RoleResolver.
type ResolverFunc[U any] func(ctx context.Context, user U) (Role, error)

func (f ResolverFunc[U]) Resolve(ctx context.Context, user U) (Role, error) { return f(ctx, user) }

// StaticResolver is a simple in-memory resolver for testing.
type StaticResolver[U comparable] struct {
	mu       sync.RWMutex
	roles    map[U]Role
	fallback Role
}

// NewStaticResolver creates a resolver returning fallback for unknown subjects.
func NewStaticResolver[U comparable](fallback Role) *StaticResolver[U] {
	return &StaticResolver[U]{roles: make(map[U]Role), fallback: fallback}
}

// Set assigns a role to a subject.
func (r *StaticResolver[U]) Set(user U, role Role) {
	r.mu.Lock()
	r.roles[user] = role
	r.mu.Unlock()
}

// Resolve returns the role for the given subject.
func (r *StaticResolver[U]) Resolve(_ context.Context, user U) (Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if role, ok := r.roles[user]; ok {
		return role, nil
	}
	return r.fallback, nil
}
