// Package roles resolves the backend role of a signed-in email without
// letting a slow or failing lookup block or widen access.
package roles

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/diewo77/microloan/gate"
	"github.com/diewo77/microloan/internal/api"
	"github.com/diewo77/microloan/internal/metrics"
	"github.com/diewo77/microloan/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// UserLookup fetches the backend user record for an email.
type UserLookup interface {
	GetUser(ctx context.Context, email string) (models.User, error)
}

// Options tunes a Resolver.
type Options struct {
	// Wait is how long one request waits for an in-flight lookup before
	// reporting the role as pending.
	Wait time.Duration
	// FetchTimeout bounds the backend lookup itself.
	FetchTimeout time.Duration
}

// Resolver turns an email into a gate.RoleState. Concurrent requests for the
// same email share one backend call; successes are cached, failures are not.
type Resolver struct {
	cached  *gate.CachedResolver[string]
	group   singleflight.Group
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewResolver wires lookup behind cache.
func NewResolver(lookup UserLookup, cache gate.RoleCache[string], opts Options, logger *zap.Logger, m *metrics.Metrics) *Resolver {
	if opts.Wait <= 0 {
		opts.Wait = 750 * time.Millisecond
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	inner := gate.ResolverFunc[string](func(ctx context.Context, email string) (gate.Role, error) {
		u, err := lookup.GetUser(ctx, email)
		if err != nil {
			// A user the backend has never seen is a plain user.
			if api.IsNotFound(err) {
				return models.RoleUser, nil
			}
			return "", err
		}
		return u.EffectiveRole(), nil
	})
	return &Resolver{
		cached:  gate.NewCachedResolver[string](inner, cache),
		opts:    opts,
		logger:  logger,
		metrics: m,
	}
}

func normalize(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Resolve reports the role for email. An empty email is anonymous. The
// backend call runs detached from ctx so an abandoned request never cancels
// a lookup other requests are waiting on; ctx only bounds the wait.
func (r *Resolver) Resolve(ctx context.Context, email string) gate.RoleState {
	email = normalize(email)
	if email == "" {
		return gate.Resolved(models.RoleAnonymous)
	}
	if role, ok := r.cached.Cached(ctx, email); ok {
		return gate.Resolved(role)
	}

	ch := r.group.DoChan(email, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.FetchTimeout)
		defer cancel()
		return r.cached.Resolve(fetchCtx, email)
	})

	timer := time.NewTimer(r.opts.Wait)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			r.metrics.RoleLookupFailed()
			r.logger.Warn("role lookup failed, falling back to user",
				zap.String("email", email), zap.Bool("shared", res.Shared), zap.Error(res.Err))
			return gate.Failed(models.RoleUser, errors.Join(gate.ErrRoleUnavailable, res.Err))
		}
		return gate.Resolved(res.Val.(gate.Role))
	case <-timer.C:
		return gate.Pending()
	case <-ctx.Done():
		return gate.Pending()
	}
}

// Role is Resolve collapsed to an effective role, for nav and templates.
// Pending and failed lookups yield the least-privileged role.
func (r *Resolver) Role(ctx context.Context, email string) gate.Role {
	st := r.Resolve(ctx, email)
	if st.Status == gate.RoleResolved {
		return st.Role
	}
	if normalize(email) == "" {
		return models.RoleAnonymous
	}
	return models.RoleUser
}

// Forget drops the cached role; called on sign-out.
func (r *Resolver) Forget(ctx context.Context, email string) {
	r.cached.Invalidate(ctx, normalize(email))
}
