// Package policy turns the gate decision table into HTTP middleware and
// exposes permission checks to handlers and templates.
package policy

import (
	"context"
	"net/http"

	"github.com/diewo77/microloan/auth"
	"github.com/diewo77/microloan/gate"
	"github.com/diewo77/microloan/httpx"
	"github.com/diewo77/microloan/internal/metrics"
	"github.com/diewo77/microloan/internal/models"
)

// RoleSource resolves the role of a signed-in email.
type RoleSource interface {
	Resolve(ctx context.Context, email string) gate.RoleState
	Forget(ctx context.Context, email string)
}

// Pages renders the guard outcomes that are not the protected view.
type Pages interface {
	Loading(w http.ResponseWriter, r *http.Request)
	Forbidden(w http.ResponseWriter, r *http.Request)
	Unavailable(w http.ResponseWriter, r *http.Request)
}

type roleKey struct{}

// WithRoleState stores the request's role state.
func WithRoleState(ctx context.Context, s gate.RoleState) context.Context {
	return context.WithValue(ctx, roleKey{}, s)
}

// RoleStateFromContext returns the role state set by ResolveRole. A request
// that never went through it is pending, never authorized.
func RoleStateFromContext(ctx context.Context) gate.RoleState {
	if s, ok := ctx.Value(roleKey{}).(gate.RoleState); ok {
		return s
	}
	return gate.Pending()
}

// CurrentRole is the role to use for display: anonymous without a session,
// the resolved or fallback role otherwise, and user while still pending.
func CurrentRole(ctx context.Context) gate.Role {
	st := auth.StateFromContext(ctx)
	if st.Identity == nil {
		return models.RoleAnonymous
	}
	rs := RoleStateFromContext(ctx)
	if rs.Status == gate.RolePending || rs.Role == "" {
		return models.RoleUser
	}
	return rs.Role
}

// AuthGate combines the role grants, resource policies and guard pages.
type AuthGate struct {
	Gate    *gate.Gate[string]
	roles   RoleSource
	pages   Pages
	metrics *metrics.Metrics
}

// NewAuthGate creates the gate with the standard grants and application policy.
func NewAuthGate(roles RoleSource, pages Pages, m *metrics.Metrics) *AuthGate {
	g := gate.NewGate[string](Grants())
	g.Register(ResourceApplication, ModeratorBypass(NewOwnershipPolicy(), func(ctx context.Context) bool {
		return models.Privileged(CurrentRole(ctx))
	}))
	return &AuthGate{Gate: g, roles: roles, pages: pages, metrics: m}
}

// ResolveRole looks up the role of the signed-in subject once per request
// and stores it for guards, handlers and templates. It must run after the
// session middleware.
func (ag *AuthGate) ResolveRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := auth.StateFromContext(r.Context())
		var rs gate.RoleState
		switch {
		case st.Loading:
			rs = gate.Pending()
		case st.Identity == nil:
			rs = gate.Resolved(models.RoleAnonymous)
		default:
			rs = ag.roles.Resolve(r.Context(), st.Identity.Email)
		}
		next.ServeHTTP(w, r.WithContext(WithRoleState(r.Context(), rs)))
	})
}

// Forget drops the cached role of email, typically on sign-out.
func (ag *AuthGate) Forget(ctx context.Context, email string) {
	ag.roles.Forget(ctx, email)
}

// RequireAuthenticated renders next only for a signed-in subject.
func (ag *AuthGate) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := gate.DecideAuthenticated(auth.StateFromContext(r.Context()).Status())
		ag.dispatch(d, w, r, next)
	})
}

// RequireRole renders next only once both the session and the role are
// known and the role is exactly required.
func (ag *AuthGate) RequireRole(required gate.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			d := gate.DecideRole(auth.StateFromContext(ctx).Status(), RoleStateFromContext(ctx), required)
			ag.dispatch(d, w, r, next)
		})
	}
}

// RequireAnyRole is RequireRole for routes shared by several roles. When no
// role matches, the decision for the first one is rendered.
func (ag *AuthGate) RequireAnyRole(roles ...gate.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id, rs := auth.StateFromContext(ctx).Status(), RoleStateFromContext(ctx)
			d := gate.DecisionForbidden
			for i, role := range roles {
				got := gate.DecideRole(id, rs, role)
				if i == 0 || got == gate.DecisionAuthorized {
					d = got
				}
				if d == gate.DecisionAuthorized {
					break
				}
			}
			ag.dispatch(d, w, r, next)
		})
	}
}

func (ag *AuthGate) dispatch(d gate.Decision, w http.ResponseWriter, r *http.Request, next http.Handler) {
	ag.metrics.Guard(d.String())
	switch d {
	case gate.DecisionAuthorized:
		next.ServeHTTP(w, r)
	case gate.DecisionAnonymous:
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthenticated", nil)
			return
		}
		http.Redirect(w, r, auth.LoginPath(r.URL.RequestURI()), http.StatusSeeOther)
	case gate.DecisionForbidden:
		ag.pages.Forbidden(w, r)
	case gate.DecisionUnavailable:
		ag.pages.Unavailable(w, r)
	default:
		ag.pages.Loading(w, r)
	}
}

// Authorize checks the current subject against the grants and any policy
// registered for resourceType.
func (ag *AuthGate) Authorize(ctx context.Context, action gate.Action, resourceType string, resource any) error {
	id, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return gate.ErrUnauthorized
	}
	return ag.Gate.Authorize(ctx, id.Email, CurrentRole(ctx), action, resourceType, resource)
}

// Can is Authorize as a bool.
func (ag *AuthGate) Can(ctx context.Context, action gate.Action, resourceType string, resource any) bool {
	return ag.Authorize(ctx, action, resourceType, resource) == nil
}

// CanRole checks only the grants of the current role. Templates use it to
// show or hide actions.
func (ag *AuthGate) CanRole(ctx context.Context, action gate.Action, resourceType string) bool {
	return ag.Gate.CanRole(CurrentRole(ctx), action, resourceType)
}
