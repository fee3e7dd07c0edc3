// Package handlers serves the marketplace pages. Handlers read the session
// and role set by the auth and policy middleware and call the REST backend
// with the request context.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/diewo77/microloan/auth"
	"github.com/diewo77/microloan/gate"
	"github.com/diewo77/microloan/httpx"
	"github.com/diewo77/microloan/internal/api"
	"github.com/diewo77/microloan/internal/identity"
	"github.com/diewo77/microloan/internal/middleware"
	"github.com/diewo77/microloan/internal/models"
	"github.com/diewo77/microloan/internal/nav"
	"github.com/diewo77/microloan/internal/policy"
	"go.uber.org/zap"
)

// Renderer renders a named page inside the layout.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any)
}

// retryAfter is the loading page refresh interval in seconds.
const retryAfter = 1

// GuardPages renders the guard outcomes other than the protected view.
type GuardPages struct {
	views Renderer
}

func NewGuardPages(views Renderer) *GuardPages { return &GuardPages{views: views} }

// Loading never shows protected content. A GET page refreshes itself; a
// refresh would turn a form post into a GET, so those get a link back to the
// page the form came from instead.
func (p *GuardPages) Loading(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusAccepted, "loading", nil)
		return
	}
	data := map[string]any{}
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		data["RetryAfter"] = retryAfter
	} else {
		data["Back"] = localReferer(r)
	}
	p.views.Render(w, r, http.StatusAccepted, "loading", data)
}

// localReferer returns the path of a same-host Referer, or the dashboard.
func localReferer(r *http.Request) string {
	u, err := url.Parse(r.Referer())
	if err != nil || u.Path == "" || (u.Host != "" && u.Host != r.Host) {
		return "/dashboard"
	}
	return identity.SafeReturnPath(u.RequestURI())
}

func (p *GuardPages) Forbidden(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	p.views.Render(w, r, http.StatusForbidden, "forbidden", nil)
}

func (p *GuardPages) Unavailable(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusServiceUnavailable, "role_unavailable", nil)
		return
	}
	p.views.Render(w, r, http.StatusServiceUnavailable, "unavailable", nil)
}

// Shell adds the identity, navigation and flash message every page shows.
// The sidebar is only built on dashboard pages once the role is known.
func Shell(r *http.Request, data map[string]any) {
	ctx := r.Context()
	role := policy.CurrentRole(ctx)
	if id, ok := auth.IdentityFromContext(ctx); ok {
		data["Identity"] = id
	}
	data["Role"] = role
	data["Navbar"] = nav.Navbar(role, r.URL.Path)
	if _, ok := data["Sidebar"]; !ok && onDashboard(r.URL.Path) && role != models.RoleAnonymous &&
		policy.RoleStateFromContext(ctx).Status != gate.RolePending {
		data["Sidebar"] = nav.Sidebar(role, r.URL.Path)
	}
	if code := middleware.FlashFrom(r); code != "" {
		data["Flash"] = code
	}
}

func onDashboard(path string) bool {
	return path == "/dashboard" || strings.HasPrefix(path, "/dashboard/")
}

// ForwardToken attaches the signed-in user's identity token to the request
// context so backend calls carry it.
func ForwardToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := auth.IdentityFromContext(r.Context()); ok {
			r = r.WithContext(api.WithToken(r.Context(), id.Token))
		}
		next.ServeHTTP(w, r)
	})
}

// sessionOf returns the working set owner for r.
func sessionOf(r *http.Request) string {
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		return id.SessionID
	}
	return ""
}

// failure renders a backend error. A 404 gets the not-found state, anything
// else the retryable error page with the backend detail folded away.
func failure(w http.ResponseWriter, r *http.Request, views Renderer, logger *zap.Logger, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if api.IsNotFound(err) {
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
			return
		}
		views.Render(w, r, http.StatusNotFound, "not_found", nil)
		return
	}
	logger.Error("backend call failed", zap.String("path", r.URL.Path), zap.Error(err))
	detail := err.Error()
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		detail = apiErr.Detail
	}
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusBadGateway, "backend_error", detail)
		return
	}
	views.Render(w, r, http.StatusBadGateway, "error", map[string]any{
		"Message": "error_backend",
		"Detail":  detail,
	})
}

// formError is the inline error shown above a form after a failed submit.
type formError struct {
	Message string
	Detail  string
}

func newFormError(err error) *formError {
	fe := &formError{Message: "error_backend", Detail: err.Error()}
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		fe.Detail = apiErr.Detail
	}
	return fe
}

// back redirects to path with a flash message.
func back(w http.ResponseWriter, r *http.Request, path, flash string) {
	if flash != "" {
		middleware.Flash(w, flash)
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// confirmed reports whether a mutation form carries the confirmation field
// set by the interstitial page.
func confirmed(r *http.Request) bool {
	return r.PostFormValue("confirm") == "yes"
}
