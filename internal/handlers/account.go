package handlers

import (
	"net/http"

	"github.com/diewo77/microloan/auth"
	"github.com/diewo77/microloan/gate"
	"github.com/diewo77/microloan/httpx"
	"github.com/diewo77/microloan/internal/identity"
	"github.com/diewo77/microloan/internal/middleware"
	"github.com/diewo77/microloan/internal/nav"
	"github.com/diewo77/microloan/internal/policy"
)

// AccountHandler serves the dashboard entry, the profile and preferences.
type AccountHandler struct {
	pages policy.Pages
	views Renderer
}

func NewAccountHandler(pages policy.Pages, views Renderer) *AccountHandler {
	return &AccountHandler{pages: pages, views: views}
}

// Dashboard sends the user to the first screen of their role. It waits
// for the role like any role guard.
func (h *AccountHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	rs := policy.RoleStateFromContext(r.Context())
	switch {
	case rs.Status == gate.RolePending:
		h.pages.Loading(w, r)
	case rs.Status == gate.RoleFailed && rs.Role == "":
		h.pages.Unavailable(w, r)
	default:
		http.Redirect(w, r, nav.Home(policy.CurrentRole(r.Context())), http.StatusSeeOther)
	}
}

// Profile shows the signed-in identity and role.
func (h *AccountHandler) Profile(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) {
		id, _ := auth.IdentityFromContext(r.Context())
		httpx.JSON(w, http.StatusOK, map[string]string{
			"email": id.Email,
			"name":  id.DisplayName,
			"photo": id.PhotoURL,
			"role":  string(policy.CurrentRole(r.Context())),
		})
		return
	}
	h.views.Render(w, r, http.StatusOK, "profile", nil)
}

// Theme flips light/dark and returns to the page it was posted from.
func (h *AccountHandler) Theme(w http.ResponseWriter, r *http.Request) {
	theme := middleware.ToggleTheme(w, r)
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]string{"theme": theme})
		return
	}
	http.Redirect(w, r, identity.SafeReturnPath(r.FormValue("next")), http.StatusSeeOther)
}

// NotFound renders the not-found state for unknown paths.
func (h *AccountHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	h.views.Render(w, r, http.StatusNotFound, "not_found", nil)
}

// Health reports liveness.
func Health(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
