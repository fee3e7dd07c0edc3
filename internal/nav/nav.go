// Package nav builds the navbar and dashboard sidebar for a role.
package nav

import (
	"strings"

	"github.com/diewo77/microloan/gate"
	"github.com/diewo77/microloan/internal/models"
)

// Link is one menu entry. Label is a translation code.
type Link struct {
	Label  string
	Href   string
	Active bool
}

type entry struct {
	label string
	href  string
	roles []gate.Role
}

var everyone = []gate.Role{models.RoleAnonymous, models.RoleUser, models.RoleManager, models.RoleAdmin}

var signedIn = []gate.Role{models.RoleUser, models.RoleManager, models.RoleAdmin}

var navbar = []entry{
	{"nav_home", "/", everyone},
	{"nav_loans", "/all-loans", everyone},
	{"nav_dashboard", "/dashboard", signedIn},
	{"nav_login", "/login", []gate.Role{models.RoleAnonymous}},
}

var sidebar = []entry{
	{"nav_my_loans", "/dashboard/my-loans", []gate.Role{models.RoleUser}},
	{"nav_add_loan", "/dashboard/add-loan", []gate.Role{models.RoleManager}},
	{"nav_manage_loans", "/dashboard/manage-loans", []gate.Role{models.RoleManager}},
	{"nav_pending", "/dashboard/pending-loans", []gate.Role{models.RoleManager}},
	{"nav_approved", "/dashboard/approved-loans", []gate.Role{models.RoleManager}},
	{"nav_all_loans", "/dashboard/all-loans", []gate.Role{models.RoleAdmin}},
	{"nav_all_applications", "/dashboard/loan-applications", []gate.Role{models.RoleAdmin}},
	{"nav_profile", "/dashboard/profile", signedIn},
}

// Navbar returns the top links for role with the one matching path active.
func Navbar(role gate.Role, path string) []Link {
	return build(navbar, role, path)
}

// Sidebar returns the dashboard menu for role.
func Sidebar(role gate.Role, path string) []Link {
	return build(sidebar, role, path)
}

// Home is where the dashboard entry point sends role.
func Home(role gate.Role) string {
	for _, e := range sidebar {
		if allowed(e.roles, role) {
			return e.href
		}
	}
	return "/"
}

func build(entries []entry, role gate.Role, path string) []Link {
	out := make([]Link, 0, len(entries))
	for _, e := range entries {
		if !allowed(e.roles, role) {
			continue
		}
		out = append(out, Link{Label: e.label, Href: e.href, Active: IsActive(e.href, path)})
	}
	return out
}

func allowed(roles []gate.Role, role gate.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsActive reports whether href is the current section. The root only
// matches itself; other links also match their sub-paths.
func IsActive(href, path string) bool {
	if href == "/" || href == "/dashboard" {
		return path == href
	}
	return path == href || strings.HasPrefix(path, href+"/")
}
