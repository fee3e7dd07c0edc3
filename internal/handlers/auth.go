package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/diewo77/microloan/auth"
	"github.com/diewo77/microloan/internal/api"
	"github.com/diewo77/microloan/internal/identity"
	"github.com/diewo77/microloan/internal/models"
	"github.com/diewo77/microloan/internal/policy"
	"go.uber.org/zap"
)

// Sessions issues and revokes server-side sessions.
type Sessions interface {
	Create(ctx context.Context, w http.ResponseWriter, id auth.Identity) (*auth.Session, error)
	Clear(w http.ResponseWriter, r *http.Request)
}

// UserRegistrar records a user in the backend on sign-in.
type UserRegistrar interface {
	RegisterUser(ctx context.Context, u models.User) error
}

// AuthHandler hands sign-in to the identity provider and turns its answer
// into a session.
type AuthHandler struct {
	provider  identity.Provider
	sessions  Sessions
	users     UserRegistrar
	gate      *policy.AuthGate
	publicURL string
	logger    *zap.Logger
}

func NewAuthHandler(provider identity.Provider, sessions Sessions, users UserRegistrar, ag *policy.AuthGate, publicURL string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		provider:  provider,
		sessions:  sessions,
		users:     users,
		gate:      ag,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
}

// Login sends the browser to the provider. Signed-in users go straight to
// the return path.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	next := identity.SafeReturnPath(r.URL.Query().Get("next"))
	if _, ok := auth.IdentityFromContext(r.Context()); ok {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, h.provider.SignInURL(h.publicURL+"/auth/callback", next), http.StatusSeeOther)
}

// Callback receives the ID token, opens a session and resumes where the
// user was. Only same-origin paths are honoured.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := h.provider.Verify(ctx, r.FormValue("id_token"))
	if err != nil {
		h.logger.Warn("sign-in rejected", zap.Error(err))
		back(w, r, "/", "flash_signin_failed")
		return
	}
	sess, err := h.sessions.Create(ctx, w, id)
	if err != nil {
		h.logger.Error("session create failed", zap.String("email", id.Email), zap.Error(err))
		back(w, r, "/", "flash_signin_failed")
		return
	}
	user := models.User{Email: id.Email, DisplayName: id.DisplayName, PhotoURL: id.PhotoURL}
	if err := h.users.RegisterUser(api.WithToken(ctx, id.Token), user); err != nil {
		// The backend keeps the first registration; later ones may be refused.
		h.logger.Warn("user registration failed", zap.String("email", id.Email), zap.Error(err))
	}
	h.logger.Info("signed in", zap.String("email", id.Email), zap.String("session_id", sess.ID))
	http.Redirect(w, r, identity.SafeReturnPath(r.FormValue("state")), http.StatusSeeOther)
}

// Logout revokes the session and drops the cached role.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		h.gate.Forget(r.Context(), id.Email)
	}
	h.sessions.Clear(w, r)
	dest := "/"
	if u := h.provider.SignOutURL(h.publicURL + "/"); u != "" {
		dest = u
	}
	back(w, r, dest, "flash_signed_out")
}
