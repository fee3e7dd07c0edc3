// Package auth keeps the signed-in identity in a server-side session.
// The browser only holds a signed session id; identity details live in a Store.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/diewo77/microloan/gate"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sessionCookieName = "session"

// Identity is what the external identity provider asserted about the user.
type Identity struct {
	SessionID   string
	Email       string
	DisplayName string
	PhotoURL    string
	Token       string
}

// State is the session lookup outcome for one request. Loading means the
// store could not answer; the request is neither anonymous nor signed in.
type State struct {
	Loading  bool
	Identity *Identity
}

// Status converts the state for the guard decision table.
func (s State) Status() gate.IdentityStatus {
	return gate.IdentityStatus{Loading: s.Loading, Present: s.Identity != nil}
}

type ctxKey struct{}

// WithState stores the session state in ctx.
func WithState(ctx context.Context, s State) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// StateFromContext returns the session state; absent means anonymous.
func StateFromContext(ctx context.Context) State {
	s, _ := ctx.Value(ctxKey{}).(State)
	return s
}

// IdentityFromContext extracts the signed-in identity.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id := StateFromContext(ctx).Identity
	return id, id != nil
}

// Options configures a Manager.
type Options struct {
	Secret       string
	TTL          time.Duration
	SecureCookie bool
}

// Manager issues, resolves and revokes sessions.
type Manager struct {
	store  Store
	secret []byte
	ttl    time.Duration
	secure bool
	logger *zap.Logger
	now    func() time.Time
}

// NewManager creates a session manager over store.
func NewManager(store Store, opts Options, logger *zap.Logger) *Manager {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &Manager{
		store:  store,
		secret: []byte(opts.Secret),
		ttl:    ttl,
		secure: opts.SecureCookie,
		logger: logger,
		now:    time.Now,
	}
}

// Create persists a new session for identity and sets the cookie.
func (m *Manager) Create(ctx context.Context, w http.ResponseWriter, id Identity) (*Session, error) {
	now := m.now()
	s := &Session{
		ID:          uuid.NewString(),
		Email:       id.Email,
		DisplayName: id.DisplayName,
		PhotoURL:    id.PhotoURL,
		Token:       id.Token,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    m.sign(s.ID),
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  s.ExpiresAt,
	})
	return s, nil
}

// Clear revokes the current session and deletes the cookie.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) {
	if id, ok := m.parse(r); ok {
		if err := m.store.Delete(r.Context(), id); err != nil {
			m.logger.Warn("session delete failed", zap.String("session_id", id), zap.Error(err))
		}
	}
	clearCookie(w)
}

// SweepExpired deletes sessions that expired before now.
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	return m.store.DeleteExpired(ctx, m.now())
}

// Middleware resolves the session cookie and attaches a State to the request.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithState(r.Context(), m.resolve(w, r))))
	})
}

func (m *Manager) resolve(w http.ResponseWriter, r *http.Request) State {
	id, ok := m.parse(r)
	if !ok {
		return State{}
	}
	s, err := m.store.Find(r.Context(), id)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		clearCookie(w)
		return State{}
	case err != nil:
		m.logger.Error("session lookup failed", zap.String("session_id", id), zap.Error(err))
		return State{Loading: true}
	}
	if !m.now().Before(s.ExpiresAt) {
		if err := m.store.Delete(r.Context(), id); err != nil {
			m.logger.Warn("expired session delete failed", zap.String("session_id", id), zap.Error(err))
		}
		clearCookie(w)
		return State{}
	}
	return State{Identity: &Identity{
		SessionID:   s.ID,
		Email:       s.Email,
		DisplayName: s.DisplayName,
		PhotoURL:    s.PhotoURL,
		Token:       s.Token,
	}}
}

func (m *Manager) sign(id string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(id))
	return id + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// parse validates the cookie signature and returns the session id.
func (m *Manager) parse(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	id, _, found := strings.Cut(c.Value, ".")
	if !found || id == "" {
		return "", false
	}
	if !hmac.Equal([]byte(c.Value), []byte(m.sign(id))) {
		return "", false
	}
	return id, true
}

func clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), MaxAge: -1, HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// LoginPath is the sign-in entry point that returns the visitor to next
// once they are signed in.
func LoginPath(next string) string {
	if next == "" {
		return "/login"
	}
	return "/login?" + url.Values{"next": {next}}.Encode()
}
