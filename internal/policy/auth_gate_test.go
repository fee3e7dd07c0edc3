package policy_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/diewo77/microloan/auth"
	"github.com/diewo77/microloan/gate"
	"github.com/diewo77/microloan/internal/models"
	"github.com/diewo77/microloan/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRoles struct {
	states    map[string]gate.RoleState
	calls     int
	forgotten []string
}

func (s *stubRoles) Resolve(_ context.Context, email string) gate.RoleState {
	s.calls++
	if st, ok := s.states[email]; ok {
		return st
	}
	return gate.Resolved(models.RoleUser)
}

func (s *stubRoles) Forget(_ context.Context, email string) {
	s.forgotten = append(s.forgotten, email)
}

type stubPages struct{}

func (stubPages) Loading(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("loading"))
}

func (stubPages) Forbidden(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte("forbidden"))
}

func (stubPages) Unavailable(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("unavailable"))
}

var protected = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("protected"))
})

// serve runs h behind ResolveRole with the given session state.
func serve(ag *policy.AuthGate, h http.Handler, st auth.State, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req = req.WithContext(auth.WithState(req.Context(), st))
	rec := httptest.NewRecorder()
	ag.ResolveRole(h).ServeHTTP(rec, req)
	return rec
}

func signedIn(email string) auth.State {
	return auth.State{Identity: &auth.Identity{Email: email}}
}

func TestRequireAuthenticated_AnonymousRedirectKeepsTarget(t *testing.T) {
	ag := policy.NewAuthGate(&stubRoles{}, stubPages{}, nil)
	rec := serve(ag, ag.RequireAuthenticated(protected), auth.State{}, "/apply-loan/abc123")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?next=%2Fapply-loan%2Fabc123", rec.Header().Get("Location"))
	assert.NotContains(t, rec.Body.String(), "protected")
}

func TestRequireAuthenticated_AnonymousJSONGets401(t *testing.T) {
	ag := policy.NewAuthGate(&stubRoles{}, stubPages{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/dashboard/my-loans", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	ag.ResolveRole(ag.RequireAuthenticated(protected)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthenticated_LoadingSessionShowsPlaceholder(t *testing.T) {
	roles := &stubRoles{}
	ag := policy.NewAuthGate(roles, stubPages{}, nil)
	rec := serve(ag, ag.RequireAuthenticated(protected), auth.State{Loading: true}, "/dashboard")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "loading", rec.Body.String())
	assert.Zero(t, roles.calls, "no role lookup without a known identity")
}

func TestRequireAuthenticated_SignedIn(t *testing.T) {
	ag := policy.NewAuthGate(&stubRoles{}, stubPages{}, nil)
	rec := serve(ag, ag.RequireAuthenticated(protected), signedIn("ana@example.com"), "/dashboard")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "protected", rec.Body.String())
}

func TestRequireRole_Decisions(t *testing.T) {
	roles := &stubRoles{states: map[string]gate.RoleState{
		"mgr@example.com":    gate.Resolved(models.RoleManager),
		"user@example.com":   gate.Resolved(models.RoleUser),
		"slow@example.com":   gate.Pending(),
		"broken@example.com": gate.Failed(models.RoleUser, errors.New("backend down")),
		"adminx@example.com": gate.Resolved(models.RoleAdmin),
	}}
	ag := policy.NewAuthGate(roles, stubPages{}, nil)
	h := ag.RequireRole(models.RoleManager)(protected)

	tests := []struct {
		name  string
		state auth.State
		code  int
		body  string
	}{
		{"manager", signedIn("mgr@example.com"), http.StatusOK, "protected"},
		{"user is forbidden", signedIn("user@example.com"), http.StatusForbidden, "forbidden"},
		{"admin is not a manager", signedIn("adminx@example.com"), http.StatusForbidden, "forbidden"},
		{"role still loading", signedIn("slow@example.com"), http.StatusAccepted, "loading"},
		{"role lookup failed", signedIn("broken@example.com"), http.StatusServiceUnavailable, "unavailable"},
		{"session loading", auth.State{Loading: true}, http.StatusAccepted, "loading"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(ag, h, tt.state, "/dashboard/pending-loans")
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
		})
	}

	rec := serve(ag, h, auth.State{}, "/dashboard/pending-loans")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestRequireRole_WithoutResolveRoleNeverAuthorizes(t *testing.T) {
	ag := policy.NewAuthGate(&stubRoles{}, stubPages{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/dashboard/all-loans", nil)
	req = req.WithContext(auth.WithState(req.Context(), signedIn("ana@example.com")))
	rec := httptest.NewRecorder()
	ag.RequireRole(models.RoleAdmin)(protected).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestCurrentRole(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, models.RoleAnonymous, policy.CurrentRole(ctx))

	ctx = auth.WithState(ctx, signedIn("ana@example.com"))
	assert.Equal(t, models.RoleUser, policy.CurrentRole(ctx), "pending shows user links")

	ctx = policy.WithRoleState(ctx, gate.Resolved(models.RoleAdmin))
	assert.Equal(t, models.RoleAdmin, policy.CurrentRole(ctx))

	ctx = policy.WithRoleState(ctx, gate.Failed(models.RoleUser, errors.New("x")))
	assert.Equal(t, models.RoleUser, policy.CurrentRole(ctx))
}

func withSubject(email string, role gate.Role) context.Context {
	ctx := auth.WithState(context.Background(), signedIn(email))
	return policy.WithRoleState(ctx, gate.Resolved(role))
}

func TestAuthorize_ApplicationOwnership(t *testing.T) {
	ag := policy.NewAuthGate(&stubRoles{}, stubPages{}, nil)
	pending := &models.LoanApplication{ApplicantEmail: "ana@example.com", Status: models.StatusPending}
	approved := &models.LoanApplication{ApplicantEmail: "ana@example.com", Status: models.StatusApproved}
	paid := &models.LoanApplication{ApplicantEmail: "ana@example.com", PaymentStatus: models.PaymentPaid}

	owner := withSubject("Ana@Example.com", models.RoleUser)
	other := withSubject("bo@example.com", models.RoleUser)
	manager := withSubject("mgr@example.com", models.RoleManager)

	assert.True(t, ag.Can(owner, gate.ActionDelete, policy.ResourceApplication, pending))
	assert.False(t, ag.Can(owner, gate.ActionDelete, policy.ResourceApplication, approved))
	assert.False(t, ag.Can(other, gate.ActionDelete, policy.ResourceApplication, pending))
	assert.True(t, ag.Can(owner, gate.ActionPay, policy.ResourceApplication, pending))
	assert.False(t, ag.Can(owner, gate.ActionPay, policy.ResourceApplication, paid))

	assert.True(t, ag.Can(manager, gate.ActionApprove, policy.ResourceApplication, pending))
	assert.False(t, ag.Can(manager, gate.ActionDelete, policy.ResourceApplication, pending), "managers cannot cancel")
	assert.False(t, ag.Can(owner, gate.ActionApprove, policy.ResourceApplication, pending))

	err := ag.Authorize(context.Background(), gate.ActionView, policy.ResourceApplication, pending)
	require.ErrorIs(t, err, gate.ErrUnauthorized)
}

func TestCanRole(t *testing.T) {
	ag := policy.NewAuthGate(&stubRoles{}, stubPages{}, nil)
	assert.True(t, ag.CanRole(withSubject("m@x.io", models.RoleManager), gate.ActionCreate, policy.ResourceLoan))
	assert.False(t, ag.CanRole(withSubject("a@x.io", models.RoleAdmin), gate.ActionCreate, policy.ResourceLoan))
	assert.True(t, ag.CanRole(withSubject("a@x.io", models.RoleAdmin), gate.ActionUpdate, policy.ResourceLoan))
	assert.False(t, ag.CanRole(withSubject("u@x.io", models.RoleUser), gate.ActionList, policy.ResourceApplication))
}

func TestForget(t *testing.T) {
	roles := &stubRoles{}
	ag := policy.NewAuthGate(roles, stubPages{}, nil)
	ag.Forget(context.Background(), "ana@example.com")
	assert.Equal(t, []string{"ana@example.com"}, roles.forgotten)
}

func TestRequireAnyRole(t *testing.T) {
	roles := &stubRoles{states: map[string]gate.RoleState{
		"mgr@example.com":   gate.Resolved(models.RoleManager),
		"admin@example.com": gate.Resolved(models.RoleAdmin),
		"user@example.com":  gate.Resolved(models.RoleUser),
		"slow@example.com":  gate.Pending(),
	}}
	ag := policy.NewAuthGate(roles, stubPages{}, nil)
	h := ag.RequireAnyRole(models.RoleManager, models.RoleAdmin)(protected)

	assert.Equal(t, http.StatusOK, serve(ag, h, signedIn("mgr@example.com"), "/dashboard/update-loan/l1").Code)
	assert.Equal(t, http.StatusOK, serve(ag, h, signedIn("admin@example.com"), "/dashboard/update-loan/l1").Code)
	assert.Equal(t, http.StatusForbidden, serve(ag, h, signedIn("user@example.com"), "/dashboard/update-loan/l1").Code)
	assert.Equal(t, http.StatusAccepted, serve(ag, h, signedIn("slow@example.com"), "/dashboard/update-loan/l1").Code)
	assert.Equal(t, http.StatusSeeOther, serve(ag, h, auth.State{}, "/dashboard/update-loan/l1").Code)
}

func TestModeratorBypass(t *testing.T) {
	moderator := false
	p := policy.ModeratorBypass(policy.NewOwnershipPolicy(), func(context.Context) bool { return moderator })
	theirs := &models.LoanApplication{ApplicantEmail: "ana@example.com", Status: models.StatusPending}

	assert.False(t, p.Can(context.Background(), "bo@example.com", gate.ActionView, theirs))
	assert.True(t, p.Can(context.Background(), "ana@example.com", gate.ActionView, theirs))

	moderator = true
	assert.True(t, p.Can(context.Background(), "bo@example.com", gate.ActionView, theirs))
}
