package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/microloan/auth"
	"github.com/diewo77/microloan/gate"
	"github.com/diewo77/microloan/internal/api"
	"github.com/diewo77/microloan/internal/models"
	"github.com/diewo77/microloan/internal/moderation"
	"github.com/diewo77/microloan/internal/policy"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// rendered is the last page a recordingViews was asked to render.
type rendered struct {
	status int
	name   string
	data   map[string]any
}

type recordingViews struct {
	pages []rendered
}

func (v *recordingViews) Render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	Shell(r, data)
	v.pages = append(v.pages, rendered{status: status, name: name, data: data})
	w.WriteHeader(status)
	_, _ = w.Write([]byte(name))
}

func (v *recordingViews) last(t *testing.T) rendered {
	t.Helper()
	if len(v.pages) == 0 {
		t.Fatal("nothing rendered")
	}
	return v.pages[len(v.pages)-1]
}

type noRoles struct{}

func (noRoles) Resolve(context.Context, string) gate.RoleState { return gate.Pending() }
func (noRoles) Forget(context.Context, string)                 {}

// fakeBackend serves fixed loans and applications and records mutations.
type fakeBackend struct {
	loans   []models.LoanProduct
	apps    []models.LoanApplication
	listErr error

	created  []models.ApplicationPayload
	newLoans []models.LoanInput
	patched  map[string]models.ApplicationPatch
	deleted  []string
	loanPats map[string]models.LoanPatch
	sessions []api.PaymentSessionRequest
	users    []models.User
}

func (b *fakeBackend) ListLoans(context.Context) ([]models.LoanProduct, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]models.LoanProduct(nil), b.loans...), nil
}

func (b *fakeBackend) GetLoan(_ context.Context, id string) (models.LoanProduct, error) {
	for _, l := range b.loans {
		if l.ID == id {
			return l, nil
		}
	}
	return models.LoanProduct{}, &api.Error{Status: http.StatusNotFound, Endpoint: "loan", Message: "not found"}
}

func (b *fakeBackend) CreateLoan(_ context.Context, in models.LoanInput) (string, error) {
	b.newLoans = append(b.newLoans, in)
	return "new-loan", nil
}

func (b *fakeBackend) UpdateLoan(_ context.Context, id string, patch models.LoanPatch) error {
	if b.loanPats == nil {
		b.loanPats = map[string]models.LoanPatch{}
	}
	b.loanPats[id] = patch
	return nil
}

func (b *fakeBackend) DeleteLoan(_ context.Context, id string) error {
	b.deleted = append(b.deleted, id)
	return nil
}

func (b *fakeBackend) ListApplications(context.Context) ([]models.LoanApplication, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]models.LoanApplication(nil), b.apps...), nil
}

func (b *fakeBackend) ListUserApplications(_ context.Context, email string) ([]models.LoanApplication, error) {
	var out []models.LoanApplication
	for _, a := range b.apps {
		if a.ApplicantEmail == email {
			out = append(out, a)
		}
	}
	return out, nil
}

func (b *fakeBackend) CreateApplication(_ context.Context, p models.ApplicationPayload) (string, error) {
	b.created = append(b.created, p)
	return "app-new", nil
}

func (b *fakeBackend) UpdateApplication(_ context.Context, id string, patch models.ApplicationPatch) error {
	if b.patched == nil {
		b.patched = map[string]models.ApplicationPatch{}
	}
	b.patched[id] = patch
	return nil
}

func (b *fakeBackend) DeleteApplication(_ context.Context, id string) error {
	b.deleted = append(b.deleted, id)
	return nil
}

func (b *fakeBackend) CreatePaymentSession(_ context.Context, req api.PaymentSessionRequest) (api.PaymentSession, error) {
	b.sessions = append(b.sessions, req)
	return api.PaymentSession{ID: "cs_1", URL: "https://pay.example.com/cs_1"}, nil
}

func (b *fakeBackend) GetPayment(_ context.Context, applicationID string) (models.PaymentRecord, error) {
	return models.PaymentRecord{ApplicationID: applicationID}, nil
}

func (b *fakeBackend) ConfirmPayment(_ context.Context, sessionID string) (models.PaymentRecord, error) {
	return models.PaymentRecord{ApplicationID: "app-1", TransactionID: "tx_" + sessionID}, nil
}

func (b *fakeBackend) RegisterUser(_ context.Context, u models.User) error {
	b.users = append(b.users, u)
	return nil
}

// fixture bundles what most handler tests need.
type fixture struct {
	backend *fakeBackend
	views   *recordingViews
	pages   *GuardPages
	gate    *policy.AuthGate
	mod     *moderation.Service
	logger  *zap.Logger
}

func newFixture(b *fakeBackend) *fixture {
	views := &recordingViews{}
	pages := NewGuardPages(views)
	return &fixture{
		backend: b,
		views:   views,
		pages:   pages,
		gate:    policy.NewAuthGate(noRoles{}, pages, nil),
		mod:     moderation.NewService(b, time.Minute, zap.NewNop()),
		logger:  zap.NewNop(),
	}
}

// as describes who is making a request.
type as struct {
	email string
	role  gate.Role
}

var (
	anonymous = as{}
	borrower  = as{email: "ada@example.com", role: models.RoleUser}
	manager   = as{email: "max@example.com", role: models.RoleManager}
	admin     = as{email: "root@example.com", role: models.RoleAdmin}
)

// request builds a request carrying the session, role and route params the
// middleware would have set.
func request(method, target string, form url.Values, who as, params map[string]string) *http.Request {
	var r *http.Request
	if form != nil {
		r = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	ctx := r.Context()
	if who.email == "" {
		ctx = auth.WithState(ctx, auth.State{})
		ctx = policy.WithRoleState(ctx, gate.Resolved(models.RoleAnonymous))
	} else {
		ctx = auth.WithState(ctx, auth.State{Identity: &auth.Identity{
			SessionID: "sess-" + who.email,
			Email:     who.email,
			Token:     "tok",
		}})
		ctx = policy.WithRoleState(ctx, gate.Resolved(who.role))
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

func jsonRequest(r *http.Request) *http.Request {
	r.Header.Set("Accept", "application/json")
	return r
}
