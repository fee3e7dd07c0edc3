package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/diewo77/microloan/internal/models"
	"github.com/diewo77/microloan/internal/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flashOf(rec *httptest.ResponseRecorder) string {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "flash" {
			return c.Value
		}
	}
	return ""
}

func myLoansFixture(pp workflow.PaymentPolicy) (*fixture, *MyLoansHandler) {
	f := newFixture(&fakeBackend{apps: []models.LoanApplication{
		{ID: "app-1", LoanTitle: "Solar Starter", ApplicantEmail: borrower.email, Status: models.StatusPending, PaymentStatus: models.PaymentUnpaid},
		{ID: "app-2", LoanTitle: "Study Boost", ApplicantEmail: borrower.email, Status: models.StatusApproved, PaymentStatus: models.PaymentPaid},
		{ID: "app-3", LoanTitle: "Harvest Bridge", ApplicantEmail: "someone@example.com", Status: models.StatusPending},
	}})
	return f, NewMyLoansHandler(f.mod, f.backend, pp, "https://loans.example.com", f.gate, f.pages, f.views, f.logger)
}

var fee = workflow.PaymentPolicy{Fee: decimal.NewFromInt(10), Currency: "usd"}

func TestMyLoans_ListShowsOwnApplications(t *testing.T) {
	f, h := myLoansFixture(fee)

	rec := httptest.NewRecorder()
	h.List(rec, request(http.MethodGet, "/dashboard/my-loans", nil, borrower, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	rows := f.views.last(t).data["Rows"].([]myLoanRow)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].CanCancel)
	assert.True(t, rows[0].CanPay)
	assert.False(t, rows[1].CanCancel)
	assert.False(t, rows[1].CanPay)
}

func TestMyLoans_ListHidesPayUntilApproved(t *testing.T) {
	f, h := myLoansFixture(workflow.PaymentPolicy{Fee: decimal.NewFromInt(10), RequiresApproval: true})

	rec := httptest.NewRecorder()
	h.List(rec, request(http.MethodGet, "/dashboard/my-loans", nil, borrower, nil))

	rows := f.views.last(t).data["Rows"].([]myLoanRow)
	require.Len(t, rows, 2)
	assert.False(t, rows[0].CanPay)
}

func TestMyLoans_CancelNeedsConfirmation(t *testing.T) {
	f, h := myLoansFixture(fee)

	rec := httptest.NewRecorder()
	h.Cancel(rec, request(http.MethodPost, "/dashboard/my-loans/app-1/cancel", url.Values{}, borrower, map[string]string{"id": "app-1"}))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard/my-loans/app-1/cancel", rec.Header().Get("Location"))
	assert.Empty(t, f.backend.deleted)
}

func TestMyLoans_CancelPending(t *testing.T) {
	f, h := myLoansFixture(fee)

	rec := httptest.NewRecorder()
	h.Cancel(rec, request(http.MethodPost, "/dashboard/my-loans/app-1/cancel", url.Values{"confirm": {"yes"}}, borrower, map[string]string{"id": "app-1"}))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard/my-loans", rec.Header().Get("Location"))
	assert.Equal(t, "flash_application_cancelled", flashOf(rec))
	assert.Equal(t, []string{"app-1"}, f.backend.deleted)
}

func TestMyLoans_CancelDecidedIsRefusedLocally(t *testing.T) {
	f, h := myLoansFixture(fee)

	rec := httptest.NewRecorder()
	h.Cancel(rec, request(http.MethodPost, "/dashboard/my-loans/app-2/cancel", url.Values{"confirm": {"yes"}}, borrower, map[string]string{"id": "app-2"}))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "flash_not_deletable", flashOf(rec))
	assert.Empty(t, f.backend.deleted)

	rec = httptest.NewRecorder()
	h.Cancel(rec, jsonRequest(request(http.MethodPost, "/dashboard/my-loans/app-2/cancel", url.Values{"confirm": {"yes"}}, borrower, map[string]string{"id": "app-2"})))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMyLoans_CancelOthersIsNotFound(t *testing.T) {
	f, h := myLoansFixture(fee)

	rec := httptest.NewRecorder()
	h.Cancel(rec, request(http.MethodPost, "/dashboard/my-loans/app-3/cancel", url.Values{"confirm": {"yes"}}, borrower, map[string]string{"id": "app-3"}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, f.backend.deleted)
}

func TestMyLoans_PayRedirectsToCheckout(t *testing.T) {
	f, h := myLoansFixture(fee)

	rec := httptest.NewRecorder()
	h.Pay(rec, request(http.MethodPost, "/dashboard/my-loans/app-1/pay", url.Values{}, borrower, map[string]string{"id": "app-1"}))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://pay.example.com/cs_1", rec.Header().Get("Location"))
	require.Len(t, f.backend.sessions, 1)
	req := f.backend.sessions[0]
	assert.Equal(t, "app-1", req.ApplicationID)
	assert.True(t, req.Amount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "https://loans.example.com/payment-success?session_id={CHECKOUT_SESSION_ID}", req.SuccessURL)
}

func TestMyLoans_PayTwiceIsRefused(t *testing.T) {
	f, h := myLoansFixture(fee)

	rec := httptest.NewRecorder()
	h.Pay(rec, request(http.MethodPost, "/dashboard/my-loans/app-2/pay", url.Values{}, borrower, map[string]string{"id": "app-2"}))

	assert.Equal(t, "flash_already_paid", flashOf(rec))
	assert.Empty(t, f.backend.sessions)
}

func TestMyLoans_PaymentSuccessMarksPaid(t *testing.T) {
	f, h := myLoansFixture(fee)

	// Load the working set first so the confirmation updates it in place.
	h.List(httptest.NewRecorder(), request(http.MethodGet, "/dashboard/my-loans", nil, borrower, nil))

	rec := httptest.NewRecorder()
	h.PaymentSuccess(rec, request(http.MethodGet, "/payment-success?session_id=cs_1", nil, borrower, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	page := f.views.last(t)
	assert.Equal(t, "payment_detail", page.name)
	assert.Equal(t, true, page.data["Confirmed"])

	app, err := f.mod.MyApplication(t.Context(), "sess-"+borrower.email, borrower.email, "app-1")
	require.NoError(t, err)
	assert.True(t, app.IsPaid())
	assert.Equal(t, "tx_cs_1", app.TransactionID)
}

func TestMyLoans_PaymentSuccessWithoutSession(t *testing.T) {
	_, h := myLoansFixture(fee)

	rec := httptest.NewRecorder()
	h.PaymentSuccess(rec, request(http.MethodGet, "/payment-success", nil, borrower, nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "flash_payment_failed", flashOf(rec))
}
