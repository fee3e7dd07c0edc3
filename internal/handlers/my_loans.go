package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/diewo77/microloan/auth"
	"github.com/diewo77/microloan/gate"
	"github.com/diewo77/microloan/httpx"
	"github.com/diewo77/microloan/internal/api"
	"github.com/diewo77/microloan/internal/listview"
	"github.com/diewo77/microloan/internal/models"
	"github.com/diewo77/microloan/internal/moderation"
	"github.com/diewo77/microloan/internal/policy"
	"github.com/diewo77/microloan/internal/workflow"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Payments is the fee side of the backend.
type Payments interface {
	CreatePaymentSession(ctx context.Context, req api.PaymentSessionRequest) (api.PaymentSession, error)
	GetPayment(ctx context.Context, applicationID string) (models.PaymentRecord, error)
	ConfirmPayment(ctx context.Context, sessionID string) (models.PaymentRecord, error)
}

var applicationStatuses = []string{
	string(models.StatusPending),
	string(models.StatusApproved),
	string(models.StatusRejected),
}

var applicationFields = listview.Fields[models.LoanApplication]{
	Category: func(a models.LoanApplication) string { return a.LoanTitle },
	Status:   func(a models.LoanApplication) string { return string(a.CurrentStatus()) },
	Searchable: func(a models.LoanApplication) []string {
		return []string{a.FullName(), a.ApplicantEmail, a.LoanTitle}
	},
}

// myLoanRow is one line of the borrower's application table.
type myLoanRow struct {
	App       models.LoanApplication
	CanCancel bool
	CanPay    bool
}

// MyLoansHandler serves the borrower's applications and the fee payment.
type MyLoansHandler struct {
	mod      *moderation.Service
	payments Payments
	policy   workflow.PaymentPolicy
	baseURL  string
	gate     *policy.AuthGate
	pages    policy.Pages
	views    Renderer
	logger   *zap.Logger
}

func NewMyLoansHandler(mod *moderation.Service, payments Payments, pp workflow.PaymentPolicy, baseURL string, ag *policy.AuthGate, pages policy.Pages, views Renderer, logger *zap.Logger) *MyLoansHandler {
	return &MyLoansHandler{
		mod:      mod,
		payments: payments,
		policy:   pp,
		baseURL:  baseURL,
		gate:     ag,
		pages:    pages,
		views:    views,
		logger:   logger,
	}
}

// List shows the signed-in user's applications with a status filter.
func (h *MyLoansHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := auth.IdentityFromContext(ctx)
	apps, err := h.mod.MyApplications(ctx, id.SessionID, id.Email, r.URL.Query().Has("refresh"))
	if err != nil {
		failure(w, r, h.views, h.logger, err)
		return
	}
	list := listview.Build(apps, listview.CriteriaFromQuery(r.URL.Query()), applicationFields)
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, listJSON(list))
		return
	}
	rows := make([]myLoanRow, 0, len(list.Items))
	for _, app := range list.Items {
		rows = append(rows, myLoanRow{
			App:       app,
			CanCancel: app.CanDelete() && h.gate.Can(ctx, gate.ActionDelete, policy.ResourceApplication, &app),
			CanPay:    h.policy.CanPay(app) && h.gate.Can(ctx, gate.ActionPay, policy.ResourceApplication, &app),
		})
	}
	h.views.Render(w, r, http.StatusOK, "my_loans", map[string]any{
		"List":     list,
		"Rows":     rows,
		"Statuses": applicationStatuses,
		"Fee":      h.policy.Fee,
	})
}

// ConfirmCancel asks before withdrawing an application.
func (h *MyLoansHandler) ConfirmCancel(w http.ResponseWriter, r *http.Request) {
	app, ok := h.own(w, r)
	if !ok {
		return
	}
	h.views.Render(w, r, http.StatusOK, "confirm", map[string]any{
		"Question": "confirm_cancel",
		"Subject":  app.LoanTitle,
		"Action":   r.URL.Path,
		"Back":     "/dashboard/my-loans",
	})
}

// Cancel withdraws a pending application.
func (h *MyLoansHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		return
	}
	ctx := r.Context()
	id, _ := auth.IdentityFromContext(ctx)
	appID := chi.URLParam(r, "id")
	err := h.mod.CancelApplication(ctx, id.SessionID, id.Email, appID)
	switch {
	case err == nil:
		h.logger.Info("application cancelled", zap.String("application_id", appID))
		back(w, r, "/dashboard/my-loans", "flash_application_cancelled")
	case errors.Is(err, models.ErrNotDeletable):
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusConflict, "not_deletable", nil)
			return
		}
		back(w, r, "/dashboard/my-loans", "flash_not_deletable")
	case api.IsNotFound(err):
		failure(w, r, h.views, h.logger, err)
	default:
		h.logger.Warn("application cancel failed", zap.String("application_id", appID), zap.Error(err))
		back(w, r, "/dashboard/my-loans", "flash_action_failed")
	}
}

// Pay opens a checkout session for the application fee and sends the
// browser to it.
func (h *MyLoansHandler) Pay(w http.ResponseWriter, r *http.Request) {
	app, ok := h.own(w, r)
	if !ok {
		return
	}
	if app.IsPaid() {
		back(w, r, "/dashboard/my-loans", "flash_already_paid")
		return
	}
	if !h.policy.CanPay(app) || !h.gate.Can(r.Context(), gate.ActionPay, policy.ResourceApplication, &app) {
		h.pages.Forbidden(w, r)
		return
	}
	req, err := h.policy.SessionRequest(app, h.baseURL)
	if err != nil {
		back(w, r, "/dashboard/my-loans", "flash_already_paid")
		return
	}
	sess, err := h.payments.CreatePaymentSession(r.Context(), req)
	if err != nil {
		h.logger.Warn("payment session failed", zap.String("application_id", app.ID), zap.Error(err))
		back(w, r, "/dashboard/my-loans", "flash_payment_failed")
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]string{"id": sess.ID, "url": sess.URL, "state": workflow.Paying.String()})
		return
	}
	http.Redirect(w, r, sess.URL, http.StatusSeeOther)
}

// Payment shows the recorded payment of a paid application.
func (h *MyLoansHandler) Payment(w http.ResponseWriter, r *http.Request) {
	app, ok := h.own(w, r)
	if !ok {
		return
	}
	rec, err := h.payments.GetPayment(r.Context(), app.ID)
	if err != nil {
		failure(w, r, h.views, h.logger, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, rec)
		return
	}
	h.views.Render(w, r, http.StatusOK, "payment_detail", map[string]any{"Payment": rec})
}

// PaymentSuccess is where the payment provider returns the browser. The
// backend confirms the session before anything is shown as paid.
func (h *MyLoansHandler) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		back(w, r, "/dashboard/my-loans", "flash_payment_failed")
		return
	}
	ctx := r.Context()
	rec, err := h.payments.ConfirmPayment(ctx, sessionID)
	if err != nil {
		failure(w, r, h.views, h.logger, err)
		return
	}
	h.mod.MarkPaid(sessionOf(r), rec)
	h.logger.Info("payment confirmed",
		zap.String("application_id", rec.ApplicationID),
		zap.String("transaction_id", rec.TransactionID))
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, rec)
		return
	}
	h.views.Render(w, r, http.StatusOK, "payment_detail", map[string]any{
		"Payment":   rec,
		"Confirmed": true,
	})
}

// own loads one of the signed-in user's applications, rendering the error
// itself when it cannot.
func (h *MyLoansHandler) own(w http.ResponseWriter, r *http.Request) (models.LoanApplication, bool) {
	ctx := r.Context()
	id, _ := auth.IdentityFromContext(ctx)
	app, err := h.mod.MyApplication(ctx, id.SessionID, id.Email, chi.URLParam(r, "id"))
	if err != nil {
		failure(w, r, h.views, h.logger, err)
		return app, false
	}
	if err := h.gate.Authorize(ctx, gate.ActionView, policy.ResourceApplication, &app); err != nil {
		h.pages.Forbidden(w, r)
		return app, false
	}
	return app, true
}
