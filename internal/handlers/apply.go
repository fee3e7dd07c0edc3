package handlers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/diewo77/microloan/auth"
	"github.com/diewo77/microloan/gate"
	"github.com/diewo77/microloan/httpx"
	"github.com/diewo77/microloan/internal/middleware"
	"github.com/diewo77/microloan/internal/models"
	"github.com/diewo77/microloan/internal/moderation"
	"github.com/diewo77/microloan/internal/policy"
	"github.com/diewo77/microloan/internal/workflow"
	"github.com/diewo77/microloan/validation"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ApplicationCreator submits loan applications.
type ApplicationCreator interface {
	CreateApplication(ctx context.Context, p models.ApplicationPayload) (string, error)
}

// Invalidator marks dashboard working sets stale.
type Invalidator interface {
	Invalidate(session string, views ...string)
}

// ApplyHandler runs the apply flow from the loan detail page to the
// submitted confirmation.
type ApplyHandler struct {
	loans  LoanSource
	apps   ApplicationCreator
	lists  Invalidator
	gate   *policy.AuthGate
	pages  policy.Pages
	views  Renderer
	logger *zap.Logger
	now    func() time.Time
}

func NewApplyHandler(loans LoanSource, apps ApplicationCreator, lists Invalidator, ag *policy.AuthGate, pages policy.Pages, views Renderer, logger *zap.Logger) *ApplyHandler {
	return &ApplyHandler{
		loans:  loans,
		apps:   apps,
		lists:  lists,
		gate:   ag,
		pages:  pages,
		views:  views,
		logger: logger,
		now:    time.Now,
	}
}

// Start handles the Apply button. Anonymous visitors get the sign-in
// interstitial; signed-in users go straight to the form.
func (h *ApplyHandler) Start(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_, signedIn := auth.IdentityFromContext(r.Context())
	step := workflow.OnApply(signedIn, id)
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]string{"state": step.State.String(), "location": step.Location})
		return
	}
	if step.State != workflow.AuthGate {
		http.Redirect(w, r, step.Location, http.StatusSeeOther)
		return
	}
	loan, err := h.loans.GetLoan(r.Context(), id)
	if err != nil {
		failure(w, r, h.views, h.logger, err)
		return
	}
	h.views.Render(w, r, http.StatusOK, "apply_gate", map[string]any{
		"Loan":   loan,
		"SignIn": step.Location,
	})
}

// Form shows an empty application form for the loan.
func (h *ApplyHandler) Form(w http.ResponseWriter, r *http.Request) {
	if !h.gate.CanRole(r.Context(), gate.ActionCreate, policy.ResourceApplication) {
		h.pages.Forbidden(w, r)
		return
	}
	loan, err := h.loans.GetLoan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		failure(w, r, h.views, h.logger, err)
		return
	}
	h.renderForm(w, r, http.StatusOK, loan, workflow.Form{}, validation.Violations{}, nil)
}

// Submit validates and posts the application. A rejected or failed
// submission re-renders the form with everything the user typed.
func (h *ApplyHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.gate.CanRole(ctx, gate.ActionCreate, policy.ResourceApplication) {
		h.pages.Forbidden(w, r)
		return
	}
	id, _ := auth.IdentityFromContext(ctx)
	if err := r.ParseForm(); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_form", nil)
		return
	}
	loan, err := h.loans.GetLoan(ctx, chi.URLParam(r, "id"))
	if err != nil {
		failure(w, r, h.views, h.logger, err)
		return
	}

	form := workflow.FormFromValues(r.PostForm)
	payload, violations, err := form.Payload(*id, loan, h.now())
	if err != nil {
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", violations)
			return
		}
		h.renderForm(w, r, http.StatusUnprocessableEntity, loan, form, violations, &formError{Message: "flash_form_invalid"})
		return
	}

	appID, err := h.apps.CreateApplication(ctx, payload)
	if err != nil {
		h.logger.Warn("application submit failed", zap.String("loan_id", loan.ID), zap.Error(err))
		if httpx.WantsJSON(r) {
			failure(w, r, h.views, h.logger, err)
			return
		}
		h.renderForm(w, r, http.StatusBadGateway, loan, form, validation.Violations{}, newFormError(err))
		return
	}
	h.lists.Invalidate(id.SessionID, moderation.ViewMyLoans)
	h.logger.Info("application submitted", zap.String("loan_id", loan.ID), zap.String("application_id", appID))

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, map[string]string{"id": appID, "state": workflow.Submitted.String()})
		return
	}
	middleware.Flash(w, "flash_application_submitted")
	http.Redirect(w, r, "/application-submitted?"+url.Values{"id": {appID}}.Encode(), http.StatusSeeOther)
}

// Submitted confirms a successful submission.
func (h *ApplyHandler) Submitted(w http.ResponseWriter, r *http.Request) {
	h.views.Render(w, r, http.StatusOK, "apply_submitted", map[string]any{
		"ApplicationID": r.URL.Query().Get("id"),
	})
}

func (h *ApplyHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, loan models.LoanProduct, form workflow.Form, errs validation.Violations, fe *formError) {
	id, _ := auth.IdentityFromContext(r.Context())
	lo, hi := workflow.AmountBounds(loan)
	data := map[string]any{
		"Loan":          loan,
		"Form":          form,
		"Errors":        errs,
		"Email":         id.Email,
		"IncomeSources": workflow.IncomeSources,
		"LoanReasons":   workflow.LoanReasons,
		"MinAmount":     lo,
		"MaxAmount":     hi,
	}
	if fe != nil {
		data["FormError"] = fe
	}
	h.views.Render(w, r, status, "apply_form", data)
}
