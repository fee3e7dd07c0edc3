package handlers

import (
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
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AppView is one application moderation table.
type AppView struct {
	Name    string
	Base    string
	Heading string
	// StatusFilter shows the status selector.
	StatusFilter bool
}

var (
	PendingApplications  = AppView{Name: moderation.ViewPending, Base: "/dashboard/pending-loans", Heading: "nav_pending"}
	ApprovedApplications = AppView{Name: moderation.ViewApproved, Base: "/dashboard/approved-loans", Heading: "nav_approved"}
	AllApplications      = AppView{Name: moderation.ViewAllApplications, Base: "/dashboard/loan-applications", Heading: "nav_all_applications", StatusFilter: true}
)

// ApplicationsHandler serves the moderation screens.
type ApplicationsHandler struct {
	mod    *moderation.Service
	gate   *policy.AuthGate
	views  Renderer
	logger *zap.Logger
}

func NewApplicationsHandler(mod *moderation.Service, ag *policy.AuthGate, views Renderer, logger *zap.Logger) *ApplicationsHandler {
	return &ApplicationsHandler{mod: mod, gate: ag, views: views, logger: logger}
}

// canModerate is true only on the pending table for roles allowed to decide.
func (h *ApplicationsHandler) canModerate(r *http.Request, v AppView) bool {
	return v.Name == moderation.ViewPending &&
		h.gate.CanRole(r.Context(), gate.ActionApprove, policy.ResourceApplication)
}

// List renders the applications of v.
func (h *ApplicationsHandler) List(v AppView) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apps, err := h.mod.Applications(r.Context(), sessionOf(r), v.Name, r.URL.Query().Has("refresh"))
		if err != nil {
			failure(w, r, h.views, h.logger, err)
			return
		}
		list := listview.Build(apps, listview.CriteriaFromQuery(r.URL.Query()), applicationFields)
		if httpx.WantsJSON(r) {
			httpx.JSON(w, http.StatusOK, listJSON(list))
			return
		}
		data := map[string]any{
			"List":        list,
			"Base":        v.Base,
			"Heading":     v.Heading,
			"CanModerate": h.canModerate(r, v),
		}
		if v.StatusFilter {
			data["Statuses"] = applicationStatuses
		}
		h.views.Render(w, r, http.StatusOK, "applications", data)
	}
}

// Detail shows one application of v.
func (h *ApplicationsHandler) Detail(v AppView) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app, err := h.mod.Application(r.Context(), sessionOf(r), v.Name, chi.URLParam(r, "id"))
		if err != nil {
			failure(w, r, h.views, h.logger, err)
			return
		}
		if httpx.WantsJSON(r) {
			httpx.JSON(w, http.StatusOK, app)
			return
		}
		h.views.Render(w, r, http.StatusOK, "application_detail", map[string]any{
			"App":         app,
			"Base":        v.Base,
			"CanModerate": h.canModerate(r, v) && !app.CurrentStatus().Terminal(),
		})
	}
}

// ConfirmApprove asks before approving.
func (h *ApplicationsHandler) ConfirmApprove(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, "confirm_approve", false)
}

// ConfirmReject asks before rejecting and takes an optional reason.
func (h *ApplicationsHandler) ConfirmReject(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, "confirm_reject", true)
}

func (h *ApplicationsHandler) confirm(w http.ResponseWriter, r *http.Request, question string, withReason bool) {
	app, err := h.mod.Application(r.Context(), sessionOf(r), moderation.ViewPending, chi.URLParam(r, "id"))
	if err != nil {
		failure(w, r, h.views, h.logger, err)
		return
	}
	h.views.Render(w, r, http.StatusOK, "confirm", map[string]any{
		"Question":   question,
		"Subject":    app.FullName() + " / " + app.LoanTitle,
		"Action":     r.URL.Path,
		"WithReason": withReason,
		"Back":       PendingApplications.Base,
	})
}

// Approve decides a pending application.
func (h *ApplicationsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		return
	}
	ctx := r.Context()
	id, _ := auth.IdentityFromContext(ctx)
	app, err := h.mod.Approve(ctx, id.SessionID, chi.URLParam(r, "id"), id.Email)
	h.decided(w, r, app, err, "flash_approved")
}

// Reject decides a pending application with the posted reason.
func (h *ApplicationsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		return
	}
	ctx := r.Context()
	app, err := h.mod.Reject(ctx, sessionOf(r), chi.URLParam(r, "id"), r.PostFormValue("reason"))
	h.decided(w, r, app, err, "flash_rejected")
}

func (h *ApplicationsHandler) decided(w http.ResponseWriter, r *http.Request, app models.LoanApplication, err error, flash string) {
	base := PendingApplications.Base
	switch {
	case err == nil:
	case errors.Is(err, models.ErrTerminalStatus):
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusConflict, "already_decided", nil)
			return
		}
		back(w, r, base, "flash_already_decided")
		return
	case api.IsNotFound(err) || httpx.WantsJSON(r):
		failure(w, r, h.views, h.logger, err)
		return
	default:
		h.logger.Warn("moderation failed", zap.String("application_id", app.ID), zap.Error(err))
		back(w, r, base, "flash_action_failed")
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]string{"id": app.ID, "status": string(app.Status)})
		return
	}
	back(w, r, base, flash)
}
