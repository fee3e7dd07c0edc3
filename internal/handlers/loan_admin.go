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
	"github.com/diewo77/microloan/internal/storage"
	"github.com/diewo77/microloan/validation"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LoanView is one loan management table.
type LoanView struct {
	Name    string
	Base    string
	Heading string
}

var (
	ManageLoans = LoanView{Name: moderation.ViewManageLoans, Base: "/dashboard/manage-loans", Heading: "nav_manage_loans"}
	AllLoans    = LoanView{Name: moderation.ViewAllLoans, Base: "/dashboard/all-loans", Heading: "nav_all_loans"}
)

// LoanAdminHandler serves product management for managers and admins.
type LoanAdminHandler struct {
	mod      *moderation.Service
	loans    LoanSource
	uploader storage.Uploader
	gate     *policy.AuthGate
	views    Renderer
	logger   *zap.Logger
}

// NewLoanAdminHandler creates the handler. uploader may be nil, in which
// case the form only takes an image URL.
func NewLoanAdminHandler(mod *moderation.Service, loans LoanSource, uploader storage.Uploader, ag *policy.AuthGate, views Renderer, logger *zap.Logger) *LoanAdminHandler {
	return &LoanAdminHandler{mod: mod, loans: loans, uploader: uploader, gate: ag, views: views, logger: logger}
}

// List renders the management table of v.
func (h *LoanAdminHandler) List(v LoanView) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		all, err := h.mod.Loans(ctx, sessionOf(r), v.Name, r.URL.Query().Has("refresh"))
		if err != nil {
			failure(w, r, h.views, h.logger, err)
			return
		}
		list := listview.Build(all, listview.CriteriaFromQuery(r.URL.Query()), loanFields)
		if httpx.WantsJSON(r) {
			httpx.JSON(w, http.StatusOK, listJSON(list))
			return
		}
		h.views.Render(w, r, http.StatusOK, "manage_loans", map[string]any{
			"List":      list,
			"Base":      v.Base,
			"Heading":   v.Heading,
			"CanToggle": h.gate.CanRole(ctx, gate.ActionUpdate, policy.ResourceLoan),
		})
	}
}

// ToggleVisibility flips showOnHome for one product of v.
func (h *LoanAdminHandler) ToggleVisibility(v LoanView) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		show, err := h.mod.ToggleVisibility(r.Context(), sessionOf(r), v.Name, id)
		if httpx.WantsJSON(r) {
			if err != nil {
				failure(w, r, h.views, h.logger, err)
				return
			}
			httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "showOnHome": show})
			return
		}
		if err != nil {
			h.logger.Warn("visibility toggle failed", zap.String("loan_id", id), zap.Error(err))
			back(w, r, v.Base, "flash_action_failed")
			return
		}
		back(w, r, v.Base, "flash_visibility_saved")
	}
}

// ConfirmDelete asks before deleting a product.
func (h *LoanAdminHandler) ConfirmDelete(v LoanView) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loan, err := h.loans.GetLoan(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			failure(w, r, h.views, h.logger, err)
			return
		}
		h.views.Render(w, r, http.StatusOK, "confirm", map[string]any{
			"Question": "confirm_delete",
			"Subject":  loan.Title,
			"Action":   r.URL.Path,
			"Back":     v.Base,
		})
	}
}

// Delete removes a product once the backend confirmed it.
func (h *LoanAdminHandler) Delete(v LoanView) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !confirmed(r) {
			http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
			return
		}
		id := chi.URLParam(r, "id")
		if err := h.mod.DeleteLoan(r.Context(), sessionOf(r), v.Name, id); err != nil {
			if httpx.WantsJSON(r) || api.IsNotFound(err) {
				failure(w, r, h.views, h.logger, err)
				return
			}
			h.logger.Warn("loan delete failed", zap.String("loan_id", id), zap.Error(err))
			back(w, r, v.Base, "flash_action_failed")
			return
		}
		if httpx.WantsJSON(r) {
			httpx.JSON(w, http.StatusOK, map[string]string{"deleted": id})
			return
		}
		back(w, r, v.Base, "flash_loan_deleted")
	}
}

// New shows the empty product form.
func (h *LoanAdminHandler) New(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, "/dashboard/add-loan", false, loanForm{}, validation.Violations{}, nil)
}

// Create publishes a new product.
func (h *LoanAdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := auth.IdentityFromContext(ctx)
	form, errs, ok := h.readForm(w, r)
	if !ok {
		return
	}
	if !errs.Empty() {
		h.renderForm(w, r, http.StatusUnprocessableEntity, "/dashboard/add-loan", false, form, errs, nil)
		return
	}
	loanID, err := h.mod.CreateLoan(ctx, id.SessionID, form.input(id.Email))
	if err != nil {
		h.logger.Warn("loan create failed", zap.Error(err))
		h.renderForm(w, r, http.StatusBadGateway, "/dashboard/add-loan", false, form, errs, newFormError(err))
		return
	}
	h.logger.Info("loan created", zap.String("loan_id", loanID), zap.String("by", id.Email))
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, map[string]string{"id": loanID})
		return
	}
	back(w, r, ManageLoans.Base, "flash_loan_saved")
}

// Edit shows the form filled with the current product.
func (h *LoanAdminHandler) Edit(w http.ResponseWriter, r *http.Request) {
	loan, err := h.loans.GetLoan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		failure(w, r, h.views, h.logger, err)
		return
	}
	h.renderForm(w, r, http.StatusOK, r.URL.Path, true, loanFormFromProduct(loan), validation.Violations{}, nil)
}

// Update replaces the editable fields of a product.
func (h *LoanAdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := auth.IdentityFromContext(ctx)
	loanID := chi.URLParam(r, "id")
	form, errs, ok := h.readForm(w, r)
	if !ok {
		return
	}
	if !errs.Empty() {
		h.renderForm(w, r, http.StatusUnprocessableEntity, r.URL.Path, true, form, errs, nil)
		return
	}
	if err := h.mod.UpdateLoan(ctx, id.SessionID, loanID, form.input("")); err != nil {
		h.logger.Warn("loan update failed", zap.String("loan_id", loanID), zap.Error(err))
		h.renderForm(w, r, http.StatusBadGateway, r.URL.Path, true, form, errs, newFormError(err))
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]string{"id": loanID})
		return
	}
	dest := ManageLoans.Base
	if policy.CurrentRole(ctx) == models.RoleAdmin {
		dest = AllLoans.Base
	}
	back(w, r, dest, "flash_loan_saved")
}

// readForm parses the posted product and uploads its image when one was
// attached. ok is false when a response was already written.
func (h *LoanAdminHandler) readForm(w http.ResponseWriter, r *http.Request) (loanForm, validation.Violations, bool) {
	if err := r.ParseMultipartForm(storage.MaxImageSize + 1<<20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_form", nil)
		return loanForm{}, nil, false
	}
	form := loanFormFromRequest(r)
	errs := form.validate()
	if h.uploader == nil || r.MultipartForm == nil {
		return form, errs, true
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		return form, errs, true
	}
	defer file.Close()
	if !errs.Empty() {
		return form, errs, true
	}
	imageURL, err := h.uploader.Upload(r.Context(), header.Filename, file)
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		errs["image"] = "image_too_large"
	case errors.Is(err, storage.ErrNotAnImage):
		errs["image"] = "not_an_image"
	case err != nil:
		h.logger.Error("image upload failed", zap.Error(err))
		errs["image"] = "error_backend"
	default:
		form.ImageURL = imageURL
	}
	return form, errs, true
}

func (h *LoanAdminHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, action string, editing bool, form loanForm, errs validation.Violations, fe *formError) {
	if httpx.WantsJSON(r) && status >= http.StatusBadRequest {
		if fe != nil {
			httpx.JSONError(w, status, "backend_error", fe.Detail)
			return
		}
		httpx.JSONError(w, status, "validation_failed", errs)
		return
	}
	data := map[string]any{
		"Action":        action,
		"Editing":       editing,
		"Form":          form,
		"Errors":        errs,
		"UploadEnabled": h.uploader != nil,
	}
	if fe != nil {
		data["FormError"] = fe
	}
	h.views.Render(w, r, status, "loan_form", data)
}
