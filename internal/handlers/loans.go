package handlers

import (
	"context"
	"net/http"

	"github.com/diewo77/microloan/gate"
	"github.com/diewo77/microloan/httpx"
	"github.com/diewo77/microloan/internal/listview"
	"github.com/diewo77/microloan/internal/models"
	"github.com/diewo77/microloan/internal/policy"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LoanSource reads published loan products.
type LoanSource interface {
	ListLoans(ctx context.Context) ([]models.LoanProduct, error)
	GetLoan(ctx context.Context, id string) (models.LoanProduct, error)
}

var loanFields = listview.Fields[models.LoanProduct]{
	Category: func(l models.LoanProduct) string { return l.Category },
	Searchable: func(l models.LoanProduct) []string {
		return []string{l.Title, l.Category, l.ShortDescription}
	},
}

// LoanHandler serves the public catalog.
type LoanHandler struct {
	loans  LoanSource
	gate   *policy.AuthGate
	views  Renderer
	logger *zap.Logger
}

func NewLoanHandler(loans LoanSource, ag *policy.AuthGate, views Renderer, logger *zap.Logger) *LoanHandler {
	return &LoanHandler{loans: loans, gate: ag, views: views, logger: logger}
}

// Home shows the products flagged showOnHome.
func (h *LoanHandler) Home(w http.ResponseWriter, r *http.Request) {
	all, err := h.loans.ListLoans(r.Context())
	if err != nil {
		failure(w, r, h.views, h.logger, err)
		return
	}
	featured := make([]models.LoanProduct, 0, len(all))
	for _, l := range all {
		if l.ShowOnHome {
			featured = append(featured, l)
		}
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"featured": featured})
		return
	}
	h.views.Render(w, r, http.StatusOK, "home", map[string]any{"Featured": featured})
}

// Catalog lists every product with category filter and search.
func (h *LoanHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	all, err := h.loans.ListLoans(r.Context())
	if err != nil {
		failure(w, r, h.views, h.logger, err)
		return
	}
	list := listview.Build(all, listview.CriteriaFromQuery(r.URL.Query()), loanFields)
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, listJSON(list))
		return
	}
	h.views.Render(w, r, http.StatusOK, "loans", map[string]any{"List": list})
}

// Detail shows one product, or the not-found state.
func (h *LoanHandler) Detail(w http.ResponseWriter, r *http.Request) {
	loan, err := h.loans.GetLoan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		failure(w, r, h.views, h.logger, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, loan)
		return
	}
	ctx := r.Context()
	canApply := policy.CurrentRole(ctx) == models.RoleAnonymous ||
		h.gate.CanRole(ctx, gate.ActionCreate, policy.ResourceApplication)
	h.views.Render(w, r, http.StatusOK, "loan_detail", map[string]any{
		"Loan":     loan,
		"CanApply": canApply,
	})
}

// listJSON is the JSON shape of every list page.
func listJSON[T any](list listview.Result[T]) map[string]any {
	return map[string]any{
		"items":      list.Items,
		"total":      list.Total,
		"categories": list.Categories,
		"criteria": map[string]string{
			"category": list.Criteria.Category,
			"q":        list.Criteria.Query,
			"status":   list.Criteria.Status,
		},
	}
}
