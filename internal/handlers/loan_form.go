package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/diewo77/microloan/internal/models"
	"github.com/diewo77/microloan/validation"
	"github.com/shopspring/decimal"
)

var maxInterestRate = decimal.NewFromInt(100)

// loanForm is the add/edit product form as typed.
type loanForm struct {
	Title             string
	ShortDescription  string
	Description       string
	Category          string
	InterestRate      string
	MaxLimit          string
	Tenure            string
	RequiredDocuments string
	EMIPlans          string
	ImageURL          string
	ShowOnHome        bool
}

func loanFormFromRequest(r *http.Request) loanForm {
	get := func(k string) string { return strings.TrimSpace(r.FormValue(k)) }
	show, _ := strconv.ParseBool(get("showOnHome"))
	return loanForm{
		Title:             get("title"),
		ShortDescription:  get("shortDescription"),
		Description:       get("description"),
		Category:          get("category"),
		InterestRate:      get("interestRate"),
		MaxLimit:          get("maxLimit"),
		Tenure:            get("tenure"),
		RequiredDocuments: get("requiredDocuments"),
		EMIPlans:          get("availableEMIPlans"),
		ImageURL:          get("imageUrl"),
		ShowOnHome:        show,
	}
}

func loanFormFromProduct(l models.LoanProduct) loanForm {
	plans := make([]string, 0, len(l.EMIPlans))
	for _, p := range l.EMIPlans {
		plans = append(plans, p.String())
	}
	f := loanForm{
		Title:             l.Title,
		ShortDescription:  l.ShortDescription,
		Description:       l.Description,
		Category:          l.Category,
		InterestRate:      decimal.NewFromFloat(l.InterestRate).String(),
		Tenure:            l.Tenure.String(),
		RequiredDocuments: strings.Join(l.RequiredDocuments, "\n"),
		EMIPlans:          strings.Join(plans, ", "),
		ImageURL:          l.ImageURL,
		ShowOnHome:        l.ShowOnHome,
	}
	if l.HasMaxLimit() {
		f.MaxLimit = l.MaxLimit.String()
	}
	return f
}

func (f loanForm) validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("title", f.Title, v)
	validation.Required("category", f.Category, v)
	validation.Required("description", f.Description, v)
	if rate, ok := validation.Decimal("interestRate", f.InterestRate, v); ok {
		validation.RangeDecimal("interestRate", rate, decimal.Zero, maxInterestRate, v)
	}
	if limit, ok := validation.Decimal("maxLimit", f.MaxLimit, v); ok {
		validation.PositiveDecimal("maxLimit", limit, v)
	}
	return v
}

// input converts a validated form.
func (f loanForm) input(createdBy string) models.LoanInput {
	rate, _ := decimal.NewFromString(f.InterestRate)
	limit, _ := decimal.NewFromString(f.MaxLimit)
	return models.LoanInput{
		Title:             f.Title,
		ShortDescription:  f.ShortDescription,
		Description:       f.Description,
		Category:          f.Category,
		InterestRate:      rate.InexactFloat64(),
		MaxLimit:          limit.InexactFloat64(),
		Tenure:            f.Tenure,
		RequiredDocuments: models.SplitList(f.RequiredDocuments),
		EMIPlans:          models.SplitList(f.EMIPlans),
		ImageURL:          f.ImageURL,
		ShowOnHome:        f.ShowOnHome,
		CreatedBy:         createdBy,
	}
}
