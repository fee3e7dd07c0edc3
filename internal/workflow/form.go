package workflow

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/diewo77/microloan/auth"
	"github.com/diewo77/microloan/internal/models"
	"github.com/diewo77/microloan/validation"
	"github.com/shopspring/decimal"
)

// ErrInvalidForm is returned by Payload when the form still has violations.
var ErrInvalidForm = errors.New("application form is invalid")

var (
	MinLoanAmount    = decimal.NewFromInt(500)
	MaxLoanAmount    = decimal.NewFromInt(25000)
	MinMonthlyIncome = decimal.NewFromInt(500)
)

const (
	minNationalIDLength = 6
	minAddressLength    = 10
)

var phonePattern = regexp.MustCompile(`^[0-9+\-() ]+$`)

// IncomeSources are the accepted values of incomeSource.
var IncomeSources = []string{
	"Employment",
	"Business",
	"Freelance",
	"Self-Employed",
	"Investment",
	"Pension",
	"Other",
}

// LoanReasons are the accepted values of reasonForLoan.
var LoanReasons = []string{
	"Business Expansion",
	"Education",
	"Medical Expenses",
	"Home Improvement",
	"Debt Consolidation",
	"Agriculture",
	"Personal",
	"Other",
}

// Form is the raw application form as posted. Fields stay strings so a
// rejected submission re-renders exactly what the user typed.
type Form struct {
	FirstName     string
	LastName      string
	ContactNumber string
	NationalID    string
	IncomeSource  string
	MonthlyIncome string
	LoanAmount    string
	ReasonForLoan string
	Address       string
	ExtraNotes    string
}

// FormFromValues reads a posted form.
func FormFromValues(v url.Values) Form {
	get := func(k string) string { return strings.TrimSpace(v.Get(k)) }
	return Form{
		FirstName:     get("firstName"),
		LastName:      get("lastName"),
		ContactNumber: get("contactNumber"),
		NationalID:    get("nationalId"),
		IncomeSource:  get("incomeSource"),
		MonthlyIncome: get("monthlyIncome"),
		LoanAmount:    get("loanAmount"),
		ReasonForLoan: get("reasonForLoan"),
		Address:       get("address"),
		ExtraNotes:    v.Get("extraNotes"),
	}
}

// AmountBounds returns the inclusive loan amount range for product. A
// product's own maxLimit can only lower the global ceiling.
func AmountBounds(product models.LoanProduct) (lo, hi decimal.Decimal) {
	hi = MaxLoanAmount
	if product.HasMaxLimit() && product.MaxLimit.LessThan(hi) {
		hi = product.MaxLimit
	}
	return MinLoanAmount, hi
}

// Validate applies every field rule. The result is empty when the form may
// be submitted.
func (f Form) Validate(product models.LoanProduct) validation.Violations {
	v := validation.Violations{}
	validation.Required("firstName", f.FirstName, v)
	validation.Required("lastName", f.LastName, v)

	validation.Required("contactNumber", f.ContactNumber, v)
	validation.Matches("contactNumber", f.ContactNumber, phonePattern, v)

	validation.Required("nationalId", f.NationalID, v)
	validation.MinLength("nationalId", f.NationalID, minNationalIDLength, v)

	validation.Required("incomeSource", f.IncomeSource, v)
	validation.OneOf("incomeSource", f.IncomeSource, IncomeSources, v)

	if income, ok := validation.Decimal("monthlyIncome", f.MonthlyIncome, v); ok {
		validation.MinDecimal("monthlyIncome", income, MinMonthlyIncome, v)
	}
	if amount, ok := validation.Decimal("loanAmount", f.LoanAmount, v); ok {
		lo, hi := AmountBounds(product)
		validation.RangeDecimal("loanAmount", amount, lo, hi, v)
	}

	validation.Required("reasonForLoan", f.ReasonForLoan, v)
	validation.OneOf("reasonForLoan", f.ReasonForLoan, LoanReasons, v)

	validation.Required("address", f.Address, v)
	validation.MinLength("address", f.Address, minAddressLength, v)
	return v
}

// Payload validates f and builds the submission. Applicant email, loan title
// and interest rate come from the session and the product, never the form.
func (f Form) Payload(id auth.Identity, product models.LoanProduct, now time.Time) (models.ApplicationPayload, validation.Violations, error) {
	if v := f.Validate(product); !v.Empty() {
		return models.ApplicationPayload{}, v, ErrInvalidForm
	}
	// Both parse: Validate accepted them.
	income, _ := decimal.NewFromString(f.MonthlyIncome)
	amount, _ := decimal.NewFromString(f.LoanAmount)

	p := models.ApplicationPayload{
		LoanID:         product.ID,
		LoanTitle:      product.Title,
		InterestRate:   product.InterestRate,
		ApplicantEmail: id.Email,
		FirstName:      f.FirstName,
		LastName:       f.LastName,
		ContactNumber:  f.ContactNumber,
		NationalID:     f.NationalID,
		IncomeSource:   f.IncomeSource,
		MonthlyIncome:  income.InexactFloat64(),
		LoanAmount:     amount.InexactFloat64(),
		ReasonForLoan:  f.ReasonForLoan,
		Address:        f.Address,
		Status:         models.StatusPending,
		PaymentStatus:  models.PaymentUnpaid,
		AppliedAt:      now.UTC(),
	}
	if notes := strings.TrimSpace(f.ExtraNotes); notes != "" {
		p.ExtraNotes = &notes
	}
	return p, nil, nil
}
