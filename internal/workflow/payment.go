package workflow

import (
	"net/url"
	"strings"

	"github.com/diewo77/microloan/internal/api"
	"github.com/diewo77/microloan/internal/models"
	"github.com/shopspring/decimal"
)

// PaymentPolicy decides when the application fee is offered.
type PaymentPolicy struct {
	Fee      decimal.Decimal
	Currency string
	// RequiresApproval hides the pay action until a manager approved the
	// application. When off, the fee is offered whatever the status.
	RequiresApproval bool
}

// PaymentStage places app on the payment branch of the flow: Listed when no
// payment is offered, PayPending when it is, Paid once recorded.
func (p PaymentPolicy) PaymentStage(app models.LoanApplication) State {
	if app.IsPaid() {
		return Paid
	}
	if p.RequiresApproval && app.CurrentStatus() != models.StatusApproved {
		return Listed
	}
	return PayPending
}

// CanPay reports whether the pay action is offered for app.
func (p PaymentPolicy) CanPay(app models.LoanApplication) bool {
	return p.PaymentStage(app) == PayPending
}

// SessionRequest builds the checkout request that moves app to Paying.
// baseURL is this site's public origin; the provider returns the browser to
// the success path with its session id appended.
func (p PaymentPolicy) SessionRequest(app models.LoanApplication, baseURL string) (api.PaymentSessionRequest, error) {
	if app.IsPaid() {
		return api.PaymentSessionRequest{}, models.ErrAlreadyPaid
	}
	base := strings.TrimRight(baseURL, "/")
	return api.PaymentSessionRequest{
		ApplicationID: app.ID,
		LoanTitle:     app.LoanTitle,
		CustomerEmail: app.ApplicantEmail,
		Amount:        p.Fee,
		Currency:      p.Currency,
		SuccessURL:    base + "/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     base + "/dashboard/my-loans?" + url.Values{"cancelled": {app.ID}}.Encode(),
	}, nil
}
