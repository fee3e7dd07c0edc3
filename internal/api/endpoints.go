package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/diewo77/microloan/internal/models"
	"github.com/shopspring/decimal"
)

// insertResult is the backend's answer to POST on a collection.
type insertResult struct {
	InsertedID string `json:"insertedId"`
	ID         string `json:"_id"`
}

func (r insertResult) id() string {
	if r.InsertedID != "" {
		return r.InsertedID
	}
	return r.ID
}

// ListLoans returns every loan product in backend order.
func (c *Client) ListLoans(ctx context.Context) ([]models.LoanProduct, error) {
	var out []models.LoanProduct
	err := c.do(ctx, http.MethodGet, "GET /all-loans", "/all-loans", nil, nil, &out)
	return out, err
}

// GetLoan returns one loan product; a missing id yields ErrNotFound.
func (c *Client) GetLoan(ctx context.Context, id string) (models.LoanProduct, error) {
	var out models.LoanProduct
	err := c.do(ctx, http.MethodGet, "GET /all-loans/:id", "/all-loans/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// CreateLoan publishes a loan product and returns its id.
func (c *Client) CreateLoan(ctx context.Context, in models.LoanInput) (string, error) {
	var res insertResult
	if err := c.do(ctx, http.MethodPost, "POST /all-loans", "/all-loans", nil, in, &res); err != nil {
		return "", err
	}
	return res.id(), nil
}

// UpdateLoan applies a partial update, including the home-page visibility flag.
func (c *Client) UpdateLoan(ctx context.Context, id string, patch models.LoanPatch) error {
	return c.do(ctx, http.MethodPatch, "PATCH /all-loans/:id", "/all-loans/"+url.PathEscape(id), nil, patch, nil)
}

// DeleteLoan removes a loan product.
func (c *Client) DeleteLoan(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "DELETE /all-loans/:id", "/all-loans/"+url.PathEscape(id), nil, nil, nil)
}

// ListApplications returns every application (manager and admin screens).
func (c *Client) ListApplications(ctx context.Context) ([]models.LoanApplication, error) {
	var out []models.LoanApplication
	err := c.do(ctx, http.MethodGet, "GET /loan-applications", "/loan-applications", nil, nil, &out)
	return out, err
}

// ListUserApplications returns the applications submitted by email.
func (c *Client) ListUserApplications(ctx context.Context, email string) ([]models.LoanApplication, error) {
	var out []models.LoanApplication
	err := c.do(ctx, http.MethodGet, "GET /loan-applications/user/:email",
		"/loan-applications/user/"+url.PathEscape(email), nil, nil, &out)
	return out, err
}

// CreateApplication submits an application and returns its id.
func (c *Client) CreateApplication(ctx context.Context, p models.ApplicationPayload) (string, error) {
	var res insertResult
	if err := c.do(ctx, http.MethodPost, "POST /loan-applications", "/loan-applications", nil, p, &res); err != nil {
		return "", err
	}
	return res.id(), nil
}

// UpdateApplication sends moderation fields.
func (c *Client) UpdateApplication(ctx context.Context, id string, patch models.ApplicationPatch) error {
	return c.do(ctx, http.MethodPatch, "PATCH /loan-applications/:id",
		"/loan-applications/"+url.PathEscape(id), nil, patch, nil)
}

// DeleteApplication cancels an application.
func (c *Client) DeleteApplication(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "DELETE /loan-applications/:id",
		"/loan-applications/"+url.PathEscape(id), nil, nil, nil)
}

// GetPayment returns the payment record of an application.
func (c *Client) GetPayment(ctx context.Context, applicationID string) (models.PaymentRecord, error) {
	var out models.PaymentRecord
	err := c.do(ctx, http.MethodGet, "GET /payment-details/:applicationId",
		"/payment-details/"+url.PathEscape(applicationID), nil, nil, &out)
	return out, err
}

// ConfirmPayment exchanges a checkout session id for the recorded payment.
// The backend deduplicates repeated confirmations of one session.
func (c *Client) ConfirmPayment(ctx context.Context, sessionID string) (models.PaymentRecord, error) {
	var out models.PaymentRecord
	q := url.Values{"session_id": {sessionID}}
	err := c.do(ctx, http.MethodPatch, "PATCH /payment-success", "/payment-success", q, nil, &out)
	return out, err
}

// GetUser returns the backend user record, including the role.
func (c *Client) GetUser(ctx context.Context, email string) (models.User, error) {
	var out models.User
	err := c.do(ctx, http.MethodGet, "GET /users/:email", "/users/"+url.PathEscape(email), nil, nil, &out)
	return out, err
}

// RegisterUser records a first sign-in. The backend ignores known emails.
func (c *Client) RegisterUser(ctx context.Context, u models.User) error {
	return c.do(ctx, http.MethodPost, "POST /users", "/users", nil, u, nil)
}

// PaymentSessionRequest asks the backend to open a checkout session for an
// application fee.
type PaymentSessionRequest struct {
	ApplicationID string          `json:"applicationId"`
	LoanTitle     string          `json:"loanTitle"`
	CustomerEmail string          `json:"customerEmail"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	SuccessURL    string          `json:"successUrl"`
	CancelURL     string          `json:"cancelUrl"`
}

// PaymentSession is the checkout session the browser is sent to.
type PaymentSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreatePaymentSession opens a checkout session.
func (c *Client) CreatePaymentSession(ctx context.Context, req PaymentSessionRequest) (PaymentSession, error) {
	var out PaymentSession
	err := c.do(ctx, http.MethodPost, "POST /create-payment-session", "/create-payment-session", nil, req, &out)
	return out, err
}
