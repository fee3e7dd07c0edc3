package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ApplicationStatus is the moderation state of a loan application.
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "Pending"
	StatusApproved ApplicationStatus = "Approved"
	StatusRejected ApplicationStatus = "Rejected"
)

// PaymentStatus tracks the application fee independently of moderation.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "Unpaid"
	PaymentPaid   PaymentStatus = "Paid"
)

// Terminal reports whether no further moderation is allowed.
func (s ApplicationStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition reports whether s may move to next. Pending may move to
// either terminal state once; terminal states never move.
func (s ApplicationStatus) CanTransition(next ApplicationStatus) bool {
	return s.normalized() == StatusPending && next.Terminal()
}

func (s ApplicationStatus) normalized() ApplicationStatus {
	if s == "" {
		return StatusPending
	}
	return s
}

// LoanApplication is a borrower's request against one loan product.
type LoanApplication struct {
	ID              string            `json:"_id"`
	LoanID          string            `json:"loanId"`
	LoanTitle       string            `json:"loanTitle"`
	InterestRate    float64           `json:"interestRate,omitempty"`
	ApplicantEmail  string            `json:"applicantEmail"`
	FirstName       string            `json:"firstName"`
	LastName        string            `json:"lastName"`
	ContactNumber   string            `json:"contactNumber"`
	NationalID      string            `json:"nationalId"`
	IncomeSource    string            `json:"incomeSource"`
	MonthlyIncome   decimal.Decimal   `json:"monthlyIncome"`
	LoanAmount      decimal.Decimal   `json:"loanAmount"`
	ReasonForLoan   string            `json:"reasonForLoan"`
	Address         string            `json:"address"`
	ExtraNotes      string            `json:"extraNotes,omitempty"`
	Status          ApplicationStatus `json:"status"`
	PaymentStatus   PaymentStatus     `json:"paymentStatus"`
	AppliedAt       *time.Time        `json:"appliedAt,omitempty"`
	ApprovedAt      *time.Time        `json:"approvedAt,omitempty"`
	ApprovedBy      string            `json:"approvedBy,omitempty"`
	RejectedAt      *time.Time        `json:"rejectedAt,omitempty"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
	TransactionID   string            `json:"transactionId,omitempty"`
}

// GetOwnerEmail is used by the ownership policy.
func (a *LoanApplication) GetOwnerEmail() string { return a.ApplicantEmail }

// FullName joins first and last name.
func (a LoanApplication) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// CurrentStatus treats a missing status as Pending.
func (a LoanApplication) CurrentStatus() ApplicationStatus { return a.Status.normalized() }

// IsPaid reports whether the fee has been recorded as paid.
func (a LoanApplication) IsPaid() bool { return a.PaymentStatus == PaymentPaid }

// CanDelete reports whether the owner may still cancel the application.
func (a LoanApplication) CanDelete() bool { return a.CurrentStatus() == StatusPending }

// Approve moves a pending application to Approved and returns the patch to send.
func (a *LoanApplication) Approve(actor string, now time.Time) (ApplicationPatch, error) {
	if !a.CurrentStatus().CanTransition(StatusApproved) {
		return ApplicationPatch{}, ErrTerminalStatus
	}
	a.Status = StatusApproved
	a.ApprovedAt = &now
	a.ApprovedBy = actor
	st := StatusApproved
	return ApplicationPatch{Status: &st, ApprovedAt: &now, ApprovedBy: actor}, nil
}

// Reject moves a pending application to Rejected with an optional reason.
func (a *LoanApplication) Reject(reason string, now time.Time) (ApplicationPatch, error) {
	if !a.CurrentStatus().CanTransition(StatusRejected) {
		return ApplicationPatch{}, ErrTerminalStatus
	}
	reason = strings.TrimSpace(reason)
	a.Status = StatusRejected
	a.RejectedAt = &now
	a.RejectionReason = reason
	st := StatusRejected
	return ApplicationPatch{Status: &st, RejectedAt: &now, RejectionReason: reason}, nil
}

// MarkPaid records a confirmed payment. Moderation status is left untouched.
func (a *LoanApplication) MarkPaid(rec PaymentRecord) {
	a.PaymentStatus = PaymentPaid
	a.TransactionID = rec.TransactionID
}

// ApplicationPatch is the partial update sent to PATCH /loan-applications/:id.
type ApplicationPatch struct {
	Status          *ApplicationStatus `json:"status,omitempty"`
	ApprovedAt      *time.Time         `json:"approvedAt,omitempty"`
	ApprovedBy      string             `json:"approvedBy,omitempty"`
	RejectedAt      *time.Time         `json:"rejectedAt,omitempty"`
	RejectionReason string             `json:"rejectionReason,omitempty"`
}

// ApplicationPayload is the body of POST /loan-applications. Every field except
// ExtraNotes is required; the read-only ones come from the session and product.
type ApplicationPayload struct {
	LoanID         string  `json:"loanId"`
	LoanTitle      string  `json:"loanTitle"`
	InterestRate   float64 `json:"interestRate"`
	ApplicantEmail string  `json:"applicantEmail"`

	FirstName     string  `json:"firstName"`
	LastName      string  `json:"lastName"`
	ContactNumber string  `json:"contactNumber"`
	NationalID    string  `json:"nationalId"`
	IncomeSource  string  `json:"incomeSource"`
	MonthlyIncome float64 `json:"monthlyIncome"`
	LoanAmount    float64 `json:"loanAmount"`
	ReasonForLoan string  `json:"reasonForLoan"`
	Address       string  `json:"address"`
	ExtraNotes    *string `json:"extraNotes,omitempty"`

	Status        ApplicationStatus `json:"status"`
	PaymentStatus PaymentStatus     `json:"paymentStatus"`
	AppliedAt     time.Time         `json:"appliedAt"`
}

// PaymentRecord is the backend's confirmation of a settled fee.
type PaymentRecord struct {
	ApplicationID string          `json:"applicationId"`
	TransactionID string          `json:"transactionId"`
	TrackingID    string          `json:"trackingId"`
	Amount        decimal.Decimal `json:"amount"`
	CustomerEmail string          `json:"customerEmail,omitempty"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
}
