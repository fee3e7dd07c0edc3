// Package workflow holds the loan application flow: where an "Apply" click
// leads, the application form rules, and when the fee can be paid.
package workflow

import (
	"net/url"
	"strings"

	"github.com/diewo77/microloan/auth"
)

// State is a step of the application flow.
type State int

const (
	Browsing State = iota
	Viewing
	AuthGate
	Filling
	Submitting
	Submitted
	Listed
	PayPending
	Paying
	Paid
)

var stateNames = [...]string{
	Browsing:   "browsing",
	Viewing:    "viewing",
	AuthGate:   "auth_gate",
	Filling:    "filling",
	Submitting: "submitting",
	Submitted:  "submitted",
	Listed:     "listed",
	PayPending: "pay_pending",
	Paying:     "paying",
	Paid:       "paid",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ApplyPath is where the form for loanID lives.
func ApplyPath(loanID string) string {
	return "/apply-loan/" + url.PathEscape(loanID)
}

// Step is the outcome of a transition: the new state and where to send the browser.
type Step struct {
	State    State
	Location string
}

// OnApply handles the Apply action on a loan detail page. Anonymous visitors
// go through the sign-in interstitial, which resumes the apply flow for the
// same loan once they are back.
func OnApply(identityPresent bool, loanID string) Step {
	loanID = strings.TrimSpace(loanID)
	if !identityPresent {
		return Step{State: AuthGate, Location: auth.LoginPath(ApplyPath(loanID))}
	}
	return Step{State: Filling, Location: ApplyPath(loanID)}
}
