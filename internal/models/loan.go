package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FlexString decodes a JSON string or number into a string. EMI plans and
// tenure come back from the backend in both shapes.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// LoanProduct is a loan offer published by a manager.
type LoanProduct struct {
	ID                string          `json:"_id"`
	Title             string          `json:"title"`
	ShortDescription  string          `json:"shortDescription,omitempty"`
	Description       string          `json:"description,omitempty"`
	Category          string          `json:"category"`
	InterestRate      float64         `json:"interestRate"`
	MaxLimit          decimal.Decimal `json:"maxLimit"`
	Tenure            FlexString      `json:"tenure,omitempty"`
	RequiredDocuments []string        `json:"requiredDocuments,omitempty"`
	EMIPlans          []FlexString    `json:"availableEMIPlans,omitempty"`
	ImageURL          string          `json:"imageUrl,omitempty"`
	ShowOnHome        bool            `json:"showOnHome"`
	Status            string          `json:"status,omitempty"`
	CreatedBy         string          `json:"createdBy,omitempty"`
	CreatedAt         *time.Time      `json:"createdAt,omitempty"`
}

// HasMaxLimit reports whether the product declares its own amount ceiling.
func (l LoanProduct) HasMaxLimit() bool { return l.MaxLimit.IsPositive() }

// LoanInput is the typed body for creating or fully updating a loan product.
type LoanInput struct {
	Title             string   `json:"title"`
	ShortDescription  string   `json:"shortDescription,omitempty"`
	Description       string   `json:"description"`
	Category          string   `json:"category"`
	InterestRate      float64  `json:"interestRate"`
	MaxLimit          float64  `json:"maxLimit"`
	Tenure            string   `json:"tenure,omitempty"`
	RequiredDocuments []string `json:"requiredDocuments"`
	EMIPlans          []string `json:"availableEMIPlans"`
	ImageURL          string   `json:"imageUrl,omitempty"`
	ShowOnHome        bool     `json:"showOnHome"`
	CreatedBy         string   `json:"createdBy,omitempty"`
}

// LoanPatch is a partial update; nil fields are left untouched.
type LoanPatch struct {
	ShowOnHome *bool `json:"showOnHome,omitempty"`
	*LoanInput
}

// SplitList turns a comma or newline separated form value into trimmed entries.
func SplitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
