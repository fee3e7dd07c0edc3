package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Violations maps a form field to a translation code describing the first
// rule it broke.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Has reports whether field already failed a rule.
func (v Violations) Has(field string) bool {
	_, ok := v[field]
	return ok
}

// add keeps the first violation per field so messages stay stable.
func (v Violations) add(field, code string) {
	if !v.Has(field) {
		v[field] = code
	}
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.add(field, "required")
	}
}

// MinLength counts runes of the trimmed value. Empty values are left to Required.
func MinLength(field, value string, n int, v Violations) {
	value = strings.TrimSpace(value)
	if value != "" && utf8.RuneCountInString(value) < n {
		v.add(field, "too_short")
	}
}

// Matches checks a non-empty value against re.
func Matches(field, value string, re *regexp.Regexp, v Violations) {
	value = strings.TrimSpace(value)
	if value != "" && !re.MatchString(value) {
		v.add(field, "invalid_format")
	}
}

// OneOf checks a non-empty value against an enumerated set (exact match).
func OneOf(field, value string, allowed []string, v Violations) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.add(field, "invalid_choice")
}

// Decimal parses a required numeric field. It returns false and records a
// violation when the value is missing or not a number.
func Decimal(field, raw string, v Violations) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		v.add(field, "required")
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		v.add(field, "not_a_number")
		return decimal.Zero, false
	}
	return d, true
}

// PositiveDecimal requires val > 0.
func PositiveDecimal(field string, val decimal.Decimal, v Violations) {
	if !val.IsPositive() {
		v.add(field, "must_be_positive")
	}
}

// MinDecimal requires val >= minVal.
func MinDecimal(field string, val, minVal decimal.Decimal, v Violations) {
	if val.LessThan(minVal) {
		v.add(field, "below_minimum")
	}
}

// RangeDecimal requires minVal <= val <= maxVal, both ends inclusive.
func RangeDecimal(field string, val, minVal, maxVal decimal.Decimal, v Violations) {
	if val.LessThan(minVal) || val.GreaterThan(maxVal) {
		v.add(field, "out_of_range")
	}
}
