// Package listview implements the list, filter and search pattern shared by
// catalog and moderation screens: a fetched source collection, user criteria,
// and a pure function deriving the visible subset.
package listview

import (
	"net/url"
	"strings"
)

// All is the category and status sentinel meaning "no constraint".
const All = "All"

// Criteria are the user's current filter and search inputs.
type Criteria struct {
	Category string
	Query    string
	Status   string
}

// CriteriaFromQuery reads category, q and status from a URL query.
func CriteriaFromQuery(q url.Values) Criteria {
	return Criteria{
		Category: strings.TrimSpace(q.Get("category")),
		Query:    strings.TrimSpace(q.Get("q")),
		Status:   strings.TrimSpace(q.Get("status")),
	}
}

// Encode renders c back to a query string, omitting unset fields.
func (c Criteria) Encode() string {
	v := url.Values{}
	if active(c.Category) {
		v.Set("category", c.Category)
	}
	if c.Query != "" {
		v.Set("q", c.Query)
	}
	if active(c.Status) {
		v.Set("status", c.Status)
	}
	return v.Encode()
}

// IsZero reports whether no filter is active.
func (c Criteria) IsZero() bool {
	return !active(c.Category) && c.Query == "" && !active(c.Status)
}

func active(v string) bool { return v != "" && v != All }

// Fields declares how a view reads its items. Nil accessors disable the
// matching filter.
type Fields[T any] struct {
	Category   func(T) string
	Status     func(T) string
	Searchable func(T) []string
}

// Apply returns the items of source matching every active criterion, in
// source order. Category and status match exactly; the query matches a
// case-insensitive substring of any searchable field. source is not modified.
func Apply[T any](source []T, c Criteria, f Fields[T]) []T {
	query := strings.ToLower(c.Query)
	out := make([]T, 0, len(source))
	for _, item := range source {
		if active(c.Category) && f.Category != nil && f.Category(item) != c.Category {
			continue
		}
		if active(c.Status) && f.Status != nil && f.Status(item) != c.Status {
			continue
		}
		if query != "" && f.Searchable != nil && !containsAny(f.Searchable(item), query) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func containsAny(fields []string, lowerQuery string) bool {
	for _, s := range fields {
		if strings.Contains(strings.ToLower(s), lowerQuery) {
			return true
		}
	}
	return false
}

// Categories returns All followed by each distinct category of source in
// first-seen order. Empty categories are skipped.
func Categories[T any](source []T, category func(T) string) []string {
	out := []string{All}
	if category == nil {
		return out
	}
	seen := map[string]bool{All: true}
	for _, item := range source {
		c := category(item)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Result is what a list page renders.
type Result[T any] struct {
	Items      []T
	Total      int
	Criteria   Criteria
	Categories []string
}

// Empty reports a valid, displayable "no results" state. It is distinct from
// loading, which never produces a Result.
func (r Result[T]) Empty() bool { return len(r.Items) == 0 }

// Filtered reports whether criteria hid part of the source.
func (r Result[T]) Filtered() bool { return len(r.Items) != r.Total }

// Build applies c to source and derives the category list from the full source.
func Build[T any](source []T, c Criteria, f Fields[T]) Result[T] {
	return Result[T]{
		Items:      Apply(source, c, f),
		Total:      len(source),
		Criteria:   c,
		Categories: Categories(source, f.Category),
	}
}
