// Package catalog lists and filters the bill catalogue.
package catalog

import (
	"net/url"
	"strings"

	"billpay/web/models"
)

// Categories offered by the category selector.
var Categories = []string{"Electricity", "Gas", "Water", "Internet"}

// Pseudo-categories that mean "no category filter".
var allCategories = []string{"All", "All Categories"}

// Filter selects bills by category and free-text search. The zero value
// matches everything.
type Filter struct {
	Category string
	Search   string
}

// FilterFromQuery reads ?category=&search=.
func FilterFromQuery(q url.Values) Filter {
	f := Filter{
		Category: strings.TrimSpace(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("search")),
	}
	for _, all := range allCategories {
		if strings.EqualFold(f.Category, all) {
			f.Category = ""
		}
	}
	return f
}

// IsZero reports whether the filter matches every bill.
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Category) == "" && strings.TrimSpace(f.Search) == ""
}

// Query encodes the non-empty fields for a URL.
func (f Filter) Query() url.Values {
	q := url.Values{}
	if c := strings.TrimSpace(f.Category); c != "" {
		q.Set("category", c)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Set("search", s)
	}
	return q
}

// Matches applies a case-insensitive exact category match and a
// case-insensitive substring search over title and location.
func (f Filter) Matches(b models.Bill) bool {
	if c := strings.TrimSpace(f.Category); c != "" && !strings.EqualFold(b.Category, c) {
		return false
	}

	s := strings.ToLower(strings.TrimSpace(f.Search))
	if s == "" {
		return true
	}
	return strings.Contains(strings.ToLower(b.Title), s) ||
		strings.Contains(strings.ToLower(b.Location), s)
}

// Apply returns the bills that match, keeping their order.
func (f Filter) Apply(bills []models.Bill) []models.Bill {
	out := make([]models.Bill, 0, len(bills))
	for _, b := range bills {
		if f.Matches(b) {
			out = append(out, b)
		}
	}
	return out
}
