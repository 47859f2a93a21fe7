package catalog

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billpay/web/backend"
	"billpay/web/backend/backendtest"
	"billpay/web/models"
)

var bills = []models.Bill{
	{ID: "1", Title: "Dhaka Power", Category: "Electricity", Location: "Dhaka"},
	{ID: "2", Title: "Titas Gas", Category: "Gas", Location: "Chittagong"},
	{ID: "3", Title: "WASA Water", Category: "Water", Location: "Dhaka"},
	{ID: "4", Title: "Fiber Home", Category: "Internet", Location: "Sylhet"},
	{ID: "5", Title: "Karnaphuli Gas", Category: "gas", Location: "Chattogram"},
}

func TestFilterFromQuery(t *testing.T) {
	tests := []struct {
		query string
		want  Filter
	}{
		{"", Filter{}},
		{"category=Gas&search=+dhaka+", Filter{Category: "Gas", Search: "dhaka"}},
		{"category=All", Filter{}},
		{"category=All+Categories&search=x", Filter{Search: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, FilterFromQuery(q))
		})
	}
}

func TestFilterQuery(t *testing.T) {
	assert.Empty(t, Filter{}.Query())
	assert.Equal(t, "category=Gas&search=dhaka", Filter{Category: "Gas", Search: " dhaka "}.Query().Encode())
	assert.True(t, Filter{Search: "  "}.IsZero())
	assert.False(t, Filter{Category: "Gas"}.IsZero())
}

func TestFilterApply(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty matches all", Filter{}, []string{"1", "2", "3", "4", "5"}},
		{"category is case-insensitive", Filter{Category: "GAS"}, []string{"2", "5"}},
		{"search matches title", Filter{Search: "power"}, []string{"1"}},
		{"search matches location", Filter{Search: "DHAKA"}, []string{"1", "3"}},
		{"both predicates", Filter{Category: "Water", Search: "dhaka"}, []string{"3"}},
		{"unknown category is empty", Filter{Category: "Telephone"}, []string{}},
		{"category is exact", Filter{Category: "Ga"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(bills)
			ids := make([]string, 0, len(got))
			for _, b := range got {
				ids = append(ids, b.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestFilterResultIsSubsetSatisfyingPredicates(t *testing.T) {
	categories := append([]string{"", "unknown", "gas"}, Categories...)
	searches := []string{"", "a", "dhaka", "GAS", "zzz", "o"}

	for _, c := range categories {
		for _, s := range searches {
			f := Filter{Category: c, Search: s}
			t.Run(fmt.Sprintf("%q/%q", c, s), func(t *testing.T) {
				got := f.Apply(bills)
				assert.LessOrEqual(t, len(got), len(bills))
				for _, b := range got {
					assert.Contains(t, bills, b)
					assert.True(t, f.Matches(b))
				}
			})
		}
	}
}

func newService(t *testing.T, all []models.Bill) (*Service, *backendtest.Server) {
	t.Helper()
	srv := backendtest.New(all...)
	t.Cleanup(srv.Close)
	return NewService(backend.New(backend.Config{BaseURL: srv.BaseURL()})), srv
}

func TestServiceListForwardsFilter(t *testing.T) {
	svc, srv := newService(t, bills)

	got, err := svc.List(context.Background(), Filter{Category: "Gas", Search: "titas"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)

	assert.Contains(t, srv.Requests(), "GET /api/v1/bills?category=Gas&search=titas")
}

func TestServiceFeatured(t *testing.T) {
	many := make([]models.Bill, 0, 12)
	for i := range 12 {
		many = append(many, models.Bill{ID: fmt.Sprint(i), Title: "Bill", Category: "Gas", Amount: decimal.NewFromInt(int64(i))})
	}
	svc, _ := newService(t, many)

	got, err := svc.Featured(context.Background())
	require.NoError(t, err)
	require.Len(t, got, FeaturedCount)
	assert.Equal(t, "0", got[0].ID)
	assert.Equal(t, "7", got[7].ID)
}

func TestServiceGet(t *testing.T) {
	svc, _ := newService(t, bills)

	bill, err := svc.Get(context.Background(), "3")
	require.NoError(t, err)
	assert.Equal(t, "WASA Water", bill.Title)

	_, err = svc.Get(context.Background(), "404")
	assert.ErrorIs(t, err, backend.ErrNotFound)
}
