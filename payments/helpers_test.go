package payments

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"billpay/web/backend"
	"billpay/web/backend/backendtest"
	"billpay/web/identity"
	"billpay/web/metrics"
	"billpay/web/models"
	"billpay/web/session"
)

var powerBill = models.Bill{
	ID:       "b1",
	Title:    "Dhaka Power",
	Category: "Electricity",
	Location: "Dhaka",
	Amount:   decimal.RequireFromString("500.00"),
}

type fixture struct {
	srv     *backendtest.Server
	svc     *Service
	store   *session.Store
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, gen Generator) *fixture {
	t.Helper()
	srv := backendtest.New(powerBill)
	t.Cleanup(srv.Close)

	m := metrics.New()
	client := backend.New(backend.Config{BaseURL: srv.BaseURL(), Metrics: m})

	provider := identity.NewMemory(time.Hour).WithHashCost(bcrypt.MinCost)
	store := session.NewStore(identity.NewSession(provider))
	t.Cleanup(store.Close)

	f := &fixture{
		srv:     srv,
		svc:     NewService(client, gen, m),
		store:   store,
		metrics: m,
	}
	return f
}

func (f *fixture) signIn(t *testing.T, email string) {
	t.Helper()
	require.NoError(t, f.store.Register(context.Background(), email, "Secret1", "Ada", ""))
}

func fixedGenerator(ids ...int64) Generator {
	i := 0
	return Generator{
		Now: func() time.Time { return time.Date(2026, time.January, 5, 10, 0, 0, 0, time.UTC) },
		Draw: func(int64) int64 {
			v := ids[i%len(ids)]
			i++
			return v
		},
	}
}
