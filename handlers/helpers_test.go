package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"billpay/web/backend"
	"billpay/web/backend/backendtest"
	"billpay/web/catalog"
	"billpay/web/identity"
	"billpay/web/metrics"
	"billpay/web/middleware"
	"billpay/web/models"
	"billpay/web/payments"
	"billpay/web/session"
)

const (
	testPassword = "Secret1"
	testBillsID  = "123456789"
)

var (
	electricity = models.Bill{
		ID:          "64b7f0c2a1b2c3d4e5f60001",
		Title:       "DESCO Electricity",
		Category:    "Electricity",
		Location:    "Dhaka",
		Amount:      decimal.NewFromInt(1200),
		Date:        "2025-01-15",
		Description: "Monthly electricity bill",
		Image:       "https://img.example.com/desco.png",
	}
	gas = models.Bill{
		ID:       "64b7f0c2a1b2c3d4e5f60002",
		Title:    "Titas Gas",
		Category: "Gas",
		Location: "Chattogram",
		Amount:   decimal.NewFromInt(850),
		Date:     "2025-02-01",
	}
	water = models.Bill{
		ID:       "64b7f0c2a1b2c3d4e5f60003",
		Title:    "WASA Water",
		Category: "Water",
		Location: "Dhaka",
		Amount:   decimal.NewFromInt(400),
		Date:     "not a date",
	}
)

type testEnv struct {
	t        *testing.T
	backend  *backendtest.Server
	auth     *identity.Memory
	registry *session.Registry[*Views]
	server   *httptest.Server
	client   *http.Client
}

func newTestEnv(t *testing.T, bills ...models.Bill) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil, bills...)
}

// newTestEnvWith lets wrap put a provider in front of the in-memory one.
func newTestEnvWith(t *testing.T, wrap func(*identity.Memory) identity.Provider, bills ...models.Bill) *testEnv {
	t.Helper()

	fake := backendtest.New(bills...)
	t.Cleanup(fake.Close)

	m := metrics.New()
	client := backend.New(backend.Config{BaseURL: fake.BaseURL(), Timeout: 5 * time.Second, Metrics: m})
	gen := payments.Generator{
		Now:  func() time.Time { return time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC) },
		Draw: func(int64) int64 { return 23456789 },
	}
	svc := payments.NewService(client, gen, m)

	auth := identity.NewMemory(time.Hour).WithHashCost(bcrypt.MinCost)
	var provider identity.Provider = auth
	if wrap != nil {
		provider = wrap(auth)
	}
	registry := session.NewRegistry(session.RegistryConfig{Provider: provider, Metrics: m}, NewViews(svc))
	t.Cleanup(registry.Close)

	h, err := New(Config{Catalog: catalog.NewService(client), RedirectDelay: 10 * time.Millisecond})
	require.NoError(t, err)

	cookies := sessions.NewCookieStore([]byte("handlers-test-secret-0123456789abcdef"))
	srv := httptest.NewServer(newTestRouter(h, cookies, registry))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{
		t:        t,
		backend:  fake,
		auth:     auth,
		registry: registry,
		server:   srv,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// newTestRouter mounts the handlers the way the server does.
func newTestRouter(h *Handlers, cookies sessions.Store, registry *session.Registry[*Views]) http.Handler {
	loadSession := middleware.LoadSession(cookies, registry, time.Second)

	r := mux.NewRouter()
	pages := r.NewRoute().Subrouter()
	pages.Use(loadSession)
	pages.HandleFunc("/", h.Home).Methods("GET")
	pages.HandleFunc("/bills", h.Bills).Methods("GET")
	pages.HandleFunc("/login", h.LoginPage).Methods("GET")
	pages.HandleFunc("/login", h.Login).Methods("POST")
	pages.HandleFunc("/login/federated", h.FederatedLogin).Methods("POST")
	pages.HandleFunc("/password-reset", h.PasswordReset).Methods("POST")
	pages.HandleFunc("/register", h.RegisterPage).Methods("GET")
	pages.HandleFunc("/register", h.Register).Methods("POST")
	pages.HandleFunc("/logout", h.Logout).Methods("POST")
	pages.HandleFunc("/theme", h.ToggleTheme).Methods("POST")

	protected := pages.NewRoute().Subrouter()
	protected.Use(middleware.RequireSession(http.HandlerFunc(h.Wait)))
	protected.HandleFunc("/bills/{id}", h.BillDetail).Methods("GET")
	protected.HandleFunc("/bills/{id}/pay", h.OpenPayment).Methods("GET")
	protected.HandleFunc("/bills/{id}/pay", h.SubmitPayment).Methods("POST")
	protected.HandleFunc("/mypaybills", h.MyPayBills).Methods("GET")
	protected.HandleFunc("/mypaybills/delete/cancel", h.CancelDelete).Methods("POST")
	protected.HandleFunc("/mypaybills/{id}/edit", h.EditPayment).Methods("GET")
	protected.HandleFunc("/mypaybills/{id}/edit", h.UpdatePayment).Methods("POST")
	protected.HandleFunc("/mypaybills/{id}/delete", h.ConfirmDeletePayment).Methods("GET")
	protected.HandleFunc("/mypaybills/{id}/delete", h.DeletePayment).Methods("POST")
	protected.HandleFunc("/mypaybills/{id}/receipt", h.Receipt).Methods("GET")

	r.NotFoundHandler = loadSession(http.HandlerFunc(h.NotFound))
	return r
}

func (e *testEnv) do(req *http.Request) (*http.Response, string) {
	e.t.Helper()
	resp, err := e.client.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp, string(body)
}

func (e *testEnv) get(path string) (*http.Response, string) {
	e.t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	require.NoError(e.t, err)
	return e.do(req)
}

func (e *testEnv) post(path string, form url.Values) (*http.Response, string) {
	e.t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

// follow requests the location a redirect points to.
func (e *testEnv) follow(resp *http.Response) (*http.Response, string) {
	e.t.Helper()
	require.Equal(e.t, http.StatusSeeOther, resp.StatusCode)
	return e.get(resp.Header.Get("Location"))
}

// signIn creates an account for email and signs this browser in.
func (e *testEnv) signIn(email string) {
	e.t.Helper()
	_, err := e.auth.CreateAccount(context.Background(), email, testPassword)
	require.NoError(e.t, err)

	resp, _ := e.post("/login", url.Values{"email": {email}, "password": {testPassword}, "next": {"/"}})
	require.Equal(e.t, http.StatusSeeOther, resp.StatusCode)
}

func numberedBills(n int) []models.Bill {
	bills := make([]models.Bill, n)
	for i := range bills {
		bills[i] = models.Bill{
			ID:       fmt.Sprintf("64b7f0c2a1b2c3d4e5f6%04x", i+16),
			Title:    fmt.Sprintf("Utility %02d", i+1),
			Category: "Internet",
			Location: "Sylhet",
			Amount:   decimal.NewFromInt(int64(100 * (i + 1))),
		}
	}
	return bills
}
