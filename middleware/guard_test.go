package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"billpay/web/identity"
	"billpay/web/models"
	"billpay/web/session"
)

func TestEvaluate(t *testing.T) {
	id := &models.Identity{ID: "u1", Email: "ada@example.com"}

	tests := []struct {
		name string
		snap session.Snapshot
		want GuardState
	}{
		{"loading", session.Snapshot{Loading: true}, Checking},
		{"loading with stale identity", session.Snapshot{Loading: true, Identity: id}, Checking},
		{"signed in", session.Snapshot{Identity: id}, Authorized},
		{"signed out", session.Snapshot{}, Denied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.snap))
		})
	}
	assert.Equal(t, "checking", Checking.String())
	assert.Equal(t, "authorized", Authorized.String())
	assert.Equal(t, "denied", Denied.String())
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		next string
		want string
	}{
		{"", "/"},
		{"/mypaybills", "/mypaybills"},
		{"/bills?category=Gas", "/bills?category=Gas"},
		{"https://evil.example", "/"},
		{"//evil.example/x", "/"},
		{"/\\evil.example", "/"},
		{"mypaybills", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.next, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeNext(tt.next))
		})
	}
}

func withStore(r *http.Request, s *session.Store) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), StoreKey, s))
}

func newGuardStore(t *testing.T) (*session.Store, *identity.Session) {
	t.Helper()
	provider := identity.NewMemory(time.Hour).WithHashCost(bcrypt.MinCost)
	auth := identity.NewSession(provider)
	store := session.NewStore(auth)
	t.Cleanup(store.Close)
	return store, auth
}

func guarded() http.Handler {
	wait := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("checking"))
	})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("protected"))
	})
	return RequireSession(wait)(next)
}

func TestRequireSessionChecking(t *testing.T) {
	store, _ := newGuardStore(t)

	rec := httptest.NewRecorder()
	guarded().ServeHTTP(rec, withStore(httptest.NewRequest(http.MethodGet, "/mypaybills", nil), store))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "checking", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestRequireSessionDeniedRemembersLocation(t *testing.T) {
	store, auth := newGuardStore(t)
	require.NoError(t, auth.Restore(context.Background(), ""))

	rec := httptest.NewRecorder()
	guarded().ServeHTTP(rec, withStore(httptest.NewRequest(http.MethodGet, "/bills/abc?x=1", nil), store))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?next=%2Fbills%2Fabc%3Fx%3D1", rec.Header().Get("Location"))
}

func TestRequireSessionDeniedPost(t *testing.T) {
	store, auth := newGuardStore(t)
	require.NoError(t, auth.Restore(context.Background(), ""))

	rec := httptest.NewRecorder()
	guarded().ServeHTTP(rec, withStore(httptest.NewRequest(http.MethodPost, "/bills/abc/pay", nil), store))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestRequireSessionAuthorized(t *testing.T) {
	store, _ := newGuardStore(t)
	require.NoError(t, store.Register(context.Background(), "ada@example.com", "Secret1", "", ""))

	rec := httptest.NewRecorder()
	guarded().ServeHTTP(rec, withStore(httptest.NewRequest(http.MethodGet, "/mypaybills", nil), store))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "protected", rec.Body.String())
}

func TestRequireSessionWithoutStoreIsDenied(t *testing.T) {
	rec := httptest.NewRecorder()
	guarded().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mypaybills", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
}
