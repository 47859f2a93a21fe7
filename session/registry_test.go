package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billpay/web/identity"
	"billpay/web/metrics"
	"billpay/web/security"
)

type fakeViews struct {
	store  *Store
	closed atomic.Bool
}

func (v *fakeViews) Close() error {
	v.closed.Store(true)
	return nil
}

func newFakeViews(s *Store) *fakeViews { return &fakeViews{store: s} }

func newTestRegistry(t *testing.T, provider identity.Provider, repo *Repository) *Registry[*fakeViews] {
	t.Helper()
	cipher, err := security.NewCipher("registry-test-key")
	require.NoError(t, err)

	r := NewRegistry(RegistryConfig{
		Provider:   provider,
		Repository: repo,
		Cipher:     cipher,
		Metrics:    metrics.New(),
	}, newFakeViews)
	t.Cleanup(r.Close)
	return r
}

func waitReady[V interface{ Close() error }](t *testing.T, e *Entry[V]) {
	t.Helper()
	select {
	case <-e.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("session restore did not finish")
	}
}

func TestRegistryLookupReturnsSameEntry(t *testing.T) {
	r := newTestRegistry(t, newProvider(), nil)

	a := r.Lookup("browser-1")
	b := r.Lookup("browser-1")
	c := r.Lookup("browser-2")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Same(t, a.Store, a.Views.store)
	assert.Equal(t, 2, r.Len())
}

func TestRegistryNewEntryResolvesSignedOut(t *testing.T) {
	r := newTestRegistry(t, newProvider(), nil)

	e := r.Lookup("browser-1")
	waitReady(t, e)

	snap := e.Store.Snapshot()
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.Identity)
}

func TestRegistryResumesPersistedSession(t *testing.T) {
	ctx := context.Background()
	provider := newProvider()
	repo := NewRepository(openTestDB(t))

	first := newTestRegistry(t, provider, repo)
	e := first.Lookup("browser-1")
	waitReady(t, e)
	require.NoError(t, e.Store.Register(ctx, "ada@example.com", "Secret1", "Ada", ""))

	// a second registry over the same database stands in for a restart
	second := newTestRegistry(t, provider, repo)
	resumed := second.Lookup("browser-1")
	waitReady(t, resumed)

	id := resumed.Store.Identity()
	require.NotNil(t, id)
	assert.Equal(t, "Ada", id.DisplayName)

	require.NoError(t, resumed.Store.SignOut(ctx))
	_, err := repo.Load(ctx, "browser-1", time.Now())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRegistryIgnoresUnreadableToken(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))
	require.NoError(t, repo.Save(ctx, "browser-1", "uid", "garbage", time.Now().Add(time.Hour)))

	r := newTestRegistry(t, newProvider(), repo)
	e := r.Lookup("browser-1")
	waitReady(t, e)

	assert.False(t, e.Store.Loading())
	assert.Nil(t, e.Store.Identity())
}

func TestRegistrySweep(t *testing.T) {
	r := newTestRegistry(t, newProvider(), nil)
	now := time.Now()
	r.now = func() time.Time { return now }

	idle := r.Lookup("idle")
	waitReady(t, idle)

	now = now.Add(time.Hour)
	active := r.Lookup("active")
	waitReady(t, active)

	swept := r.Sweep(context.Background(), 30*time.Minute)
	assert.Equal(t, 1, swept)
	assert.Equal(t, 1, r.Len())
	assert.True(t, idle.Views.closed.Load())
	assert.False(t, active.Views.closed.Load())

	assert.NotSame(t, idle, r.Lookup("idle"), "a swept browser gets a fresh entry")
}

func TestRegistryGuestIsSharedAndSignedOut(t *testing.T) {
	r := newTestRegistry(t, newProvider(), NewRepository(openTestDB(t)))

	g := r.Guest()
	assert.Same(t, g, r.Guest())
	waitReady(t, g)

	snap := g.Store.Snapshot()
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.Identity)
	assert.Zero(t, r.Len(), "the guest is not a browser session")
	assert.Zero(t, r.Sweep(context.Background(), 0))
}

func TestRegistryRowlessEntryIsNotDeleted(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))
	r := newTestRegistry(t, newProvider(), repo)

	e := r.Lookup("browser-1")
	waitReady(t, e)
	assert.False(t, e.hasStored(), "no row was found, so signing out has nothing to forget")

	require.NoError(t, e.Store.Register(ctx, "ada@example.com", "Secret1", "Ada", ""))
	assert.True(t, e.hasStored())

	require.NoError(t, e.Store.SignOut(ctx))
	assert.False(t, e.hasStored())
	_, err := repo.Load(ctx, "browser-1", time.Now())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRegistryEvictsLeastRecentlySeen(t *testing.T) {
	r := NewRegistry(RegistryConfig{Provider: newProvider(), MaxEntries: 2}, newFakeViews)
	t.Cleanup(r.Close)
	now := time.Now()
	r.now = func() time.Time { return now }

	a := r.Lookup("a")
	now = now.Add(time.Minute)
	b := r.Lookup("b")
	now = now.Add(time.Minute)
	r.Lookup("a") // a is now the most recent
	now = now.Add(time.Minute)
	r.Lookup("c")

	assert.Equal(t, 2, r.Len())
	assert.Same(t, a, r.Lookup("a"))
	assert.Eventually(t, b.Views.closed.Load, 5*time.Second, 10*time.Millisecond)
	assert.False(t, a.Views.closed.Load())
}

func TestRegistryBoundedUnderChurn(t *testing.T) {
	r := NewRegistry(RegistryConfig{Provider: newProvider(), MaxEntries: 50}, newFakeViews)
	t.Cleanup(r.Close)

	for i := range 500 {
		r.Lookup(fmt.Sprintf("browser-%d", i))
	}

	assert.Equal(t, 50, r.Len())
}
