package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"billpay/web/identity"
	"billpay/web/logger"
	"billpay/web/metrics"
	"billpay/web/models"
	"billpay/web/security"
)

const restoreTimeout = 30 * time.Second

// Entry is everything held for one browser session.
type Entry[V io.Closer] struct {
	ID    string
	Store *Store
	Views V

	auth      *identity.Session
	ready     chan struct{}
	stopWatch func()

	mu       sync.Mutex
	lastSeen time.Time
	stored   bool // a repository row may exist for ID
}

// Ready is closed once the persisted session has been restored or found
// missing.
func (e *Entry[V]) Ready() <-chan struct{} { return e.ready }

func (e *Entry[V]) touch(now time.Time) {
	e.mu.Lock()
	e.lastSeen = now
	e.mu.Unlock()
}

func (e *Entry[V]) markStored(stored bool) {
	e.mu.Lock()
	e.stored = stored
	e.mu.Unlock()
}

func (e *Entry[V]) hasStored() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stored
}

func (e *Entry[V]) idleSince() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeen
}

func (e *Entry[V]) close() {
	e.stopWatch()
	if err := e.Views.Close(); err != nil {
		logger.Log.Warn().Err(err).Str("session", e.ID).Msg("closing session views")
	}
	e.Store.Close()
}

// RegistryConfig wires a Registry. Repository and Cipher may both be nil, in
// which case sessions live in memory only. MaxEntries caps the entries held
// in memory; the least recently seen is evicted first. Zero means no cap.
type RegistryConfig struct {
	Provider   identity.Provider
	Repository *Repository
	Cipher     *security.Cipher
	Metrics    *metrics.Metrics
	MaxEntries int
}

// Registry maps browser-session ids to their Store and per-browser views.
type Registry[V io.Closer] struct {
	provider identity.Provider
	repo     *Repository
	cipher   *security.Cipher
	metrics  *metrics.Metrics
	newViews func(*Store) V
	now      func() time.Time
	max      int

	guestMu sync.Mutex
	guest   *Entry[V]

	mu      sync.Mutex
	entries map[string]*Entry[V]
	wg      sync.WaitGroup
}

// NewRegistry creates an empty registry; newViews builds the per-browser
// view state for each new Store.
func NewRegistry[V io.Closer](cfg RegistryConfig, newViews func(*Store) V) *Registry[V] {
	if cfg.Repository != nil && cfg.Cipher == nil {
		cfg.Repository = nil
		logger.Log.Warn().Msg("session persistence disabled: no cipher configured")
	}
	return &Registry[V]{
		provider: cfg.Provider,
		repo:     cfg.Repository,
		cipher:   cfg.Cipher,
		metrics:  cfg.Metrics,
		newViews: newViews,
		now:      time.Now,
		max:      cfg.MaxEntries,
		entries:  make(map[string]*Entry[V]),
	}
}

// Lookup returns the entry for id, creating it on first use. A new entry's
// Store is loading until the persisted session has been resumed in the
// background.
func (r *Registry[V]) Lookup(id string) *Entry[V] {
	now := r.now()

	r.mu.Lock()
	if e, ok := r.entries[id]; ok {
		r.mu.Unlock()
		e.touch(now)
		return e
	}

	auth := identity.NewSession(r.provider)
	store := NewStore(auth)
	e := &Entry[V]{
		ID:       id,
		Store:    store,
		Views:    r.newViews(store),
		auth:     auth,
		ready:    make(chan struct{}),
		lastSeen: now,
	}
	e.stopWatch = auth.OnChange(func(*models.Identity) { r.persist(e) })
	evicted := r.evictLocked()
	r.entries[id] = e
	count := len(r.entries)
	r.wg.Add(1)
	r.mu.Unlock()

	r.metrics.SetBrowserSessions(count)
	go r.restore(e)
	if evicted != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			<-evicted.ready
			evicted.close()
		}()
	}
	return e
}

// evictLocked drops the least recently seen entry when the registry is
// full. Its persisted row stays, so the browser resumes on its next request.
func (r *Registry[V]) evictLocked() *Entry[V] {
	if r.max <= 0 || len(r.entries) < r.max {
		return nil
	}

	var oldest *Entry[V]
	var oldestSeen time.Time
	for _, e := range r.entries {
		if seen := e.idleSince(); oldest == nil || seen.Before(oldestSeen) {
			oldest, oldestSeen = e, seen
		}
	}
	delete(r.entries, oldest.ID)
	logger.Log.Debug().Str("session", oldest.ID).Msg("evicting least recently seen session")
	return oldest
}

// Guest returns the shared entry for browsers that have not been issued a
// session yet. It is signed out, never persisted and never counted. Nothing
// may sign it in; a browser that acts gets its own entry through Lookup.
func (r *Registry[V]) Guest() *Entry[V] {
	r.guestMu.Lock()
	defer r.guestMu.Unlock()

	if r.guest == nil {
		auth := identity.NewSession(r.provider)
		store := NewStore(auth)
		e := &Entry[V]{
			ID:        "",
			Store:     store,
			Views:     r.newViews(store),
			auth:      auth,
			ready:     make(chan struct{}),
			stopWatch: func() {},
		}
		if err := auth.Restore(context.Background(), ""); err != nil {
			logger.Log.Warn().Err(err).Msg("resolving guest session")
		}
		close(e.ready)
		r.guest = e
	}
	return r.guest
}

func (r *Registry[V]) restore(e *Entry[V]) {
	defer r.wg.Done()
	defer close(e.ready)

	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()

	token, found := r.loadToken(ctx, e.ID)
	if found {
		e.markStored(true)
	}
	if err := e.auth.Restore(ctx, token); err != nil {
		logger.Log.Info().Err(err).Str("session", e.ID).Msg("persisted session could not be resumed")
	}
}

// loadToken returns the persisted token of id and whether a row was found,
// readable or not.
func (r *Registry[V]) loadToken(ctx context.Context, id string) (string, bool) {
	if r.repo == nil {
		return "", false
	}

	sealed, err := r.repo.Load(ctx, id, r.now())
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			logger.Log.Error().Err(err).Str("session", id).Msg("loading persisted session")
			return "", true
		}
		return "", false
	}

	token, err := r.cipher.Decrypt(sealed)
	if err != nil {
		logger.Log.Warn().Err(err).Str("session", id).Msg("discarding unreadable persisted session")
		return "", true
	}
	return token, true
}

// persist mirrors the current provider session of e into the repository.
func (r *Registry[V]) persist(e *Entry[V]) {
	if r.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()

	acct := e.auth.Account()
	if acct == nil {
		if !e.hasStored() {
			return
		}
		if err := r.repo.Delete(ctx, e.ID); err != nil {
			logger.Log.Error().Err(err).Str("session", e.ID).Msg("forgetting persisted session")
			return
		}
		e.markStored(false)
		return
	}

	sealed, err := r.cipher.Encrypt(acct.Token)
	if err != nil {
		logger.Log.Error().Err(err).Str("session", e.ID).Msg("sealing session token")
		return
	}

	expires := acct.Expires
	if expires.IsZero() {
		expires = r.now().Add(24 * time.Hour)
	}
	if err := r.repo.Save(ctx, e.ID, acct.UID, sealed, expires); err != nil {
		logger.Log.Error().Err(err).Str("session", e.ID).Msg("persisting session")
		return
	}
	e.markStored(true)
}

// Len returns the number of in-memory entries.
func (r *Registry[V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep closes entries idle for longer than idle and purges expired rows.
// Persisted rows of swept entries stay, so the browser resumes on its next
// request.
func (r *Registry[V]) Sweep(ctx context.Context, idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	var stale []*Entry[V]
	r.mu.Lock()
	for id, e := range r.entries {
		if e.idleSince().Before(cutoff) {
			stale = append(stale, e)
			delete(r.entries, id)
		}
	}
	count := len(r.entries)
	r.mu.Unlock()

	for _, e := range stale {
		<-e.ready
		e.close()
	}
	r.metrics.SetBrowserSessions(count)

	if r.repo != nil {
		purged, err := r.repo.PurgeExpired(ctx, r.now())
		if err != nil {
			logger.Log.Error().Err(err).Msg("purging expired sessions")
		} else if purged > 0 {
			logger.Log.Debug().Int64("purged", purged).Msg("expired sessions purged")
		}
	}

	return len(stale)
}

// Close waits for pending restores and closes every entry.
func (r *Registry[V]) Close() {
	r.wg.Wait()

	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*Entry[V])
	r.mu.Unlock()

	for _, e := range entries {
		e.close()
	}
	r.guestMu.Lock()
	if r.guest != nil {
		r.guest.close()
	}
	r.guestMu.Unlock()
	r.metrics.SetBrowserSessions(0)
}
