// Package session holds the per-browser session state: who is signed in and
// whether that is still being determined.
package session

import (
	"context"
	"sync"

	"billpay/web/identity"
	"billpay/web/models"
)

// Snapshot is a consistent read of a Store.
type Snapshot struct {
	Identity *models.Identity
	Loading  bool
}

// SignedIn reports whether the snapshot carries an identity.
func (s Snapshot) SignedIn() bool { return s.Identity != nil }

// ProfileError is returned by Register when the account was created and
// signed in but its display name and photo could not be saved.
type ProfileError struct {
	Err error
}

func (e *ProfileError) Error() string {
	return "account created, profile not saved: " + e.Err.Error()
}

func (e *ProfileError) Unwrap() error { return e.Err }

type subscriber struct {
	id int
	fn func(Snapshot)
}

// Store is the session store shared by every page a browser renders. It
// starts out loading and mirrors the identity published by the provider
// session it subscribes to.
type Store struct {
	auth *identity.Session

	mu       sync.RWMutex
	identity *models.Identity
	loading  bool
	closed   bool
	subs     []subscriber
	nextID   int

	unsubscribe func()
}

// NewStore subscribes to auth. The store reports loading until auth
// publishes for the first time.
func NewStore(auth *identity.Session) *Store {
	s := &Store{auth: auth, loading: true}
	s.unsubscribe = auth.OnChange(s.onChange)
	return s
}

func (s *Store) onChange(id *models.Identity) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.identity = id
	s.loading = false
	snap := Snapshot{Identity: id, Loading: false}
	subs := append([]subscriber(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
}

// Identity returns the signed-in identity, or nil.
func (s *Store) Identity() *models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Loading reports whether the identity is still being determined.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Identity: s.identity, Loading: s.loading}
}

// Subscribe calls fn after every identity notification.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Register creates an account and then sets its display name and photo. A
// failed profile update leaves the new account signed in and is reported as
// a *ProfileError.
func (s *Store) Register(ctx context.Context, email, password, displayName, photoURL string) error {
	s.setLoading()
	if err := s.auth.CreateAccount(ctx, email, password); err != nil {
		s.clearLoading()
		return err
	}
	if err := s.UpdateProfile(ctx, displayName, photoURL); err != nil {
		return &ProfileError{Err: err}
	}
	return nil
}

func (s *Store) SignIn(ctx context.Context, email, password string) error {
	s.setLoading()
	if err := s.auth.SignIn(ctx, email, password); err != nil {
		s.clearLoading()
		return err
	}
	return nil
}

func (s *Store) SignInWithFederatedProvider(ctx context.Context, cred identity.FederatedCredential) error {
	s.setLoading()
	if err := s.auth.SignInWithIdP(ctx, cred); err != nil {
		s.clearLoading()
		return err
	}
	return nil
}

// SignOut always leaves the store signed out; the error reports a failed
// revocation at the provider.
func (s *Store) SignOut(ctx context.Context) error {
	s.setLoading()
	err := s.auth.SignOut(ctx)
	s.clearLoading()
	return err
}

// UpdateProfile does not touch loading.
func (s *Store) UpdateProfile(ctx context.Context, displayName, photoURL string) error {
	return s.auth.UpdateProfile(ctx, displayName, photoURL)
}

// RequestPasswordReset does not touch loading or identity.
func (s *Store) RequestPasswordReset(ctx context.Context, email string) error {
	return s.auth.SendPasswordReset(ctx, email)
}

// Close stops listening to the provider session.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.subs = nil
	s.mu.Unlock()

	s.unsubscribe()
}

func (s *Store) setLoading() {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
}

func (s *Store) clearLoading() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}
