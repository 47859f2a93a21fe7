package identity

import (
	"context"
	"sync"

	"billpay/web/models"
)

// ChangeFunc receives the identity after every session change; nil means
// signed out.
type ChangeFunc func(*models.Identity)

type listener struct {
	id int
	fn ChangeFunc
}

// Session is the provider session of one browser. It publishes every change
// of the signed-in account to its listeners in subscription order.
//
// Listeners run on the goroutine that caused the change and must not call
// back into the Session synchronously.
type Session struct {
	provider Provider

	deliver sync.Mutex // serializes notifications

	mu        sync.Mutex
	account   *Account
	resolved  bool
	listeners []listener
	nextID    int
}

// NewSession returns an unresolved session: nothing is published until
// Restore or a sign-in completes.
func NewSession(p Provider) *Session {
	return &Session{provider: p}
}

// OnChange registers fn. If the session has already resolved, fn is called
// at once with the current identity.
func (s *Session) OnChange(fn ChangeFunc) (unsubscribe func()) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	resolved, current := s.resolved, s.account.Identity()
	s.mu.Unlock()

	if resolved {
		fn(current)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					break
				}
			}
		})
	}
}

// Restore resumes a session from a token persisted by an earlier request.
// An empty token, or one the provider rejects, resolves the session as
// signed out. A sign-in or sign-out that lands while Resume is still running
// wins; the restored account is then dropped.
func (s *Session) Restore(ctx context.Context, token string) error {
	if token == "" {
		s.settle(nil)
		return nil
	}

	acct, err := s.provider.Resume(ctx, token)
	if err != nil {
		s.settle(nil)
		return err
	}
	s.settle(acct)
	return nil
}

func (s *Session) CreateAccount(ctx context.Context, email, password string) error {
	acct, err := s.provider.CreateAccount(ctx, email, password)
	if err != nil {
		return err
	}
	s.publish(acct)
	return nil
}

func (s *Session) SignIn(ctx context.Context, email, password string) error {
	acct, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return err
	}
	s.publish(acct)
	return nil
}

func (s *Session) SignInWithIdP(ctx context.Context, cred FederatedCredential) error {
	acct, err := s.provider.SignInWithIdP(ctx, cred)
	if err != nil {
		return err
	}
	s.publish(acct)
	return nil
}

// UpdateProfile changes the current account's display name and photo and
// publishes the updated identity.
func (s *Session) UpdateProfile(ctx context.Context, displayName, photoURL string) error {
	s.mu.Lock()
	acct := s.account
	s.mu.Unlock()

	if acct == nil {
		return ErrSessionExpired
	}

	updated, err := s.provider.UpdateProfile(ctx, acct, displayName, photoURL)
	if err != nil {
		return err
	}
	s.publish(updated)
	return nil
}

func (s *Session) SendPasswordReset(ctx context.Context, email string) error {
	return s.provider.SendPasswordReset(ctx, email)
}

// SignOut always ends the local session; the returned error only reports a
// failed revocation at the provider.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	acct := s.account
	s.mu.Unlock()

	err := s.provider.SignOut(ctx, acct)
	s.publish(nil)
	return err
}

// Current returns the signed-in identity, or nil.
func (s *Session) Current() *models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account.Identity()
}

// Token returns the provider session token to persist, or "".
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return ""
	}
	return s.account.Token
}

// Account returns a copy of the signed-in account, or nil.
func (s *Session) Account() *Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return nil
	}
	acct := *s.account
	return &acct
}

// Resolved reports whether the session has published at least once.
func (s *Session) Resolved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved
}

func (s *Session) publish(acct *Account) {
	s.notify(acct, false)
}

// settle publishes acct only if nothing has been published yet.
func (s *Session) settle(acct *Account) {
	s.notify(acct, true)
}

func (s *Session) notify(acct *Account, first bool) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	if first && s.resolved {
		s.mu.Unlock()
		return
	}
	s.account = acct
	s.resolved = true
	listeners := append([]listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l.fn(acct.Identity())
	}
}
