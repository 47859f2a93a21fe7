package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var _ Provider = (*Memory)(nil)

type memoryUser struct {
	uid          string
	email        string
	displayName  string
	photoURL     string
	passwordHash []byte
}

// Memory is an in-process Provider for development and tests. Accounts and
// sessions are lost on restart.
type Memory struct {
	mu       sync.Mutex
	cost     int
	ttl      time.Duration
	now      func() time.Time
	users    map[string]*memoryUser // by lower-cased e-mail
	sessions map[string]string      // token -> uid
	resets   []string
}

// NewMemory returns an empty provider whose sessions last ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		cost:     bcrypt.DefaultCost,
		ttl:      ttl,
		now:      time.Now,
		users:    make(map[string]*memoryUser),
		sessions: make(map[string]string),
	}
}

// WithHashCost lowers the bcrypt cost; tests use bcrypt.MinCost.
func (m *Memory) WithHashCost(cost int) *Memory {
	m.cost = cost
	return m
}

func (m *Memory) CreateAccount(_ context.Context, email, password string) (*Account, error) {
	if !validEmail(email) {
		return nil, newError(CodeInvalidEmail, nil)
	}
	if len(password) < MinPasswordLength {
		return nil, newError(CodeWeakPassword, ErrPasswordTooShort)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return nil, newError(CodeInternal, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(email)
	if _, exists := m.users[key]; exists {
		return nil, newError(CodeEmailInUse, nil)
	}

	u := &memoryUser{uid: uuid.NewString(), email: email, passwordHash: hash}
	m.users[key] = u
	return m.openSession(u), nil
}

func (m *Memory) SignInWithPassword(_ context.Context, email, password string) (*Account, error) {
	m.mu.Lock()
	u, ok := m.users[strings.ToLower(email)]
	m.mu.Unlock()

	if !ok || u.passwordHash == nil {
		return nil, newError(CodeInvalidCredential, nil)
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		return nil, newError(CodeInvalidCredential, nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openSession(u), nil
}

// SignInWithIdP trusts the credential: its ID token is taken as the e-mail
// of the federated account, which is created on first use.
func (m *Memory) SignInWithIdP(_ context.Context, cred FederatedCredential) (*Account, error) {
	if cred.IDToken == "" || !validEmail(cred.IDToken) {
		return nil, newError(CodeInvalidCredential, errors.New("unusable federated credential"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(cred.IDToken)
	u, ok := m.users[key]
	if !ok {
		u = &memoryUser{
			uid:         uuid.NewString(),
			email:       cred.IDToken,
			displayName: strings.SplitN(cred.IDToken, "@", 2)[0],
		}
		m.users[key] = u
	}
	return m.openSession(u), nil
}

func (m *Memory) UpdateProfile(_ context.Context, acct *Account, displayName, photoURL string) (*Account, error) {
	if acct == nil {
		return nil, newError(CodeSessionExpired, nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.userByToken(acct.Token)
	if u == nil {
		return nil, newError(CodeSessionExpired, nil)
	}
	u.displayName = displayName
	u.photoURL = photoURL

	updated := *acct
	updated.DisplayName = displayName
	updated.PhotoURL = photoURL
	return &updated, nil
}

func (m *Memory) SendPasswordReset(_ context.Context, email string) error {
	if !validEmail(email) {
		return newError(CodeInvalidEmail, nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[strings.ToLower(email)]; !ok {
		return newError(CodeUserNotFound, nil)
	}
	m.resets = append(m.resets, email)
	return nil
}

func (m *Memory) Resume(_ context.Context, token string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.userByToken(token)
	if u == nil {
		return nil, newError(CodeSessionExpired, nil)
	}
	return m.account(u, token), nil
}

func (m *Memory) SignOut(_ context.Context, acct *Account) error {
	if acct == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	uid := m.sessions[acct.Token]
	if uid == "" {
		return nil
	}
	// revoke every session of the account, like a refresh-token revocation
	for token, owner := range m.sessions {
		if owner == uid {
			delete(m.sessions, token)
		}
	}
	return nil
}

// ResetRequests lists the addresses a reset e-mail was sent to.
func (m *Memory) ResetRequests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.resets...)
}

// openSession must be called with mu held.
func (m *Memory) openSession(u *memoryUser) *Account {
	token := uuid.NewString()
	m.sessions[token] = u.uid
	return m.account(u, token)
}

func (m *Memory) account(u *memoryUser, token string) *Account {
	return &Account{
		UID:         u.uid,
		Email:       u.email,
		DisplayName: u.displayName,
		PhotoURL:    u.photoURL,
		Token:       token,
		Expires:     m.now().Add(m.ttl),
	}
}

func (m *Memory) userByToken(token string) *memoryUser {
	uid, ok := m.sessions[token]
	if !ok {
		return nil
	}
	for _, u := range m.users {
		if u.uid == uid {
			return u
		}
	}
	return nil
}
