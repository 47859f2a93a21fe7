// Package identity talks to the hosted identity provider and tracks the
// signed-in account of one browser.
package identity

import (
	"context"
	"time"

	"billpay/web/models"
)

// Provider is the capability set of the identity service.
type Provider interface {
	// CreateAccount registers email/password and signs the new account in.
	CreateAccount(ctx context.Context, email, password string) (*Account, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Account, error)
	SignInWithIdP(ctx context.Context, cred FederatedCredential) (*Account, error)
	// UpdateProfile sets display name and photo URL and returns the updated account.
	UpdateProfile(ctx context.Context, acct *Account, displayName, photoURL string) (*Account, error)
	SendPasswordReset(ctx context.Context, email string) error
	// Resume validates a token from an earlier sign-in.
	Resume(ctx context.Context, token string) (*Account, error)
	// SignOut revokes the account's sessions.
	SignOut(ctx context.Context, acct *Account) error
}

// Account is a signed-in account together with its provider session token.
type Account struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
	Token       string
	Expires     time.Time
}

// Identity returns the public part of the account.
func (a *Account) Identity() *models.Identity {
	if a == nil {
		return nil
	}
	return &models.Identity{
		ID:          a.UID,
		DisplayName: a.DisplayName,
		Email:       a.Email,
		PhotoURL:    a.PhotoURL,
	}
}

// GoogleProviderID is the federated provider offered on the login pages.
const GoogleProviderID = "google.com"

// FederatedCredential is a credential obtained from a federated provider's
// sign-in flow in the browser.
type FederatedCredential struct {
	ProviderID string
	IDToken    string
	RequestURI string
}
