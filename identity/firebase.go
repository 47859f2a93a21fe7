package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"billpay/web/logger"
)

var _ Provider = (*Firebase)(nil)

// Session cookie lifetimes the Admin SDK accepts.
const (
	minSessionTTL = 5 * time.Minute
	maxSessionTTL = 14 * 24 * time.Hour
)

// adminClient is the part of *auth.Client the provider needs.
type adminClient interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
	UpdateUser(ctx context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error)
	SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error)
	VerifySessionCookieAndCheckRevoked(ctx context.Context, sessionCookie string) (*auth.Token, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// FirebaseConfig configures the Firebase provider.
type FirebaseConfig struct {
	ProjectID       string
	APIKey          string
	CredentialsJSON []byte
	SessionTTL      time.Duration
	// ToolkitOptions are appended to the Identity Toolkit client options.
	ToolkitOptions []option.ClientOption
}

// Firebase implements Provider with the Firebase Admin SDK for account
// management and session cookies, and the Identity Toolkit REST API for the
// end-user sign-in flows the Admin SDK does not offer.
type Firebase struct {
	admin   adminClient
	toolkit *identitytoolkit.RelyingpartyService
	ttl     time.Duration
}

// NewFirebase initializes the Admin SDK from service-account credentials.
func NewFirebase(ctx context.Context, cfg FirebaseConfig) (*Firebase, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, option.WithCredentialsJSON(cfg.CredentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("get firebase auth client: %w", err)
	}

	fb, err := newFirebase(ctx, client, cfg)
	if err != nil {
		return nil, err
	}

	logger.Log.Info().Str("project", cfg.ProjectID).Msg("Firebase identity provider initialized")
	return fb, nil
}

func newFirebase(ctx context.Context, admin adminClient, cfg FirebaseConfig) (*Firebase, error) {
	opts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, cfg.ToolkitOptions...)
	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create identity toolkit client: %w", err)
	}

	return &Firebase{
		admin:   admin,
		toolkit: svc.Relyingparty,
		ttl:     clampSessionTTL(cfg.SessionTTL),
	}, nil
}

func clampSessionTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl < minSessionTTL:
		return minSessionTTL
	case ttl > maxSessionTTL:
		return maxSessionTTL
	default:
		return ttl
	}
}

func (f *Firebase) CreateAccount(ctx context.Context, email, password string) (*Account, error) {
	if !validEmail(email) {
		return nil, newError(CodeInvalidEmail, nil)
	}

	_, err := f.admin.CreateUser(ctx, (&auth.UserToCreate{}).Email(email).Password(password))
	if err != nil {
		switch {
		case auth.IsEmailAlreadyExists(err):
			return nil, newError(CodeEmailInUse, err)
		default:
			return nil, mapToolkitError(err, CodeInternal)
		}
	}

	return f.SignInWithPassword(ctx, email, password)
}

func (f *Firebase) SignInWithPassword(ctx context.Context, email, password string) (*Account, error) {
	resp, err := f.toolkit.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, mapToolkitError(err, CodeInvalidCredential)
	}

	return f.openSession(ctx, resp.LocalId, resp.IdToken)
}

func (f *Firebase) SignInWithIdP(ctx context.Context, cred FederatedCredential) (*Account, error) {
	if cred.IDToken == "" {
		return nil, newError(CodeInvalidCredential, errors.New("missing federated id token"))
	}

	providerID := cred.ProviderID
	if providerID == "" {
		providerID = GoogleProviderID
	}
	requestURI := cred.RequestURI
	if requestURI == "" {
		requestURI = "http://localhost"
	}

	body := url.Values{}
	body.Set("id_token", cred.IDToken)
	body.Set("providerId", providerID)

	resp, err := f.toolkit.VerifyAssertion(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyAssertionRequest{
		PostBody:          body.Encode(),
		RequestUri:        requestURI,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, mapToolkitError(err, CodeInvalidCredential)
	}

	return f.openSession(ctx, resp.LocalId, resp.IdToken)
}

func (f *Firebase) UpdateProfile(ctx context.Context, acct *Account, displayName, photoURL string) (*Account, error) {
	if acct == nil {
		return nil, newError(CodeSessionExpired, nil)
	}

	update := (&auth.UserToUpdate{}).DisplayName(displayName)
	if photoURL != "" {
		update = update.PhotoURL(photoURL)
	}

	rec, err := f.admin.UpdateUser(ctx, acct.UID, update)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return nil, newError(CodeUserNotFound, err)
		}
		return nil, newError(CodeInternal, err)
	}

	updated := accountFromRecord(rec, acct.Token, acct.Expires)
	return updated, nil
}

func (f *Firebase) SendPasswordReset(ctx context.Context, email string) error {
	if !validEmail(email) {
		return newError(CodeInvalidEmail, nil)
	}

	_, err := f.toolkit.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		RequestType: "PASSWORD_RESET",
		Email:       email,
	}).Context(ctx).Do()
	if err != nil {
		return mapToolkitError(err, CodeInternal)
	}
	return nil
}

func (f *Firebase) Resume(ctx context.Context, token string) (*Account, error) {
	tok, err := f.admin.VerifySessionCookieAndCheckRevoked(ctx, token)
	if err != nil {
		return nil, newError(CodeSessionExpired, err)
	}

	rec, err := f.admin.GetUser(ctx, tok.UID)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return nil, newError(CodeSessionExpired, err)
		}
		return nil, newError(CodeInternal, err)
	}

	return accountFromRecord(rec, token, time.Unix(tok.Expires, 0)), nil
}

func (f *Firebase) SignOut(ctx context.Context, acct *Account) error {
	if acct == nil || acct.UID == "" {
		return nil
	}
	if err := f.admin.RevokeRefreshTokens(ctx, acct.UID); err != nil {
		return newError(CodeInternal, err)
	}
	return nil
}

// openSession exchanges a fresh ID token for a long-lived session cookie.
func (f *Firebase) openSession(ctx context.Context, uid, idToken string) (*Account, error) {
	cookie, err := f.admin.SessionCookie(ctx, idToken, f.ttl)
	if err != nil {
		return nil, newError(CodeInternal, fmt.Errorf("mint session cookie: %w", err))
	}

	rec, err := f.admin.GetUser(ctx, uid)
	if err != nil {
		return nil, newError(CodeInternal, fmt.Errorf("load user %s: %w", uid, err))
	}

	return accountFromRecord(rec, cookie, time.Now().Add(f.ttl)), nil
}

func accountFromRecord(rec *auth.UserRecord, token string, expires time.Time) *Account {
	acct := &Account{Token: token, Expires: expires}
	if rec != nil && rec.UserInfo != nil {
		acct.UID = rec.UID
		acct.Email = rec.Email
		acct.DisplayName = rec.DisplayName
		acct.PhotoURL = rec.PhotoURL
	}
	return acct
}

// mapToolkitError translates Identity Toolkit error messages such as
// "INVALID_PASSWORD" or "WEAK_PASSWORD : Password should be at least 6
// characters" into provider codes.
func mapToolkitError(err error, fallback string) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return newError(fallback, err)
	}

	msg := gerr.Message
	switch {
	case strings.HasPrefix(msg, "INVALID_PASSWORD"),
		strings.HasPrefix(msg, "INVALID_LOGIN_CREDENTIALS"),
		strings.HasPrefix(msg, "INVALID_IDP_RESPONSE"),
		strings.HasPrefix(msg, "USER_DISABLED"):
		return newError(CodeInvalidCredential, err)
	case strings.HasPrefix(msg, "EMAIL_NOT_FOUND"):
		if fallback == CodeInvalidCredential {
			return newError(CodeInvalidCredential, err)
		}
		return newError(CodeUserNotFound, err)
	case strings.HasPrefix(msg, "EMAIL_EXISTS"):
		return newError(CodeEmailInUse, err)
	case strings.HasPrefix(msg, "INVALID_EMAIL"):
		return newError(CodeInvalidEmail, err)
	case strings.HasPrefix(msg, "WEAK_PASSWORD"):
		return newError(CodeWeakPassword, err)
	}
	return newError(fallback, err)
}
