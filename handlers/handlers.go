// Package handlers renders the BillPay pages.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"billpay/web/catalog"
	"billpay/web/middleware"
	"billpay/web/payments"
	"billpay/web/session"
)

// DefaultRedirectDelay is how long the payment success page stays up
// before moving on to the history.
const DefaultRedirectDelay = 1500 * time.Millisecond

// Views is the view state one browser keeps between requests.
type Views struct {
	Checkout *payments.Checkout
	History  *payments.History
}

func (v *Views) Close() error {
	return errors.Join(v.Checkout.Close(), v.History.Close())
}

// NewViews returns the factory the session registry uses to build each
// browser's views.
func NewViews(svc *payments.Service) func(*session.Store) *Views {
	return func(s *session.Store) *Views {
		return &Views{
			Checkout: payments.NewCheckout(svc, s),
			History:  payments.NewHistory(svc, s),
		}
	}
}

// Config wires the page handlers.
type Config struct {
	Catalog        *catalog.Service
	RedirectDelay  time.Duration
	GoogleClientID string
	SecureCookies  bool
}

// Handlers serves every page of the site.
type Handlers struct {
	catalog        *catalog.Service
	redirectDelay  time.Duration
	googleClientID string
	secureCookies  bool
	pages          pageSet
}

func New(cfg Config) (*Handlers, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	if cfg.RedirectDelay <= 0 {
		cfg.RedirectDelay = DefaultRedirectDelay
	}
	return &Handlers{
		catalog:        cfg.Catalog,
		redirectDelay:  cfg.RedirectDelay,
		googleClientID: cfg.GoogleClientID,
		secureCookies:  cfg.SecureCookies,
		pages:          pages,
	}, nil
}

// viewsOf returns the browser's view state. It is nil outside LoadSession.
func viewsOf(r *http.Request) *Views {
	e := middleware.GetEntry[*Views](r)
	if e == nil {
		return nil
	}
	return e.Views
}

func storeOf(r *http.Request) *session.Store {
	return middleware.GetStore(r)
}
