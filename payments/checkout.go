package payments

import (
	"context"
	"sync"

	"billpay/web/models"
	"billpay/web/session"
)

// IdentitySource reports who is signed in.
type IdentitySource interface {
	Identity() *models.Identity
}

// Checkout is the payment dialog state of one browser.
type Checkout struct {
	svc     *Service
	session IdentitySource

	mu     sync.Mutex
	billID string
	intent *Intent
}

func NewCheckout(svc *Service, sess IdentitySource) *Checkout {
	return &Checkout{svc: svc, session: sess}
}

// Open starts a payment attempt for billID with a freshly drawn intent,
// replacing any earlier one.
func (c *Checkout) Open(billID string) Intent {
	intent := c.svc.generator.NewIntent()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.billID = billID
	c.intent = &intent
	return intent
}

// Current returns the open intent for billID.
func (c *Checkout) Current(billID string) (Intent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.intent == nil || c.billID != billID {
		return Intent{}, false
	}
	return *c.intent, true
}

// Close abandons the open attempt.
func (c *Checkout) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.billID = ""
	c.intent = nil
	return nil
}

// Submit pays bill with the open intent. Without a signed-in identity
// nothing is sent. A submission without an open dialog opens one first. On
// success the intent is forgotten; on failure it stays for a retry.
func (c *Checkout) Submit(ctx context.Context, bill models.Bill, form Form) (models.PaymentRecord, error) {
	payer := c.session.Identity()
	if payer == nil {
		return models.PaymentRecord{}, ErrUnauthenticated
	}
	if err := form.validate(); err != nil {
		return models.PaymentRecord{}, err
	}

	intent, ok := c.Current(bill.ID)
	if !ok {
		intent = c.Open(bill.ID)
	}

	rec := record(intent, bill, form, payer)
	if err := c.svc.submit(ctx, rec); err != nil {
		return models.PaymentRecord{}, err
	}

	c.mu.Lock()
	if c.intent != nil && c.intent.BillsID == intent.BillsID {
		c.billID = ""
		c.intent = nil
	}
	c.mu.Unlock()

	return rec, nil
}

var _ IdentitySource = (*session.Store)(nil)
