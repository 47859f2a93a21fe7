package payments

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"billpay/web/logger"
	"billpay/web/models"
	"billpay/web/session"
)

// SessionSource is the session the history view follows.
type SessionSource interface {
	IdentitySource
	Subscribe(fn func(session.Snapshot)) (unsubscribe func())
}

// History is the payment history view state of one browser. It drops its
// records whenever the signed-in identity changes and ignores fetches that
// complete after such a change or after Close.
type History struct {
	svc         *Service
	session     SessionSource
	unsubscribe func()

	mu         sync.Mutex
	owner      string // e-mail the records belong to
	records    []models.PaymentRecord
	generation uint64
	pending    *models.PaymentRecord
	closed     bool
}

func NewHistory(svc *Service, sess SessionSource) *History {
	h := &History{svc: svc, session: sess}
	h.unsubscribe = sess.Subscribe(h.onSession)
	return h
}

func (h *History) onSession(snap session.Snapshot) {
	email := ""
	if snap.Identity != nil {
		email = snap.Identity.Email
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if email == h.owner {
		return
	}
	h.owner = email
	h.records = nil
	h.pending = nil
	h.generation++
}

// Refresh refetches the signed-in user's records, most recent first. With
// no identity the list is empty and the backend is not called.
func (h *History) Refresh(ctx context.Context) ([]models.PaymentRecord, error) {
	payer := h.session.Identity()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrDiscarded
	}
	if payer == nil {
		h.owner = ""
		h.records = nil
		h.mu.Unlock()
		return []models.PaymentRecord{}, nil
	}
	if payer.Email != h.owner {
		h.owner = payer.Email
		h.records = nil
		h.pending = nil
		h.generation++
	}
	generation := h.generation
	h.mu.Unlock()

	fetched, err := h.svc.backend.ListPayments(ctx, payer.Email)
	if err != nil {
		return nil, fmt.Errorf("fetch payment history: %w", err)
	}
	slices.Reverse(fetched)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.generation != generation {
		return nil, ErrDiscarded
	}
	h.records = fetched
	return slices.Clone(fetched), nil
}

// Records returns the records of the last successful Refresh.
func (h *History) Records() []models.PaymentRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.records)
}

// Find looks a record up by id among the fetched records.
func (h *History) Find(id string) (models.PaymentRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.records {
		if r.ID == id {
			return r, true
		}
	}
	return models.PaymentRecord{}, false
}

// EditForm carries the editable fields; every other field of the record is
// never sent.
type EditForm struct {
	Username string
	Address  string
}

// Edit updates username and address of a record. It reports whether the
// backend modified anything; only then is the history refetched.
func (h *History) Edit(ctx context.Context, id string, form EditForm) (bool, error) {
	if h.session.Identity() == nil {
		return false, ErrUnauthenticated
	}
	if err := required(
		[2]string{"username", form.Username},
		[2]string{"address", form.Address},
	); err != nil {
		return false, err
	}

	modified, err := h.svc.backend.UpdatePayment(ctx, id, models.PaymentUpdate{
		Username: strings.TrimSpace(form.Username),
		Address:  strings.TrimSpace(form.Address),
	})
	if err != nil {
		return false, fmt.Errorf("update payment record %s: %w", id, err)
	}
	if modified == 0 {
		return false, nil
	}

	h.refetch(ctx)
	return true, nil
}

// RequestDelete marks a record for deletion pending confirmation. It makes
// no backend call.
func (h *History) RequestDelete(id string) (models.PaymentRecord, error) {
	rec, ok := h.Find(id)
	if !ok {
		return models.PaymentRecord{}, ErrUnknownRecord
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = &rec
	return rec, nil
}

// PendingDelete returns the record awaiting confirmation.
func (h *History) PendingDelete() (models.PaymentRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending == nil {
		return models.PaymentRecord{}, false
	}
	return *h.pending, true
}

// CancelDelete dismisses the confirmation.
func (h *History) CancelDelete() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = nil
}

// ConfirmDelete deletes the record awaiting confirmation, which must be id,
// and refetches on success. The confirmation is consumed either way.
func (h *History) ConfirmDelete(ctx context.Context, id string) (models.PaymentRecord, error) {
	if h.session.Identity() == nil {
		return models.PaymentRecord{}, ErrUnauthenticated
	}

	h.mu.Lock()
	pending := h.pending
	if pending == nil || pending.ID != id {
		h.mu.Unlock()
		return models.PaymentRecord{}, ErrNoPendingDelete
	}
	h.pending = nil
	h.mu.Unlock()

	if _, err := h.svc.backend.DeletePayment(ctx, id); err != nil {
		return *pending, fmt.Errorf("delete payment record %s: %w", id, err)
	}

	h.refetch(ctx)
	return *pending, nil
}

// refetch refreshes after a successful write. A failure here does not undo
// the write; the next render fetches again.
func (h *History) refetch(ctx context.Context) {
	if _, err := h.Refresh(ctx); err != nil && !errors.Is(err, ErrDiscarded) {
		logger.Log.Warn().Err(err).Msg("refetching payment history after write")
	}
}

// Close detaches from the session and discards the records.
func (h *History) Close() error {
	h.unsubscribe()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.records = nil
	h.pending = nil
	return nil
}
