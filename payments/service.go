// Package payments submits payments and manages a user's payment history.
package payments

import (
	"context"
	"fmt"
	"strings"

	"billpay/web/metrics"
	"billpay/web/models"
)

// Backend is the part of the backend client payments use.
type Backend interface {
	ListPayments(ctx context.Context, email string) ([]models.PaymentRecord, error)
	CreatePayment(ctx context.Context, rec models.PaymentRecord) error
	UpdatePayment(ctx context.Context, id string, upd models.PaymentUpdate) (int64, error)
	DeletePayment(ctx context.Context, id string) (int64, error)
}

// Service holds what every browser's payment views share.
type Service struct {
	backend   Backend
	generator Generator
	metrics   *metrics.Metrics
}

func NewService(b Backend, gen Generator, m *metrics.Metrics) *Service {
	return &Service{backend: b, generator: gen, metrics: m}
}

// Form is what the payer types into the payment dialog.
type Form struct {
	Username string
	Phone    string
	Address  string
}

func (f Form) validate() error {
	return required(
		[2]string{"username", f.Username},
		[2]string{"phone", f.Phone},
		[2]string{"address", f.Address},
	)
}

// record assembles the submission. The e-mail always comes from the
// signed-in identity.
func record(intent Intent, bill models.Bill, form Form, payer *models.Identity) models.PaymentRecord {
	return models.PaymentRecord{
		BillsID:     intent.BillsID,
		Username:    strings.TrimSpace(form.Username),
		Phone:       strings.TrimSpace(form.Phone),
		Address:     strings.TrimSpace(form.Address),
		Email:       payer.Email,
		PaymentDate: intent.PaymentDate,
		Amount:      bill.Amount,
		Title:       bill.Title,
		Category:    bill.Category,
	}
}

func (s *Service) submit(ctx context.Context, rec models.PaymentRecord) error {
	if err := s.backend.CreatePayment(ctx, rec); err != nil {
		s.metrics.PaymentSubmitted("failed")
		return fmt.Errorf("submit payment for bill %s: %w", rec.BillsID, err)
	}
	s.metrics.PaymentSubmitted("ok")
	return nil
}
