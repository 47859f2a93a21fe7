package catalog

import (
	"context"
	"fmt"
	"net/url"

	"billpay/web/models"
)

// FeaturedCount is the number of bills on the home page.
const FeaturedCount = 8

// BillSource is the part of the backend client the catalogue reads from.
type BillSource interface {
	ListBills(ctx context.Context, query url.Values) ([]models.Bill, error)
	GetBill(ctx context.Context, id string) (*models.Bill, error)
}

type Service struct {
	bills BillSource
}

func NewService(bills BillSource) *Service {
	return &Service{bills: bills}
}

// List forwards the filter to the backend and re-applies it to the answer,
// so the result never holds a bill the filter rejects.
func (s *Service) List(ctx context.Context, f Filter) ([]models.Bill, error) {
	bills, err := s.bills.ListBills(ctx, f.Query())
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return f.Apply(bills), nil
}

// Featured returns the first bills of the unfiltered catalogue.
func (s *Service) Featured(ctx context.Context) ([]models.Bill, error) {
	bills, err := s.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	if len(bills) > FeaturedCount {
		bills = bills[:FeaturedCount]
	}
	return bills, nil
}

// Get returns one bill; a missing bill wraps backend.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*models.Bill, error) {
	bill, err := s.bills.GetBill(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get bill %s: %w", id, err)
	}
	return bill, nil
}
