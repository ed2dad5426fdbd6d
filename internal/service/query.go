package service

import (
	"context"
	"strings"

	"github.com/cloud-wave-best-zizon/sale-service/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func (s *SaleService) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	return s.store.GetSale(ctx, saleID)
}

// GetCustomerSale hides sales owned by someone else behind ErrSaleNotFound.
func (s *SaleService) GetCustomerSale(ctx context.Context, customerID, saleID string) (*domain.Sale, error) {
	sale, err := s.store.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if customerID == "" || sale.CustomerID != customerID {
		return nil, domain.ErrSaleNotFound
	}
	return sale, nil
}

func (s *SaleService) ListSales(ctx context.Context, filter domain.SaleFilter) ([]*domain.Sale, error) {
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultListLimit
	case filter.Limit > maxListLimit:
		filter.Limit = maxListLimit
	}
	return s.store.ListSales(ctx, filter)
}

func (s *SaleService) ListCustomerSales(ctx context.Context, customerID string, filter domain.SaleFilter) ([]*domain.Sale, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, &domain.ValidationError{Field: "customer_id", Message: "is required"}
	}
	filter.CustomerID = customerID
	return s.ListSales(ctx, filter)
}
