package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloud-wave-best-zizon/sale-service/internal/domain"
	"go.uber.org/zap"
)

const compensationTimeout = 10 * time.Second

type CheckoutInput struct {
	CustomerID    string
	Items         []domain.CartItem
	DeliveryMode  string
	PaymentMethod string
}

// Checkout reserves stock for every cart line and records the sale in
// PENDING_PAYMENT. Either everything is reserved and the sale exists, or
// nothing is left reserved.
func (s *SaleService) Checkout(ctx context.Context, in CheckoutInput) (*domain.Sale, error) {
	customerID := strings.TrimSpace(in.CustomerID)
	if customerID == "" {
		return nil, &domain.ValidationError{Field: "customer_id", Message: "is required"}
	}
	cart, err := s.normalizeCart(in.Items)
	if err != nil {
		return nil, err
	}
	mode, err := domain.ParseDeliveryMode(in.DeliveryMode)
	if err != nil {
		return nil, err
	}
	method, err := domain.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if _, created, err := s.store.EnsureCustomer(ctx, customerID, now); err != nil {
		return nil, fmt.Errorf("failed to ensure customer profile: %w", err)
	} else if created {
		s.logger.Info("Customer profile created", zap.String("customer_id", customerID))
	}

	saleID := s.newID()
	reserved := make([]*domain.Reservation, 0, len(cart))
	for _, item := range cart {
		res, err := s.store.Reserve(ctx, saleID, item.ProductID, item.Quantity)
		if err != nil {
			s.logger.Info("Reservation failed",
				zap.String("sale_id", saleID),
				zap.String("product_id", item.ProductID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err))
			return nil, s.abortCheckout(ctx, saleID, reserved, err)
		}
		s.logger.Debug("Stock reserved",
			zap.String("sale_id", saleID),
			zap.String("product_id", res.ProductID),
			zap.String("reservation_id", res.ReservationID),
			zap.Int("quantity", res.Quantity))
		reserved = append(reserved, res)
	}

	lines := make([]domain.SaleLine, 0, len(reserved))
	for _, res := range reserved {
		lines = append(lines, domain.LineFromReservation(res))
	}
	sale := domain.NewSale(saleID, customerID, mode, method, lines, s.cfg.ShippingFlatCost, now)

	if err := s.store.CreateSale(ctx, sale); err != nil {
		return nil, s.abortCheckout(ctx, saleID, reserved, fmt.Errorf("failed to create sale: %w", err))
	}

	s.logger.Info("Sale created",
		zap.String("sale_id", sale.SaleID),
		zap.String("customer_id", customerID),
		zap.Int("lines", len(sale.Lines)),
		zap.String("total", sale.Total.String()),
		zap.String("delivery_mode", string(mode)),
		zap.String("payment_method", string(method)))

	return sale, nil
}

// normalizeCart merges repeated products, keeping first-seen order.
func (s *SaleService) normalizeCart(items []domain.CartItem) ([]domain.CartItem, error) {
	if len(items) == 0 {
		return nil, &domain.ValidationError{Field: "items", Message: "cart is empty"}
	}

	index := make(map[string]int, len(items))
	cart := make([]domain.CartItem, 0, len(items))
	for i, item := range items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			return nil, &domain.ValidationError{Field: fmt.Sprintf("items[%d].product_id", i), Message: "is required"}
		}
		if item.Quantity <= 0 {
			return nil, &domain.ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "must be positive"}
		}
		if at, ok := index[productID]; ok {
			cart[at].Quantity += item.Quantity
			continue
		}
		index[productID] = len(cart)
		cart = append(cart, domain.CartItem{ProductID: productID, Quantity: item.Quantity})
	}

	if s.cfg.MaxCartLines > 0 && len(cart) > s.cfg.MaxCartLines {
		return nil, &domain.ValidationError{
			Field:   "items",
			Message: fmt.Sprintf("at most %d distinct products per checkout", s.cfg.MaxCartLines),
		}
	}
	return cart, nil
}

// abortCheckout releases what was reserved before returning cause. It runs
// even if ctx is already cancelled.
func (s *SaleService) abortCheckout(ctx context.Context, saleID string, reserved []*domain.Reservation, cause error) error {
	if len(reserved) == 0 {
		return cause
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	var failures []error
	for _, res := range reserved {
		if err := s.store.Release(ctx, res.ReservationID); err != nil {
			s.logger.Error("Failed to release reservation during checkout compensation",
				zap.String("sale_id", saleID),
				zap.String("reservation_id", res.ReservationID),
				zap.String("product_id", res.ProductID),
				zap.Int("quantity", res.Quantity),
				zap.Bool("operator_action_required", true),
				zap.Error(err))
			failures = append(failures, fmt.Errorf("reservation %s: %w", res.ReservationID, err))
		}
	}
	if len(failures) > 0 {
		return errors.Join(cause, domain.ErrCompensationFailed, errors.Join(failures...))
	}

	s.logger.Info("Checkout compensated",
		zap.String("sale_id", saleID),
		zap.Int("released", len(reserved)))
	return cause
}
