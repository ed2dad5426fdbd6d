package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloud-wave-best-zizon/sale-service/internal/domain"
	"github.com/cloud-wave-best-zizon/sale-service/internal/events"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// UploadProof records the buyer's payment proof. Only the owner of the sale
// may upload it, and only once.
func (s *SaleService) UploadProof(ctx context.Context, customerID, saleID, proofRef string) (*domain.Sale, error) {
	proofRef = strings.TrimSpace(proofRef)
	if proofRef == "" {
		return nil, &domain.ValidationError{Field: "proof_ref", Message: "is required"}
	}
	sale, err := s.GetCustomerSale(ctx, customerID, saleID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, sale, domain.EventProofUploaded, func(tr *domain.Transition) {
		tr.ProofRef = proofRef
	})
}

// Approve confirms the payment and commits the reserved stock.
func (s *SaleService) Approve(ctx context.Context, saleID string) (*domain.Sale, error) {
	return s.transitionByID(ctx, saleID, domain.EventApproved, nil)
}

// Reject refuses the payment and returns the reserved stock.
func (s *SaleService) Reject(ctx context.Context, saleID string) (*domain.Sale, error) {
	return s.transitionByID(ctx, saleID, domain.EventRejected, nil)
}

func (s *SaleService) Dispatch(ctx context.Context, saleID, trackingCode string) (*domain.Sale, error) {
	trackingCode = strings.TrimSpace(trackingCode)
	if trackingCode == "" {
		return nil, &domain.ValidationError{Field: "tracking_code", Message: "is required"}
	}
	return s.transitionByID(ctx, saleID, domain.EventDispatched, func(tr *domain.Transition) {
		tr.TrackingCode = trackingCode
	})
}

func (s *SaleService) MarkDelivered(ctx context.Context, saleID string) (*domain.Sale, error) {
	return s.transitionByID(ctx, saleID, domain.EventDelivered, nil)
}

// ConfirmDelivery handles a courier confirmation. The tracking code must
// match the one recorded at dispatch.
func (s *SaleService) ConfirmDelivery(ctx context.Context, saleID, trackingCode string) error {
	sale, err := s.store.GetSale(ctx, saleID)
	if err != nil {
		return err
	}
	if sale.TrackingCode == "" || sale.TrackingCode != strings.TrimSpace(trackingCode) {
		return &domain.ValidationError{Field: "tracking_code", Message: "does not match the dispatched shipment"}
	}
	_, err = s.transition(ctx, sale, domain.EventDelivered, nil)
	return err
}

var _ events.DeliveryConfirmer = (*SaleService)(nil)

func (s *SaleService) transitionByID(ctx context.Context, saleID string, ev domain.Event, mutate func(*domain.Transition)) (*domain.Sale, error) {
	sale, err := s.store.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, sale, ev, mutate)
}

// transition applies ev to the sale as currently read. A concurrent writer
// that moved the sale first makes the store reject it.
func (s *SaleService) transition(ctx context.Context, sale *domain.Sale, ev domain.Event, mutate func(*domain.Transition)) (*domain.Sale, error) {
	tr, err := domain.NewTransition(sale.SaleID, sale.Status, ev, s.now())
	if err != nil {
		s.logger.Info("Transition rejected",
			zap.String("sale_id", sale.SaleID),
			zap.String("status", string(sale.Status)),
			zap.String("event", string(ev)))
		return nil, err
	}
	if mutate != nil {
		mutate(&tr)
	}

	updated, err := s.store.ApplyTransition(ctx, tr)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidStateTransition) || errors.Is(err, domain.ErrConflict) {
			s.logger.Info("Transition lost to a concurrent update",
				zap.String("sale_id", sale.SaleID),
				zap.String("event", string(ev)),
				zap.Error(err))
			return nil, err
		}
		return nil, fmt.Errorf("failed to apply %s to sale %s: %w", ev, sale.SaleID, err)
	}

	s.logger.Info("Sale status changed",
		zap.String("sale_id", updated.SaleID),
		zap.String("from", string(tr.From)),
		zap.String("to", string(tr.To)),
		zap.String("stock", tr.Stock.String()))

	s.publish(ctx, updated, tr)
	return updated, nil
}

// publish never fails the caller; the transition is already durable.
func (s *SaleService) publish(ctx context.Context, sale *domain.Sale, tr domain.Transition) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event := events.StatusChangedEvent{
		EventID:    s.newID(),
		Type:       events.StatusChangedType,
		SaleID:     sale.SaleID,
		CustomerID: sale.CustomerID,
		OldStatus:  string(tr.From),
		NewStatus:  string(tr.To),
		OccurredAt: tr.At,
		RequestID:  requestIDFrom(ctx),
	}
	if err := s.publisher.PublishStatusChanged(ctx, event); err != nil {
		s.logger.Warn("Failed to publish status change",
			zap.String("sale_id", sale.SaleID),
			zap.String("event_id", event.EventID),
			zap.String("new_status", event.NewStatus),
			zap.Error(err))
	}
}
