package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloud-wave-best-zizon/sale-service/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DeliveryConfirmer applies a courier delivery confirmation to a sale.
type DeliveryConfirmer interface {
	ConfirmDelivery(ctx context.Context, saleID, trackingCode string) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	defaultRetryBackoff = 500 * time.Millisecond
	defaultMaxBackoff   = 30 * time.Second
)

// CourierConsumer reads delivery confirmations relayed from the courier webhook.
type CourierConsumer struct {
	reader    messageReader
	confirmer DeliveryConfirmer
	logger    *zap.Logger

	retryBackoff time.Duration
	maxBackoff   time.Duration
}

func NewCourierConsumer(brokers, groupID, topic string, confirmer DeliveryConfirmer, logger *zap.Logger) *CourierConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     strings.Split(brokers, ","),
		GroupID:     groupID,
		Topic:       topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &CourierConsumer{
		reader:       reader,
		confirmer:    confirmer,
		logger:       logger,
		retryBackoff: defaultRetryBackoff,
		maxBackoff:   defaultMaxBackoff,
	}
}

// Run consumes until ctx is cancelled, then closes the reader.
func (cc *CourierConsumer) Run(ctx context.Context) error {
	defer cc.reader.Close()
	cc.logger.Info("Courier consumer started")

	for {
		msg, err := cc.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				cc.logger.Info("Courier consumer stopped")
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		// 같은 메시지를 성공할 때까지 재시도; 뒤 메시지 커밋이 실패한 메시지를 건너뛰면 안 됨
		if err := cc.handleWithRetry(ctx, msg); err != nil {
			cc.logger.Info("Courier consumer stopped while retrying",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset))
			return nil
		}

		// 처리 성공 시에만 커밋
		if err := cc.reader.CommitMessages(ctx, msg); err != nil {
			cc.logger.Error("Error committing message", zap.Error(err))
		}
	}
}

// handleWithRetry processes msg until it succeeds, backing off between
// attempts. It only gives up when ctx is done.
func (cc *CourierConsumer) handleWithRetry(ctx context.Context, msg kafka.Message) error {
	wait := cc.retryBackoff
	for attempt := 1; ; attempt++ {
		err := cc.processMessage(ctx, msg)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		cc.logger.Error("Error processing message",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, cc.maxBackoff)
	}
}

// processMessage returns an error only for failures worth redelivering.
// Malformed, unknown or already applied confirmations are logged and acked.
func (cc *CourierConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event DeliveryConfirmedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		cc.logger.Warn("Dropping malformed courier event", zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}

	err := cc.confirmer.ConfirmDelivery(ctx, event.SaleID, event.TrackingCode)
	switch {
	case err == nil:
		cc.logger.Info("Delivery confirmed by courier",
			zap.String("sale_id", event.SaleID),
			zap.String("tracking_code", event.TrackingCode))
		return nil
	case errors.Is(err, domain.ErrInvalidStateTransition):
		cc.logger.Info("Courier event already applied or out of order",
			zap.String("sale_id", event.SaleID),
			zap.Error(err))
		return nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrValidation):
		cc.logger.Warn("Dropping courier event",
			zap.String("sale_id", event.SaleID),
			zap.Error(err))
		return nil
	}
	return fmt.Errorf("confirm delivery for sale %s: %w", event.SaleID, err)
}
