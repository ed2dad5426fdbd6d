package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const StatusChangedType = "sale.status.changed"

// StatusChangedEvent is published after every successful sale transition.
type StatusChangedEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	SaleID     string    `json:"sale_id"`
	CustomerID string    `json:"customer_id"`
	OldStatus  string    `json:"old_status"`
	NewStatus  string    `json:"new_status"`
	OccurredAt time.Time `json:"occurred_at"`
	RequestID  string    `json:"request_id,omitempty"`
}

// DeliveryConfirmedEvent comes from the courier integration.
type DeliveryConfirmedEvent struct {
	EventID      string    `json:"event_id"`
	SaleID       string    `json:"sale_id"`
	TrackingCode string    `json:"tracking_code"`
	DeliveredAt  time.Time `json:"delivered_at"`
}

type Publisher interface {
	PublishStatusChanged(ctx context.Context, event StatusChangedEvent) error
	Close() error
}

// LogPublisher only logs events. Used when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishStatusChanged(_ context.Context, event StatusChangedEvent) error {
	p.logger.Info("Sale status changed",
		zap.String("event_id", event.EventID),
		zap.String("sale_id", event.SaleID),
		zap.String("old_status", event.OldStatus),
		zap.String("new_status", event.NewStatus))
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
