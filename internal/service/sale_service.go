package service

import (
	"context"
	"time"

	"github.com/cloud-wave-best-zizon/sale-service/internal/events"
	"github.com/cloud-wave-best-zizon/sale-service/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type SaleServiceConfig struct {
	ShippingFlatCost decimal.Decimal
	MaxCartLines     int
}

// SaleService runs checkout and the sale lifecycle on top of a Store.
// Statuses only change through guarded store transitions; the service never
// retries a lost race.
type SaleService struct {
	store     repository.Store
	publisher events.Publisher
	logger    *zap.Logger
	cfg       SaleServiceConfig

	now   func() time.Time
	newID func() string
}

func NewSaleService(store repository.Store, publisher events.Publisher, cfg SaleServiceConfig, logger *zap.Logger) *SaleService {
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}
	return &SaleService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

type requestIDKey struct{}

// WithRequestID tags ctx so published events carry the originating request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
