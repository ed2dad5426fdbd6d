package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloud-wave-best-zizon/sale-service/internal/domain"
	"github.com/shopspring/decimal"
)

var ErrAlreadyExists = errors.New("already exists")

type ProductStore interface {
	CreateProduct(ctx context.Context, product *domain.Product) error
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	// UpdatePrice affects future checkouts only; placed sales keep their snapshot.
	UpdatePrice(ctx context.Context, productID string, price decimal.Decimal) error
}

// StockLedger is the only way product stock changes.
type StockLedger interface {
	// Reserve decrements stock by quantity if at least that much is available.
	// Fails with *domain.InsufficientStockError and no side effect otherwise.
	Reserve(ctx context.Context, saleID, productID string, quantity int) (*domain.Reservation, error)
	// Commit finalizes a reservation so it can never be released.
	Commit(ctx context.Context, reservationID string) error
	// Release gives the reserved quantity back. Releasing twice is a no-op.
	Release(ctx context.Context, reservationID string) error
	GetReservation(ctx context.Context, reservationID string) (*domain.Reservation, error)
}

type SaleStore interface {
	// CreateSale persists the sale and its lines. Every line must point to a
	// RESERVED reservation of the same sale.
	CreateSale(ctx context.Context, sale *domain.Sale) error
	GetSale(ctx context.Context, saleID string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]*domain.Sale, error)
	// ApplyTransition changes the status only if the sale is still in tr.From
	// and applies the stock effect to every line reservation in the same write.
	ApplyTransition(ctx context.Context, tr domain.Transition) (*domain.Sale, error)
}

type CustomerStore interface {
	// EnsureCustomer returns the existing profile or creates it.
	EnsureCustomer(ctx context.Context, customerID string, now time.Time) (*domain.Customer, bool, error)
}

// Store is a complete backend.
type Store interface {
	ProductStore
	StockLedger
	SaleStore
	CustomerStore
	Close() error
}

var (
	errReservationCommitted = &reservationStateError{status: domain.ReservationCommitted}
	errReservationReleased  = &reservationStateError{status: domain.ReservationReleased}
)

type reservationStateError struct {
	status domain.ReservationStatus
}

func (e *reservationStateError) Error() string {
	return "reservation already " + string(e.status)
}

func (e *reservationStateError) Is(target error) bool {
	return target == domain.ErrInvalidStateTransition
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*DynamoStore)(nil)
)
