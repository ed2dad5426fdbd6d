package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "RESERVED"
	ReservationCommitted ReservationStatus = "COMMITTED"
	ReservationReleased  ReservationStatus = "RELEASED"
)

// Reservation records stock taken from a product for one sale line.
// Stock is decremented when the reservation is created; committing keeps
// the decrement permanently, releasing gives it back exactly once.
type Reservation struct {
	ReservationID string            `json:"reservation_id"`
	SaleID        string            `json:"sale_id"`
	ProductID     string            `json:"product_id"`
	ProductName   string            `json:"product_name"`
	Quantity      int               `json:"quantity"`
	UnitPrice     decimal.Decimal   `json:"unit_price"`
	Status        ReservationStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
