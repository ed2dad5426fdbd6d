package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DeliveryMode string

const (
	DeliveryPickup   DeliveryMode = "pickup"
	DeliveryShipping DeliveryMode = "shipping"
)

func ParseDeliveryMode(raw string) (DeliveryMode, error) {
	switch m := DeliveryMode(strings.ToLower(strings.TrimSpace(raw))); m {
	case DeliveryPickup, DeliveryShipping:
		return m, nil
	}
	return "", &ValidationError{Field: "delivery_mode", Message: "must be pickup or shipping"}
}

type PaymentMethod string

const (
	PaymentTransfer PaymentMethod = "transfer"
	PaymentCash     PaymentMethod = "cash"
	PaymentCrypto   PaymentMethod = "crypto"
)

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(raw))); m {
	case PaymentTransfer, PaymentCash, PaymentCrypto:
		return m, nil
	}
	return "", &ValidationError{Field: "payment_method", Message: "must be transfer, cash or crypto"}
}

// SaleLine is written once at checkout. UnitPrice is the price seen when the
// stock was reserved and is never looked up again.
type SaleLine struct {
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	ReservationID string          `json:"reservation_id"`
}

// LineFromReservation snapshots a reserved quantity into a sale line.
func LineFromReservation(r *Reservation) SaleLine {
	return SaleLine{
		ProductID:     r.ProductID,
		ProductName:   r.ProductName,
		Quantity:      r.Quantity,
		UnitPrice:     r.UnitPrice,
		Subtotal:      r.UnitPrice.Mul(decimal.NewFromInt(int64(r.Quantity))),
		ReservationID: r.ReservationID,
	}
}

type StatusChange struct {
	From  Status    `json:"from"`
	To    Status    `json:"to"`
	Event Event     `json:"event"`
	At    time.Time `json:"at"`
}

type Sale struct {
	SaleID        string          `json:"sale_id"`
	CustomerID    string          `json:"customer_id"`
	Status        Status          `json:"status"`
	Lines         []SaleLine      `json:"lines"`
	ShippingCost  decimal.Decimal `json:"shipping_cost"`
	Total         decimal.Decimal `json:"total"`
	DeliveryMode  DeliveryMode    `json:"delivery_mode"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	ProofRef      string          `json:"proof_ref,omitempty"`
	TrackingCode  string          `json:"tracking_code,omitempty"`
	History       []StatusChange  `json:"history"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewSale builds a sale in its initial status. The total is computed here and
// never again.
func NewSale(saleID, customerID string, mode DeliveryMode, method PaymentMethod, lines []SaleLine, shipping decimal.Decimal, now time.Time) *Sale {
	if mode == DeliveryPickup {
		shipping = decimal.Zero
	}
	s := &Sale{
		SaleID:        saleID,
		CustomerID:    customerID,
		Status:        StatusPendingPayment,
		Lines:         lines,
		ShippingCost:  shipping,
		DeliveryMode:  mode,
		PaymentMethod: method,
		History:       []StatusChange{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.Total = s.LinesTotal().Add(shipping)
	return s
}

func (s *Sale) LinesTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range s.Lines {
		sum = sum.Add(l.Subtotal)
	}
	return sum
}

func (s *Sale) ReservationIDs() []string {
	ids := make([]string, 0, len(s.Lines))
	for _, l := range s.Lines {
		ids = append(ids, l.ReservationID)
	}
	return ids
}

// Transition is a guarded status change. Stores apply it only while the sale
// is still in From, together with its stock effect, in a single write.
type Transition struct {
	SaleID       string
	Event        Event
	From         Status
	To           Status
	Stock        StockEffect
	ProofRef     string
	TrackingCode string
	At           time.Time
}

func NewTransition(saleID string, from Status, ev Event, at time.Time) (Transition, error) {
	to, stock, err := Next(from, ev)
	if err != nil {
		return Transition{}, &InvalidTransitionError{SaleID: saleID, From: from, Event: ev}
	}
	return Transition{SaleID: saleID, Event: ev, From: from, To: to, Stock: stock, At: at}, nil
}

// Apply mutates an in-memory copy the same way the store does.
func (t Transition) Apply(s *Sale) {
	s.Status = t.To
	if t.ProofRef != "" {
		s.ProofRef = t.ProofRef
	}
	if t.TrackingCode != "" {
		s.TrackingCode = t.TrackingCode
	}
	s.UpdatedAt = t.At
	s.History = append(s.History, t.Change())
}

func (t Transition) Change() StatusChange {
	return StatusChange{From: t.From, To: t.To, Event: t.Event, At: t.At}
}

// SaleFilter narrows sale listings. Zero values mean "any".
type SaleFilter struct {
	Status     Status
	CustomerID string
	Limit      int
}

func (f SaleFilter) Matches(s *Sale) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.CustomerID != "" && s.CustomerID != f.CustomerID {
		return false
	}
	return true
}
