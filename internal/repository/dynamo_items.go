package repository

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cloud-wave-best-zizon/sale-service/internal/domain"
	"github.com/shopspring/decimal"
)

// Money is stored as a decimal string so no precision is lost in the item.

type productItem struct {
	ProductID   string    `dynamodbav:"product_id"`
	Name        string    `dynamodbav:"name"`
	Price       string    `dynamodbav:"price"`
	Stock       int       `dynamodbav:"stock"`
	WeightGrams int       `dynamodbav:"weight_grams"`
	Length      float64   `dynamodbav:"length"`
	Width       float64   `dynamodbav:"width"`
	Height      float64   `dynamodbav:"height"`
	CategoryID  string    `dynamodbav:"category_id,omitempty"`
	CreatedAt   time.Time `dynamodbav:"created_at"`
	UpdatedAt   time.Time `dynamodbav:"updated_at"`
}

type reservationItem struct {
	ReservationID string    `dynamodbav:"reservation_id"`
	SaleID        string    `dynamodbav:"sale_id"`
	ProductID     string    `dynamodbav:"product_id"`
	ProductName   string    `dynamodbav:"product_name"`
	Quantity      int       `dynamodbav:"quantity"`
	UnitPrice     string    `dynamodbav:"unit_price"`
	Status        string    `dynamodbav:"status"`
	CreatedAt     time.Time `dynamodbav:"created_at"`
	UpdatedAt     time.Time `dynamodbav:"updated_at"`
}

type saleLineItem struct {
	ProductID     string `dynamodbav:"product_id"`
	ProductName   string `dynamodbav:"product_name"`
	Quantity      int    `dynamodbav:"quantity"`
	UnitPrice     string `dynamodbav:"unit_price"`
	Subtotal      string `dynamodbav:"subtotal"`
	ReservationID string `dynamodbav:"reservation_id"`
}

type historyItem struct {
	From  string    `dynamodbav:"from"`
	To    string    `dynamodbav:"to"`
	Event string    `dynamodbav:"event"`
	At    time.Time `dynamodbav:"at"`
}

type saleItem struct {
	SaleID        string         `dynamodbav:"sale_id"`
	CustomerID    string         `dynamodbav:"customer_id"`
	Status        string         `dynamodbav:"status"`
	Lines         []saleLineItem `dynamodbav:"lines"`
	ShippingCost  string         `dynamodbav:"shipping_cost"`
	Total         string         `dynamodbav:"total"`
	DeliveryMode  string         `dynamodbav:"delivery_mode"`
	PaymentMethod string         `dynamodbav:"payment_method"`
	ProofRef      string         `dynamodbav:"proof_ref,omitempty"`
	TrackingCode  string         `dynamodbav:"tracking_code,omitempty"`
	History       []historyItem  `dynamodbav:"history"`
	CreatedAt     time.Time      `dynamodbav:"created_at"`
	UpdatedAt     time.Time      `dynamodbav:"updated_at"`
}

type customerItem struct {
	CustomerID string    `dynamodbav:"customer_id"`
	CreatedAt  time.Time `dynamodbav:"created_at"`
}

func keyOf(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

func toProductItem(p *domain.Product) productItem {
	return productItem{
		ProductID:   p.ProductID,
		Name:        p.Name,
		Price:       p.Price.String(),
		Stock:       p.Stock,
		WeightGrams: p.WeightGrams,
		Length:      p.Dimensions.Length,
		Width:       p.Dimensions.Width,
		Height:      p.Dimensions.Height,
		CategoryID:  p.CategoryID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (it productItem) toDomain() (*domain.Product, error) {
	price, err := decimal.NewFromString(it.Price)
	if err != nil {
		return nil, fmt.Errorf("product %s price %q: %w", it.ProductID, it.Price, err)
	}
	return &domain.Product{
		ProductID:   it.ProductID,
		Name:        it.Name,
		Price:       price,
		Stock:       it.Stock,
		WeightGrams: it.WeightGrams,
		Dimensions:  domain.Dimensions{Length: it.Length, Width: it.Width, Height: it.Height},
		CategoryID:  it.CategoryID,
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
	}, nil
}

func toReservationItem(r *domain.Reservation) reservationItem {
	return reservationItem{
		ReservationID: r.ReservationID,
		SaleID:        r.SaleID,
		ProductID:     r.ProductID,
		ProductName:   r.ProductName,
		Quantity:      r.Quantity,
		UnitPrice:     r.UnitPrice.String(),
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (it reservationItem) toDomain() (*domain.Reservation, error) {
	price, err := decimal.NewFromString(it.UnitPrice)
	if err != nil {
		return nil, fmt.Errorf("reservation %s unit price %q: %w", it.ReservationID, it.UnitPrice, err)
	}
	return &domain.Reservation{
		ReservationID: it.ReservationID,
		SaleID:        it.SaleID,
		ProductID:     it.ProductID,
		ProductName:   it.ProductName,
		Quantity:      it.Quantity,
		UnitPrice:     price,
		Status:        domain.ReservationStatus(it.Status),
		CreatedAt:     it.CreatedAt,
		UpdatedAt:     it.UpdatedAt,
	}, nil
}

func toHistoryItem(c domain.StatusChange) historyItem {
	return historyItem{From: string(c.From), To: string(c.To), Event: string(c.Event), At: c.At}
}

func toSaleItem(s *domain.Sale) saleItem {
	lines := make([]saleLineItem, 0, len(s.Lines))
	for _, l := range s.Lines {
		lines = append(lines, saleLineItem{
			ProductID:     l.ProductID,
			ProductName:   l.ProductName,
			Quantity:      l.Quantity,
			UnitPrice:     l.UnitPrice.String(),
			Subtotal:      l.Subtotal.String(),
			ReservationID: l.ReservationID,
		})
	}
	history := make([]historyItem, 0, len(s.History))
	for _, h := range s.History {
		history = append(history, toHistoryItem(h))
	}
	return saleItem{
		SaleID:        s.SaleID,
		CustomerID:    s.CustomerID,
		Status:        string(s.Status),
		Lines:         lines,
		ShippingCost:  s.ShippingCost.String(),
		Total:         s.Total.String(),
		DeliveryMode:  string(s.DeliveryMode),
		PaymentMethod: string(s.PaymentMethod),
		ProofRef:      s.ProofRef,
		TrackingCode:  s.TrackingCode,
		History:       history,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func (it saleItem) toDomain() (*domain.Sale, error) {
	shipping, err := decimal.NewFromString(it.ShippingCost)
	if err != nil {
		return nil, fmt.Errorf("sale %s shipping cost: %w", it.SaleID, err)
	}
	total, err := decimal.NewFromString(it.Total)
	if err != nil {
		return nil, fmt.Errorf("sale %s total: %w", it.SaleID, err)
	}

	lines := make([]domain.SaleLine, 0, len(it.Lines))
	for _, l := range it.Lines {
		unit, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("sale %s line %s unit price: %w", it.SaleID, l.ProductID, err)
		}
		sub, err := decimal.NewFromString(l.Subtotal)
		if err != nil {
			return nil, fmt.Errorf("sale %s line %s subtotal: %w", it.SaleID, l.ProductID, err)
		}
		lines = append(lines, domain.SaleLine{
			ProductID:     l.ProductID,
			ProductName:   l.ProductName,
			Quantity:      l.Quantity,
			UnitPrice:     unit,
			Subtotal:      sub,
			ReservationID: l.ReservationID,
		})
	}

	history := make([]domain.StatusChange, 0, len(it.History))
	for _, h := range it.History {
		history = append(history, domain.StatusChange{
			From:  domain.Status(h.From),
			To:    domain.Status(h.To),
			Event: domain.Event(h.Event),
			At:    h.At,
		})
	}

	return &domain.Sale{
		SaleID:        it.SaleID,
		CustomerID:    it.CustomerID,
		Status:        domain.Status(it.Status),
		Lines:         lines,
		ShippingCost:  shipping,
		Total:         total,
		DeliveryMode:  domain.DeliveryMode(it.DeliveryMode),
		PaymentMethod: domain.PaymentMethod(it.PaymentMethod),
		ProofRef:      it.ProofRef,
		TrackingCode:  it.TrackingCode,
		History:       history,
		CreatedAt:     it.CreatedAt,
		UpdatedAt:     it.UpdatedAt,
	}, nil
}
