package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type CheckoutRequest struct {
	Items         []CartItem `json:"items"`
	DeliveryMode  string     `json:"delivery_mode"  binding:"required"`
	PaymentMethod string     `json:"payment_method" binding:"required"`
}

type CheckoutResponse struct {
	SaleID string          `json:"sale_id"`
	Status Status          `json:"status"`
	Total  decimal.Decimal `json:"total"`
}

type UploadProofRequest struct {
	ProofRef string `json:"proof_ref"`
}

type DispatchRequest struct {
	TrackingCode string `json:"tracking_code"`
}

type SaleView struct {
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

func NewSaleView(s *Sale) SaleView {
	return SaleView{
		SaleID:        s.SaleID,
		CustomerID:    s.CustomerID,
		Status:        s.Status,
		Lines:         s.Lines,
		ShippingCost:  s.ShippingCost,
		Total:         s.Total,
		DeliveryMode:  s.DeliveryMode,
		PaymentMethod: s.PaymentMethod,
		ProofRef:      s.ProofRef,
		TrackingCode:  s.TrackingCode,
		History:       s.History,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// PaymentDetails is what a buyer needs to pay outside the storefront.
type PaymentDetails struct {
	Currency     string          `json:"currency"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	Bank         BankDetails     `json:"bank"`
	Crypto       CryptoDetails   `json:"crypto"`
}

type BankDetails struct {
	Name          string `json:"name"`
	AccountHolder string `json:"account_holder"`
	AccountNumber string `json:"account_number"`
	Alias         string `json:"alias,omitempty"`
}

type CryptoDetails struct {
	Network string `json:"network"`
	Wallet  string `json:"wallet"`
}
