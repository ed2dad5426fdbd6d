package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dimensions are the package measurements in centimetres.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Product struct {
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	WeightGrams int             `json:"weight_grams"`
	Dimensions  Dimensions      `json:"dimensions"`
	CategoryID  string          `json:"category_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type CreateProductRequest struct {
	ProductID   string          `json:"product_id"   binding:"required"`
	Name        string          `json:"name"         binding:"required"`
	Price       decimal.Decimal `json:"price"        binding:"required"`
	Stock       int             `json:"stock"        binding:"min=0"`
	WeightGrams int             `json:"weight_grams" binding:"min=0"`
	Dimensions  Dimensions      `json:"dimensions"`
	CategoryID  string          `json:"category_id"`
}

type UpdatePriceRequest struct {
	Price decimal.Decimal `json:"price" binding:"required"`
}

type ProductResponse struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
}

func NewProductResponse(p *Product) ProductResponse {
	return ProductResponse{
		ProductID: p.ProductID,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
	}
}
