package service

import (
	"context"
	"errors"
	"time"

	"github.com/cloud-wave-best-zizon/sale-service/internal/domain"
	"github.com/cloud-wave-best-zizon/sale-service/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrProductExists = errors.New("product already exists")

type ProductService struct {
	productRepo repository.ProductStore
	logger      *zap.Logger
}

func NewProductService(productRepo repository.ProductStore, logger *zap.Logger) *ProductService {
	return &ProductService{
		productRepo: productRepo,
		logger:      logger,
	}
}

func (s *ProductService) CreateProduct(ctx context.Context, req domain.CreateProductRequest) (*domain.Product, error) {
	if req.Price.IsNegative() {
		return nil, &domain.ValidationError{Field: "price", Message: "must not be negative"}
	}
	if req.Stock < 0 {
		return nil, &domain.ValidationError{Field: "stock", Message: "must not be negative"}
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ProductID:   req.ProductID,
		Name:        req.Name,
		Price:       req.Price,
		Stock:       req.Stock,
		WeightGrams: req.WeightGrams,
		Dimensions:  req.Dimensions,
		CategoryID:  req.CategoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.productRepo.CreateProduct(ctx, product); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrProductExists
		}
		s.logger.Error("Failed to save product",
			zap.String("product_id", product.ProductID),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Product created successfully",
		zap.String("product_id", product.ProductID),
		zap.Int("initial_stock", product.Stock))

	return product, nil
}

func (s *ProductService) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	return s.productRepo.GetProduct(ctx, productID)
}

func (s *ProductService) UpdatePrice(ctx context.Context, productID string, price decimal.Decimal) (*domain.Product, error) {
	if price.IsNegative() {
		return nil, &domain.ValidationError{Field: "price", Message: "must not be negative"}
	}
	if err := s.productRepo.UpdatePrice(ctx, productID, price); err != nil {
		return nil, err
	}

	s.logger.Info("Product price updated",
		zap.String("product_id", productID),
		zap.String("price", price.String()))

	return s.productRepo.GetProduct(ctx, productID)
}
