package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/fjod/go_cart/storefront/internal/service")

// InventoryService is the authoritative view of products and stock.
type InventoryService struct {
	store repository.Store
	log   *zap.Logger
}

func NewInventoryService(store repository.Store, log *zap.Logger) *InventoryService {
	return &InventoryService{store: store, log: log}
}

func (s *InventoryService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if errors.Is(err, repository.ErrProductNotFound) {
		return nil, &ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *InventoryService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if products == nil {
		products = []*domain.Product{}
	}
	return products, nil
}

func (s *InventoryService) GetStock(ctx context.Context, id int64) (int, error) {
	stock, err := s.store.GetStock(ctx, id)
	if errors.Is(err, repository.ErrProductNotFound) {
		return 0, &ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		return 0, fmt.Errorf("get stock: %w", err)
	}
	return stock, nil
}

// DecrementStock lowers the stock by n, never below zero, and returns the
// stock left. n must be positive.
func (s *InventoryService) DecrementStock(ctx context.Context, id int64, n int) (int, error) {
	if n < 1 {
		return 0, fmt.Errorf("decrement amount must be positive, got %d", n)
	}

	ctx, span := tracer.Start(ctx, "InventoryService.DecrementStock")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", id), attribute.Int("amount", n))

	stock, err := s.store.DecrementStock(ctx, id, n)
	if errors.Is(err, repository.ErrProductNotFound) {
		return 0, &ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		span.RecordError(err)
		logger.WithContext(ctx, s.log).Error("decrement stock failed", zap.Int64("product_id", id), zap.Error(err))
		return 0, fmt.Errorf("decrement stock: %w", err)
	}
	return stock, nil
}

func (s *InventoryService) SetStock(ctx context.Context, id int64, stock int) error {
	if stock < 0 {
		return fmt.Errorf("stock must not be negative, got %d", stock)
	}
	err := s.store.SetStock(ctx, id, stock)
	if errors.Is(err, repository.ErrProductNotFound) {
		return &ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	return nil
}

// SampleCatalog is inserted by SeedCatalog into an empty catalog.
func SampleCatalog() []*domain.Product {
	return []*domain.Product{
		{
			Name:        "Laptop Pro 14",
			Category:    "Electronics",
			Description: "Lightweight 14-inch laptop for work and study.",
			ImageURL:    "/images/laptop.jpg",
			Price:       decimal.NewFromInt(1299),
			Stock:       3,
		},
		{
			Name:        "Wireless Headphones",
			Category:    "Accessories",
			Description: "Noise-cancelling headphones with long battery life.",
			ImageURL:    "/images/headphones.jpg",
			Price:       decimal.NewFromInt(199),
			Stock:       9,
		},
		{
			Name:        "Programming Book: JavaScript Basics",
			Category:    "Books",
			Description: "Beginner-friendly introduction to JavaScript.",
			ImageURL:    "/images/js-book.jpg",
			Price:       decimal.NewFromInt(39),
			Stock:       6,
		},
	}
}

// SeedCatalog inserts the sample catalog when no product exists yet.
// It reports whether anything was inserted.
func (s *InventoryService) SeedCatalog(ctx context.Context) (bool, error) {
	seeded := false
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		count, err := tx.CountProducts(ctx)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		for _, p := range SampleCatalog() {
			if err := tx.CreateProduct(ctx, p); err != nil {
				return err
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("seed catalog: %w", err)
	}

	if seeded {
		s.log.Info("sample products seeded")
	} else {
		s.log.Info("products already seeded")
	}
	return seeded, nil
}
