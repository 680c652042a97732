package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CartService keeps per-user carts. Quantities are checked against stock
// when they change, but nothing is reserved: checkout validates again.
type CartService struct {
	store   repository.Store
	cache   cache.CartCache
	metrics *metrics.Metrics
	log     *zap.Logger
	sfg     singleflight.Group // Prevents cache stampede
}

func NewCartService(store repository.Store, c cache.CartCache, m *metrics.Metrics, log *zap.Logger) *CartService {
	if c == nil {
		c = cache.NopCache{}
	}
	return &CartService{
		store:   store,
		cache:   c,
		metrics: m,
		log:     log,
	}
}

// GetCart returns the user's lines joined with their products. Lines whose
// product no longer exists are left out of the view but stay stored.
func (s *CartService) GetCart(ctx context.Context, userID string) ([]domain.CartItemView, error) {
	ctx, span := tracer.Start(ctx, "CartService.GetCart")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	lines, err := s.cartLines(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.store.GetProducts(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("resolve cart products: %w", err)
	}

	items := make([]domain.CartItemView, 0, len(lines))
	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			continue
		}
		items = append(items, domain.CartItemView{
			ProductID: p.ID,
			Name:      p.Name,
			Category:  p.Category,
			Price:     p.Price,
			Quantity:  line.Quantity,
		})
	}
	return items, nil
}

const cartLoadTimeout = 5 * time.Second

func (s *CartService) cartLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key.
	// The load is shared, so it must not die with the first caller's request.
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cartLoadTimeout)
		defer cancel()

		lines, err := s.cache.Get(ctx, userID)
		if err == nil {
			return lines, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.WithContext(ctx, s.log).Warn("cache get error", zap.String("user_id", userID), zap.Error(err))
		}

		lines, err = s.store.GetCartLines(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load cart: %w", err)
		}

		if errSet := s.cache.Set(ctx, userID, lines); errSet != nil {
			logger.WithContext(ctx, s.log).Warn("cache set error", zap.String("user_id", userID), zap.Error(errSet))
		}
		return lines, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.CartLine), nil
}

// AddOne puts one more unit of the product into the cart, refusing when the
// line would exceed the product's current stock.
func (s *CartService) AddOne(ctx context.Context, userID string, productID int64) (err error) {
	ctx, span := tracer.Start(ctx, "CartService.AddOne")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int64("product.id", productID))
	defer func() { s.recordMutation(ctx, "add", userID, err) }()

	product, err := s.store.GetProduct(ctx, productID)
	if errors.Is(err, repository.ErrProductNotFound) {
		return &ProductNotFoundError{ProductID: productID}
	}
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if product.Stock < 1 {
		return &StockError{ProductID: product.ID, ProductName: product.Name}
	}

	_, err = s.store.IncrementLine(ctx, userID, productID, product.Stock)
	if errors.Is(err, repository.ErrQuantityLimit) {
		return &StockError{ProductID: product.ID, ProductName: product.Name}
	}
	if err != nil {
		return fmt.Errorf("add to cart: %w", err)
	}

	s.invalidateCache(ctx, userID)
	return nil
}

// SetQuantity replaces the quantity of an existing line. A quantity of zero
// or less removes the line.
func (s *CartService) SetQuantity(ctx context.Context, userID string, productID int64, quantity int) (err error) {
	ctx, span := tracer.Start(ctx, "CartService.SetQuantity")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Int64("product.id", productID),
		attribute.Int("quantity", quantity),
	)
	defer func() { s.recordMutation(ctx, "set_quantity", userID, err) }()

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		var product *domain.Product
		if quantity > 0 {
			p, err := tx.GetProduct(ctx, productID)
			if errors.Is(err, repository.ErrProductNotFound) {
				return &ProductNotFoundError{ProductID: productID}
			}
			if err != nil {
				return fmt.Errorf("get product: %w", err)
			}
			product = p
		}

		lines, err := tx.GetCartLines(ctx, userID)
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
		if !slices.ContainsFunc(lines, func(l domain.CartLine) bool { return l.ProductID == productID }) {
			return ErrItemNotInCart
		}

		if quantity <= 0 {
			return tx.RemoveLine(ctx, userID, productID)
		}

		if quantity > product.Stock {
			return &StockError{ProductID: product.ID, ProductName: product.Name}
		}

		err = tx.UpdateLineQuantity(ctx, userID, productID, quantity)
		if errors.Is(err, repository.ErrItemNotFound) {
			return ErrItemNotInCart
		}
		return err
	})
	if err != nil {
		return err
	}

	s.invalidateCache(ctx, userID)
	return nil
}

// Remove deletes the line if present.
func (s *CartService) Remove(ctx context.Context, userID string, productID int64) (err error) {
	defer func() { s.recordMutation(ctx, "remove", userID, err) }()

	if err := s.store.RemoveLine(ctx, userID, productID); err != nil {
		return fmt.Errorf("remove from cart: %w", err)
	}
	s.invalidateCache(ctx, userID)
	return nil
}

func (s *CartService) Clear(ctx context.Context, userID string) (err error) {
	defer func() { s.recordMutation(ctx, "clear", userID, err) }()

	if err := s.store.ClearCart(ctx, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	s.invalidateCache(ctx, userID)
	return nil
}

func (s *CartService) recordMutation(ctx context.Context, op, userID string, err error) {
	result := resultOf(err)
	s.metrics.CartMutation(op, result)

	if result == metrics.ResultFailure {
		logger.WithContext(ctx, s.log).Error("cart mutation failed",
			zap.String("op", op), zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *CartService) invalidateCache(ctx context.Context, userID string) {
	invalidateCart(ctx, s.cache, s.log, userID)
}

func invalidateCart(ctx context.Context, c cache.CartCache, log *zap.Logger, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := c.Delete(ctx, userID); err != nil {
		logger.WithContext(ctx, log).Warn("cache invalidate error", zap.String("user_id", userID), zap.Error(err))
	}
}
